// Package terminology enforces project glossaries over translation text.
//
// Highlight marks glossary terms in a text with byte offsets, a type, and a
// confidence score. Rehighlight rescans only the window around an edit.
// CheckConsistency compares do-not-translate and other high-importance terms
// across several language renderings of the same content and reports case,
// plural, and compound drift. Suggest proposes glossary terms for words that
// are close to, but not exactly, a known term.
//
// Glossaries are imported from CSV or YAML through one validation pipeline
// that reports per-row outcomes instead of failing the whole file.
package terminology
