// Package match retrieves previously translated units for new source text.
//
// Search escalates through three strategies and merges their results:
//   - exact: normalized source text equality, similarity 1.0
//   - fuzzy: token-set Jaccard, or edit-distance similarity for short text
//   - ngram: character n-gram overlap for reordered or paraphrased text
//
// Candidates are ranked by the mean of the unit's stored confidence and the
// query similarity. The Suggester wraps Search with per-editor debouncing for
// as-you-type lookups.
package match
