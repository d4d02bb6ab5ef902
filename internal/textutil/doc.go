// Package textutil provides the string-similarity primitives shared by the
// match, terminology, linking, and alignment packages.
//
// The primary use cases are:
//   - Normalizing text for exact comparison (trim plus whitespace collapse)
//   - Token-set Jaccard and character n-gram overlap for fuzzy retrieval
//   - Levenshtein edit distance for short strings and terminology
//
// All distances operate on runes, so multi-byte scripts score the same way
// ASCII does. Every similarity is in [0,1].
package textutil
