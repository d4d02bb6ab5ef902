// Package alignment pairs source and target sentences and tracks the
// validation state of each pair.
//
// Align detects sentence boundaries on both sides, pairs sentences by
// position when the counts are close and by dynamic programming otherwise,
// then refines each pair's confidence with a length-ratio pass and a learned
// adjustment fed by user corrections. The result carries the pairs, the
// problem areas found, and aggregate quality and health scores.
//
// Stored alignments move through a small state machine (pending, validated,
// rejected, needs review). Manual operations (align, unalign, merge, split)
// persist through the store, and every correction is appended to a log that
// biases future scoring of structurally similar pairs.
package alignment
