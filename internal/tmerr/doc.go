// Package tmerr defines the error taxonomy and context helpers shared by the
// translation-memory engine.
//
// Key responsibilities:
//   - Sentinel markers (validation, conflict, transient, not-found,
//     configuration) plus the Wrap helper that tags failures with the
//     component and operation that produced them.
//   - FieldError, which names the offending field on validation failures so
//     callers can surface it next to the input.
//   - Context helpers that stamp project, session, and correlation
//     identifiers for logging.
//
// Classify errors with errors.Is against the markers; never compare strings.
package tmerr
