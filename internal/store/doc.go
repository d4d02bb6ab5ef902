// Package store persists translation units, terminology, chunks, phrase
// groups, and sentence alignments in an embedded SQLite database.
//
// The Store is the only writer of durable engine state. It validates every
// row before writing, wraps batch writes in a single transaction, and retries
// briefly when SQLite reports the database as busy. Failures are classified
// with tmerr markers:
//   - unique-constraint violations become validation errors naming the field
//   - busy databases, exhausted pools, and caller timeouts become transient
//     errors and leave state unchanged
//   - Get* lookups return (nil, nil) when no row matches
//
// Writes notify registered WriteObservers after commit so the cache layer can
// drop stale per-project entries.
package store
