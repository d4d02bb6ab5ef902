// Package cache holds invalidatable in-process copies of engine state.
//
// A single Layer is created per engine and shared by the match, terminology,
// linking, and alignment services. Each kind of entry lives in its own
// segment guarded by its own lock, so a slow pattern compile never blocks a
// match lookup. Entries are grouped by project: a store write for a project
// drops that project's entries and the next lookup repopulates them.
//
// Nothing in the cache is authoritative. Clear may be called at any time.
package cache
