// Package engine wires the store, cache, match, terminology, linking,
// alignment, and archive components into one in-process translation-memory
// engine.
//
// Open builds every component from a single config and registers the cache
// as a store write observer, so any committed write drops the affected
// project's cached state. Units added through the engine are also queued to
// the archive appender when archiving is enabled.
package engine
