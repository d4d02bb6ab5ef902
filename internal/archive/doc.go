// Package archive keeps a columnar Parquet copy of each project's
// translation units and terms for export and analytics.
//
// Files live at <archive_dir>/<project>/units.parquet and terms.parquet.
// Every write goes to a temp file that is renamed into place while the
// project's flock is held, so readers see either the old or the new file and
// concurrent processes never interleave. The archive is never consulted for
// point lookups; the store stays authoritative.
package archive
