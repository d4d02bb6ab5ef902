// Package preflight provides readiness checks for the filesystem paths,
// database, and object storage the engine depends on.
//
// The archive runs CheckDirectoryAccess before it touches its directory, and
// the "tmctl status" command runs RunAll to display overall health. Checks
// for disabled features are skipped.
package preflight
