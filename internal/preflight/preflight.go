package preflight

import (
	"context"

	"tmengine/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes all applicable preflight checks for the given config.
// db and sink may be nil, in which case their checks are skipped.
func RunAll(ctx context.Context, cfg *config.Config, db HealthChecker, sink Prober) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if db != nil {
		results = append(results, CheckDatabase(ctx, db))
	}

	if cfg.Archive.Enabled {
		results = append(results, CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir))
	}

	if cfg.S3Enabled() {
		results = append(results, CheckArchiveSink(ctx, cfg.Archive, sink))
	}

	return results
}
