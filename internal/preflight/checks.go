package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"tmengine/internal/config"
	"tmengine/internal/store"
)

// HealthChecker reports database health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (store.DatabaseHealth, error)
}

// Prober verifies that a remote sink is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabase verifies that the database opens, carries the schema, and
// passes its integrity check.
func CheckDatabase(ctx context.Context, db HealthChecker) Result {
	const name = "Database"

	health, err := db.CheckHealth(ctx)
	switch {
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", health.DBPath, err)}
	case !health.DatabaseExists:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", health.DBPath)}
	case len(health.MissingTables) > 0:
		return Result{Name: name, Detail: fmt.Sprintf("missing tables: %s", strings.Join(health.MissingTables, ", "))}
	case !health.IntegrityCheck:
		return Result{Name: name, Detail: "integrity check failed"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema v%d)", health.DBPath, health.SchemaVersion)}
}

// CheckArchiveSink verifies the object-storage settings and, when a prober
// is supplied, that the bucket is reachable. It uses a 10-second timeout and
// a single attempt.
func CheckArchiveSink(ctx context.Context, cfg config.Archive, sink Prober) Result {
	const name = "Archive sink"

	if strings.TrimSpace(cfg.S3Bucket) == "" {
		return Result{Name: name, Detail: "missing bucket"}
	}
	if strings.TrimSpace(cfg.S3Region) == "" {
		return Result{Name: name, Detail: "missing region"}
	}
	if sink == nil {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("s3://%s (not probed)", cfg.S3Bucket)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sink.Probe(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeSinkError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("s3://%s reachable", cfg.S3Bucket)}
}

// summarizeSinkError produces a human-readable summary for sink probe failures.
func summarizeSinkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "probe timed out (object storage unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "probe timed out (object storage unreachable)"
	}
	return err.Error()
}
