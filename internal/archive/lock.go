package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"tmengine/internal/tmerr"
)

const lockRetry = 50 * time.Millisecond

// withLock runs fn while holding the project's archive lock. Other
// processes writing the same project wait until ctx expires.
func (a *Archive) withLock(ctx context.Context, project string, fn func() error) error {
	lock := flock.New(filepath.Join(a.projectDir(project), ".lock"))
	ok, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		if ctx.Err() != nil {
			return tmerr.FromContext("archive", "lock", ctx.Err())
		}
		return fmt.Errorf("acquire archive lock: %w", err)
	}
	if !ok {
		return tmerr.Wrap(tmerr.ErrTransient, "archive", "lock", "archive lock is held by another writer", nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}
