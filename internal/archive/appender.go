package archive

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tmengine/internal/config"
	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/tmerr"
)

const flushTimeout = 30 * time.Second

// UnitAppender persists a batch of units for one project.
type UnitAppender interface {
	AppendUnits(ctx context.Context, project string, units []*store.TranslationUnit) (int, error)
}

type pendingUnit struct {
	project string
	unit    *store.TranslationUnit
}

// Appender feeds units to the archive from a buffered channel so callers
// never wait on Parquet writes. A full buffer drops the unit.
type Appender struct {
	target   UnitAppender
	batch    int
	interval time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	items  chan pendingUnit
	done   chan struct{}

	dropped atomic.Uint64
	written atomic.Uint64
}

// NewAppender starts the background worker.
func NewAppender(target UnitAppender, cfg config.Archive, logger *slog.Logger) *Appender {
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &Appender{
		target:   target,
		batch:    max(cfg.AppendBatchSize, 1),
		interval: time.Duration(max(cfg.AppendFlushSeconds, 1)) * time.Second,
		logger:   logging.NewComponentLogger(logger, "archive-appender"),
		items:    make(chan pendingUnit, max(cfg.AppendBuffer, 1)),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// Enqueue schedules unit for archiving and reports whether it was accepted.
func (a *Appender) Enqueue(project string, unit *store.TranslationUnit) bool {
	if unit == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false
	}
	select {
	case a.items <- pendingUnit{project: project, unit: unit}:
		return true
	default:
		a.dropped.Add(1)
		logging.WarnWithContext(a.logger, "archive buffer full, unit dropped", "archive_append_dropped",
			logging.Project(project),
			logging.String("unit_id", unit.ID),
			logging.String(logging.FieldErrorHint, "raise archive.append_buffer or run tmctl archive refresh"),
			logging.String(logging.FieldImpact, "archive misses the unit until the next refresh"),
		)
		return false
	}
}

// Dropped returns the number of units rejected because the buffer was full.
func (a *Appender) Dropped() uint64 { return a.dropped.Load() }

// Written returns the number of units the worker has archived.
func (a *Appender) Written() uint64 { return a.written.Load() }

// Close stops accepting units and waits for the buffer to drain.
func (a *Appender) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.items)
	}
	a.mu.Unlock()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return tmerr.FromContext("archive", "close appender", ctx.Err())
	}
}

func (a *Appender) run() {
	defer close(a.done)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	pending := make(map[string][]*store.TranslationUnit)
	count := 0
	flush := func() {
		if count == 0 {
			return
		}
		for project, units := range pending {
			a.write(project, units)
		}
		clear(pending)
		count = 0
	}

	for {
		select {
		case item, ok := <-a.items:
			if !ok {
				flush()
				return
			}
			pending[item.project] = append(pending[item.project], item.unit)
			count++
			if count >= a.batch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (a *Appender) write(project string, units []*store.TranslationUnit) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	n, err := a.target.AppendUnits(ctx, project, units)
	if err != nil {
		logging.ErrorWithContext(a.logger, "archive append failed", "archive_append_failed",
			logging.Project(project),
			logging.Int("units", len(units)),
			logging.Error(err),
		)
		return
	}
	a.written.Add(uint64(n))
}
