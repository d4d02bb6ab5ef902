package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"tmengine/internal/config"
	"tmengine/internal/logging"
	"tmengine/internal/tmerr"
)

const component = "store"

// Store persists engine state in SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	sb     sq.StatementBuilderType

	retryAttempts  int
	opTimeout      time.Duration
	maxTextLength  int
	candidateLimit int

	obsMu     sync.RWMutex
	observers []WriteObserver
}

const (
	sqliteBusyCode          = 5
	sqliteConstraintPK      = 1555
	sqliteConstraintUnique  = 2067
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && code&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && (code == sqliteConstraintUnique || code == sqliteConstraintPK) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// uniqueField extracts the offending column from a constraint message such as
// "UNIQUE constraint failed: terms.project_id, terms.term".
func uniqueField(err error) string {
	msg := err.Error()
	idx := strings.Index(msg, "failed:")
	if idx < 0 {
		return "id"
	}
	cols := strings.Split(msg[idx+len("failed:"):], ",")
	last := strings.TrimSpace(cols[len(cols)-1])
	if f := strings.Fields(last); len(f) > 0 {
		last = f[0]
	}
	if dot := strings.LastIndex(last, "."); dot >= 0 {
		last = last[dot+1:]
	}
	if last == "" {
		return "id"
	}
	return last
}

func (s *Store) retryOnBusy(ctx context.Context, op func() error) error {
	attempts := s.retryAttempts
	if attempts <= 0 {
		attempts = busyRetryAttempts
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == attempts-1 {
			break
		}
		s.logger.Debug("database busy, retrying",
			logging.Int("attempt", attempt+1),
			logging.Duration("backoff", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// classify maps a raw driver error onto the tmerr taxonomy.
func (s *Store) classify(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tmerr.ErrValidation), errors.Is(err, tmerr.ErrConflict),
		errors.Is(err, tmerr.ErrNotFound), errors.Is(err, tmerr.ErrTransient):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return tmerr.FromContext(component, operation, err)
	case isSQLiteBusy(err):
		return tmerr.Wrap(tmerr.ErrTransient, component, operation, "database busy", err)
	case isUniqueViolation(err):
		field := uniqueField(err)
		return tmerr.Wrap(&tmerr.FieldError{Field: field, Reason: "already exists"}, component, operation, "", err)
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

// opContext bounds ctx with the configured operation timeout unless the
// caller already set a deadline.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = ensureContext(ctx)
	if _, ok := ctx.Deadline(); ok || s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execBuilder(ctx context.Context, q querier, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return q.ExecContext(ctx, query, args...)
}

// withTx runs fn in a transaction, retrying the whole transaction when the
// database is busy. The transaction rolls back on any error.
func (s *Store) withTx(ctx context.Context, operation string, fn func(tx *sql.Tx) error) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	err := s.retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	return s.classify(operation, err)
}

// write runs fn in a transaction and notifies observers after commit.
func (s *Store) write(ctx context.Context, operation string, fn func(tx *sql.Tx) ([]WriteEvent, error)) error {
	var events []WriteEvent
	err := s.withTx(ctx, operation, func(tx *sql.Tx) error {
		evs, err := fn(tx)
		events = evs
		return err
	})
	if err != nil {
		return err
	}
	s.notify(events...)
	return nil
}

func selectMany[T any](ctx context.Context, s *Store, operation string, b sq.Sqlizer, scan func(rowScanner) (T, error)) ([]T, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", operation, err)
	}
	var out []T
	err = s.retryOnBusy(ctx, func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			v, err := scan(rows)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, s.classify(operation, err)
	}
	return out, nil
}

// selectOne returns the zero value of T when no row matches.
func selectOne[T any](ctx context.Context, s *Store, operation string, b sq.Sqlizer, scan func(rowScanner) (T, error)) (T, error) {
	var zero T
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	query, args, err := b.ToSql()
	if err != nil {
		return zero, fmt.Errorf("%s: build query: %w", operation, err)
	}
	var out T
	err = s.retryOnBusy(ctx, func() error {
		v, err := scan(s.db.QueryRowContext(ctx, query, args...))
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return zero, nil
	}
	if err != nil {
		return zero, s.classify(operation, err)
	}
	return out, nil
}

// Open initializes or connects to the engine database.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, tmerr.Wrap(tmerr.ErrConfiguration, component, "open", "config is required", nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dsn(dbPath, cfg.Store.BusyTimeoutMS))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if cfg.Store.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Store.MaxOpenConns)
	}
	if cfg.Store.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Store.MaxIdleConns)
	}
	if cfg.Store.ConnMaxIdleSeconds > 0 {
		db.SetConnMaxIdleTime(time.Duration(cfg.Store.ConnMaxIdleSeconds) * time.Second)
	}

	store := &Store{
		db:             db,
		path:           dbPath,
		logger:         logging.NewComponentLogger(logger, component),
		sb:             sq.StatementBuilder.PlaceholderFormat(sq.Question),
		retryAttempts:  cfg.Store.RetryAttempts,
		opTimeout:      cfg.OperationTimeout(),
		maxTextLength:  cfg.Store.MaxTextLength,
		candidateLimit: cfg.Store.CandidateLimit,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	store.logger.Debug("store opened", logging.String("path", dbPath))
	return store, nil
}

// dsn encodes the per-connection pragmas so every pooled connection gets them.
func dsn(path string, busyTimeoutMS int) string {
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = 5000
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// AddObserver registers o for post-commit write notifications.
func (s *Store) AddObserver(o WriteObserver) {
	if o == nil {
		return
	}
	s.obsMu.Lock()
	s.observers = append(s.observers, o)
	s.obsMu.Unlock()
}

func (s *Store) notify(events ...WriteEvent) {
	if len(events) == 0 {
		return
	}
	s.obsMu.RLock()
	observers := append([]WriteObserver(nil), s.observers...)
	s.obsMu.RUnlock()
	for _, ev := range events {
		for _, o := range observers {
			o.OnWrite(ev)
		}
	}
}
