package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"tmengine/internal/logging"
	"tmengine/internal/tmerr"
)

// DatabaseHealth reports diagnostic information about the engine database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	MissingTables    []string `json:"missing_tables,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	Error            string   `json:"error,omitempty"`
}

var expectedTables = []string{"translation_units", "terms", "chunks", "phrase_groups", "alignments", "corrections"}

// ProjectStats summarizes the durable contents of one project.
func (s *Store) ProjectStats(ctx context.Context, projectID string) (ProjectStats, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	stats := ProjectStats{ProjectID: projectID, LanguagePairs: []LanguagePair{}}

	counts := []struct {
		dest  *int
		query sq.Sqlizer
	}{
		{&stats.Units, s.sb.Select("COUNT(1)").From(unitTable).Where(sq.Eq{"project_id": projectID})},
		{&stats.Terms, s.sb.Select("COUNT(1)").From(termTable).Where(sq.Eq{"project_id": projectID})},
		{&stats.DoNotTranslate, s.sb.Select("COUNT(1)").From(termTable).Where(sq.Eq{"project_id": projectID, "do_not_translate": 1})},
		{&stats.Chunks, s.sb.Select("COUNT(1)").From(chunkTable).Where(sq.Eq{"project_id": projectID})},
		{&stats.PhraseGroups, s.sb.Select("COUNT(1)").From(groupTable).Where(sq.Eq{"project_id": projectID})},
		{&stats.Alignments, s.sb.Select("COUNT(1)").From(alignmentTable).Where(sq.Eq{"project_id": projectID})},
	}
	for _, c := range counts {
		query, args, err := c.query.ToSql()
		if err != nil {
			return stats, fmt.Errorf("project stats: build query: %w", err)
		}
		if err := s.retryOnBusy(ctx, func() error {
			return s.db.QueryRowContext(ctx, query, args...).Scan(c.dest)
		}); err != nil {
			return stats, s.classify("project stats", err)
		}
	}

	var (
		avg     sql.NullFloat64
		lastRaw sql.NullString
	)
	if err := s.retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT AVG(confidence_score), MAX(updated_at) FROM translation_units WHERE project_id = ?", projectID,
		).Scan(&avg, &lastRaw)
	}); err != nil {
		return stats, s.classify("project stats", err)
	}
	stats.AverageQuality = avg.Float64
	if last := parseTime(lastRaw); !last.IsZero() {
		stats.LastUnitUpdated = &last
	}

	pairs, err := selectMany(ctx, s, "project stats", s.sb.Select("source_language", "target_language").
		Distinct().
		From(unitTable).
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("source_language", "target_language"),
		func(r rowScanner) (LanguagePair, error) {
			var p LanguagePair
			err := r.Scan(&p.Source, &p.Target)
			return p, err
		})
	if err != nil {
		return stats, err
	}
	stats.LanguagePairs = append(stats.LanguagePairs, pairs...)
	return stats, nil
}

// Projects lists every project id with units or terms.
func (s *Store) Projects(ctx context.Context) ([]string, error) {
	return selectMany(ctx, s, "list projects", sq.Expr(
		"SELECT project_id FROM translation_units UNION SELECT project_id FROM terms ORDER BY 1"),
		func(r rowScanner) (string, error) {
			var id string
			err := r.Scan(&id)
			return id, err
		})
}

// Backup writes a consistent snapshot of the live database to dest.
func (s *Store) Backup(ctx context.Context, dest string) error {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return tmerr.Invalid("dest", "must not be empty")
	}
	if _, err := os.Stat(dest); err == nil {
		return tmerr.Wrap(tmerr.ErrConflict, component, "backup", fmt.Sprintf("destination %s already exists", dest), nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	start := time.Now()
	err := s.retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest)
		return err
	})
	if err != nil {
		_ = os.Remove(dest)
		return s.classify("backup", err)
	}
	s.logger.Info("database backup written",
		logging.String("dest", dest),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Optimize refreshes query planner statistics.
func (s *Store) Optimize(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	for _, stmt := range []string{"PRAGMA optimize", "ANALYZE"} {
		if err := ctx.Err(); err != nil {
			return tmerr.FromContext(component, "optimize", err)
		}
		if err := s.retryOnBusy(ctx, func() error {
			_, err := s.db.ExecContext(ctx, stmt)
			return err
		}); err != nil {
			return s.classify("optimize", err)
		}
	}
	return nil
}

// CheckHealth returns diagnostic information about the engine database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("database path is unknown")
	}
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	present := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		present[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("iterate tables: %w", err)
	}
	for _, table := range expectedTables {
		if _, ok := present[table]; !ok {
			health.MissingTables = append(health.MissingTables, table)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
