package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"tmengine/internal/tmerr"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes shape. Existing
// databases with another version must be rebuilt from an archive export.
const schemaVersion = 1

// ErrSchemaMismatch means the database was created by another schema
// version. It is a configuration error.
var ErrSchemaMismatch = fmt.Errorf("%w: schema version mismatch", tmerr.ErrConfiguration)

func (s *Store) initSchema(ctx context.Context) error {
	version, found, err := s.readSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if !found {
		return s.withTx(ctx, "create schema", func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			_, err := execBuilder(ctx, tx, s.sb.Insert("schema_version").Columns("version").Values(schemaVersion))
			return err
		})
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database %s has version %d, expected %d (run 'tmctl archive refresh' per project, then recreate the database)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

// readSchemaVersion reports found=false for a database without the
// schema_version table.
func (s *Store) readSchemaVersion(ctx context.Context) (int, bool, error) {
	query, args, err := s.sb.Select("COUNT(1)").From("sqlite_master").
		Where(sq.Eq{"type": "table", "name": "schema_version"}).ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build schema probe: %w", err)
	}
	var tables int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&tables); err != nil {
		return 0, false, fmt.Errorf("check schema_version table: %w", err)
	}
	if tables == 0 {
		return 0, false, nil
	}

	query, args, err = s.sb.Select("version").From("schema_version").Limit(1).ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build version query: %w", err)
	}
	var version int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, true, nil
}
