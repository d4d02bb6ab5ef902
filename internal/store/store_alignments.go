package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"tmengine/internal/language"
	"tmengine/internal/tmerr"
)

const (
	alignmentTable  = "alignments"
	correctionTable = "corrections"
	alignmentUpsert = "ON CONFLICT(id) DO UPDATE SET project_id = excluded.project_id, source_chunk_id = excluded.source_chunk_id, " +
		"target_chunk_id = excluded.target_chunk_id, source_start = excluded.source_start, source_end = excluded.source_end, " +
		"target_start = excluded.target_start, target_end = excluded.target_end, source_text = excluded.source_text, " +
		"target_text = excluded.target_text, source_language = excluded.source_language, target_language = excluded.target_language, " +
		"confidence = excluded.confidence, method = excluded.method, status = excluded.status, " +
		"fingerprint = excluded.fingerprint, updated_at = excluded.updated_at"
)

var alignmentColumns = []string{
	"id", "project_id", "source_chunk_id", "target_chunk_id",
	"source_start", "source_end", "target_start", "target_end",
	"source_text", "target_text", "source_language", "target_language",
	"confidence", "method", "status", "fingerprint", "created_at", "updated_at",
}

var correctionColumns = []string{
	"id", "fingerprint", "source_language", "target_language",
	"original_confidence", "corrected_confidence", "original_json", "corrected_json",
	"reason", "created_at",
}

func scanAlignment(scanner rowScanner) (*Alignment, error) {
	var (
		a          Alignment
		method     string
		status     string
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&a.ID, &a.ProjectID, &a.SourceChunkID, &a.TargetChunkID,
		&a.SourceStart, &a.SourceEnd, &a.TargetStart, &a.TargetEnd,
		&a.SourceText, &a.TargetText, &a.SourceLanguage, &a.TargetLanguage,
		&a.Confidence, &method, &status, &a.Fingerprint, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	a.Method = AlignmentMethod(method)
	a.Status = AlignmentStatus(status)
	a.CreatedAt = parseTime(createdRaw)
	a.UpdatedAt = parseTime(updatedRaw)
	return &a, nil
}

func scanCorrection(scanner rowScanner) (*Correction, error) {
	var (
		c          Correction
		original   sql.NullString
		corrected  sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&c.ID, &c.Fingerprint, &c.SourceLanguage, &c.TargetLanguage,
		&c.OriginalConfidence, &c.CorrectedConfidence, &original, &corrected,
		&c.Reason, &createdRaw); err != nil {
		return nil, err
	}
	if original.Valid {
		if err := json.Unmarshal([]byte(original.String), &c.Original); err != nil {
			return nil, fmt.Errorf("decode original alignment: %w", err)
		}
	}
	if corrected.Valid {
		if err := json.Unmarshal([]byte(corrected.String), &c.Corrected); err != nil {
			return nil, fmt.Errorf("decode corrected alignment: %w", err)
		}
	}
	c.CreatedAt = parseTime(createdRaw)
	return &c, nil
}

func prepareAlignment(a *Alignment) error {
	if a == nil {
		return tmerr.Invalid("alignment", "must not be nil")
	}
	a.SourceLanguage = language.Normalize(a.SourceLanguage)
	a.TargetLanguage = language.Normalize(a.TargetLanguage)
	if a.Status == "" {
		a.Status = StatusPending
	}
	stamp(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	a.UpdatedAt = nowUTC()
	if a.UpdatedAt.Before(a.CreatedAt) {
		a.UpdatedAt = a.CreatedAt
	}
	return a.Validate()
}

func upsertAlignmentTx(ctx context.Context, tx *sql.Tx, sb sq.StatementBuilderType, a *Alignment) error {
	_, err := execBuilder(ctx, tx, sb.Insert(alignmentTable).
		Columns(alignmentColumns...).
		Values(a.ID, a.ProjectID, a.SourceChunkID, a.TargetChunkID,
			a.SourceStart, a.SourceEnd, a.TargetStart, a.TargetEnd,
			a.SourceText, a.TargetText, a.SourceLanguage, a.TargetLanguage,
			a.Confidence, string(a.Method), string(a.Status), a.Fingerprint,
			formatTime(a.CreatedAt), formatTime(a.UpdatedAt)).
		Suffix(alignmentUpsert))
	return err
}

// SaveAlignment inserts or replaces an alignment.
func (s *Store) SaveAlignment(ctx context.Context, a *Alignment) error {
	return s.SaveAlignments(ctx, []*Alignment{a})
}

// SaveAlignments inserts or replaces alignments in one transaction.
func (s *Store) SaveAlignments(ctx context.Context, alignments []*Alignment) error {
	for i, a := range alignments {
		if err := prepareAlignment(a); err != nil {
			return fmt.Errorf("alignment %d: %w", i, err)
		}
	}
	if len(alignments) == 0 {
		return nil
	}
	return s.write(ctx, "save alignments", func(tx *sql.Tx) ([]WriteEvent, error) {
		for _, a := range alignments {
			if err := upsertAlignmentTx(ctx, tx, s.sb, a); err != nil {
				return nil, err
			}
		}
		return projectEvents(EntityAlignment, alignments, func(a *Alignment) string { return a.ProjectID }), nil
	})
}

// ReplaceAlignments deletes the alignments named by remove and saves keep in
// one transaction. Merge and split use it so readers never see both halves.
func (s *Store) ReplaceAlignments(ctx context.Context, remove []string, keep []*Alignment) error {
	for i, a := range keep {
		if err := prepareAlignment(a); err != nil {
			return fmt.Errorf("alignment %d: %w", i, err)
		}
	}
	return s.write(ctx, "replace alignments", func(tx *sql.Tx) ([]WriteEvent, error) {
		if len(remove) > 0 {
			if _, err := execBuilder(ctx, tx, s.sb.Delete(alignmentTable).Where(sq.Eq{"id": remove})); err != nil {
				return nil, err
			}
		}
		for _, a := range keep {
			if err := upsertAlignmentTx(ctx, tx, s.sb, a); err != nil {
				return nil, err
			}
		}
		return projectEvents(EntityAlignment, keep, func(a *Alignment) string { return a.ProjectID }), nil
	})
}

// DeleteAlignment removes an alignment and reports whether it existed.
func (s *Store) DeleteAlignment(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.write(ctx, "delete alignment", func(tx *sql.Tx) ([]WriteEvent, error) {
		var project string
		err := tx.QueryRowContext(ctx, "SELECT project_id FROM alignments WHERE id = ?", id).Scan(&project)
		if errors.Is(err, sql.ErrNoRows) {
			deleted = false
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if _, err := execBuilder(ctx, tx, s.sb.Delete(alignmentTable).Where(sq.Eq{"id": id})); err != nil {
			return nil, err
		}
		deleted = true
		return []WriteEvent{{ProjectID: project, Entity: EntityAlignment}}, nil
	})
	return deleted, err
}

// GetAlignment fetches an alignment by id. It returns (nil, nil) when none exists.
func (s *Store) GetAlignment(ctx context.Context, id string) (*Alignment, error) {
	return selectOne(ctx, s, "get alignment", s.sb.Select(alignmentColumns...).From(alignmentTable).Where(sq.Eq{"id": id}), scanAlignment)
}

// AlignmentsForChunks lists alignments between two chunks ordered by source
// offset.
func (s *Store) AlignmentsForChunks(ctx context.Context, sourceChunkID, targetChunkID string) ([]*Alignment, error) {
	return selectMany(ctx, s, "list alignments", s.sb.Select(alignmentColumns...).From(alignmentTable).
		Where(sq.Eq{"source_chunk_id": sourceChunkID, "target_chunk_id": targetChunkID}).
		OrderBy("source_start", "target_start", "id"), scanAlignment)
}

// AlignmentsByLanguages lists alignments for a language pair. Empty codes
// match every language.
func (s *Store) AlignmentsByLanguages(ctx context.Context, source, target string) ([]*Alignment, error) {
	b := s.sb.Select(alignmentColumns...).From(alignmentTable)
	if source = language.Normalize(source); source != "" {
		b = b.Where(sq.Eq{"source_language": source})
	}
	if target = language.Normalize(target); target != "" {
		b = b.Where(sq.Eq{"target_language": target})
	}
	return selectMany(ctx, s, "list alignments by language", b.OrderBy("created_at", "id"), scanAlignment)
}

// AppendCorrection records a user correction in the append-only learning log.
func (s *Store) AppendCorrection(ctx context.Context, c *Correction) error {
	if c == nil || strings.TrimSpace(c.Fingerprint) == "" {
		return tmerr.Invalid("fingerprint", "must not be empty")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = nowUTC()
	}
	c.SourceLanguage = language.Normalize(c.SourceLanguage)
	c.TargetLanguage = language.Normalize(c.TargetLanguage)
	return s.write(ctx, "append correction", func(tx *sql.Tx) ([]WriteEvent, error) {
		query, args, err := s.sb.Insert(correctionTable).
			Columns(correctionColumns[1:]...).
			Values(c.Fingerprint, c.SourceLanguage, c.TargetLanguage,
				c.OriginalConfidence, c.CorrectedConfidence,
				encodeJSON(c.Original), encodeJSON(c.Corrected),
				c.Reason, formatTime(c.CreatedAt)).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build statement: %w", err)
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&c.ID); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// Corrections lists the most recent corrections first. A limit of zero
// returns every entry.
func (s *Store) Corrections(ctx context.Context, limit int) ([]*Correction, error) {
	b := s.sb.Select(correctionColumns...).From(correctionTable).OrderBy("id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return selectMany(ctx, s, "list corrections", b, scanCorrection)
}

// CorrectionsByFingerprint lists corrections for one structural signature,
// most recent first.
func (s *Store) CorrectionsByFingerprint(ctx context.Context, fingerprint string, limit int) ([]*Correction, error) {
	b := s.sb.Select(correctionColumns...).From(correctionTable).
		Where(sq.Eq{"fingerprint": fingerprint}).
		OrderBy("id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return selectMany(ctx, s, "list corrections by fingerprint", b, scanCorrection)
}
