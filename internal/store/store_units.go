package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"

	"tmengine/internal/language"
	"tmengine/internal/textutil"
	"tmengine/internal/tmerr"
)

const unitTable = "translation_units"

var unitColumns = []string{
	"id", "project_id", "chapter_id", "chunk_id",
	"source_language", "source_text", "target_language", "target_text",
	"confidence_score", "context", "translator_id", "reviewer_id", "quality_score",
	"created_at", "updated_at",
}

// significantWordRunes is the minimum length of a candidate prefilter word.
const significantWordRunes = 4

func scanUnit(scanner rowScanner) (*TranslationUnit, error) {
	var (
		u          TranslationUnit
		ctxText    sql.NullString
		translator sql.NullString
		reviewer   sql.NullString
		quality    sql.NullFloat64
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&u.ID,
		&u.ProjectID,
		&u.ChapterID,
		&u.ChunkID,
		&u.SourceLanguage,
		&u.SourceText,
		&u.TargetLanguage,
		&u.TargetText,
		&u.ConfidenceScore,
		&ctxText,
		&translator,
		&reviewer,
		&quality,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	u.Context = stringPtr(ctxText)
	u.TranslatorID = stringPtr(translator)
	u.ReviewerID = stringPtr(reviewer)
	u.QualityScore = floatPtr(quality)
	u.CreatedAt = parseTime(createdRaw)
	u.UpdatedAt = parseTime(updatedRaw)
	return &u, nil
}

func (s *Store) prepareUnit(u *TranslationUnit) error {
	if u == nil {
		return tmerr.Invalid("unit", "must not be nil")
	}
	u.ProjectID = strings.TrimSpace(u.ProjectID)
	u.SourceLanguage = language.Normalize(u.SourceLanguage)
	u.TargetLanguage = language.Normalize(u.TargetLanguage)
	stamp(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return u.ValidateWithLimit(s.maxTextLength)
}

func insertUnitTx(ctx context.Context, tx *sql.Tx, sb sq.StatementBuilderType, u *TranslationUnit) error {
	_, err := execBuilder(ctx, tx, sb.Insert(unitTable).
		Columns(append(append([]string{}, unitColumns...), "source_normalized")...).
		Values(
			u.ID, u.ProjectID, u.ChapterID, u.ChunkID,
			u.SourceLanguage, u.SourceText, u.TargetLanguage, u.TargetText,
			u.ConfidenceScore, nullString(u.Context), nullString(u.TranslatorID), nullString(u.ReviewerID), nullFloat(u.QualityScore),
			formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
			textutil.Normalize(u.SourceText),
		))
	return err
}

// InsertUnit validates and stores one unit. A missing ID or timestamp is
// filled in on u.
func (s *Store) InsertUnit(ctx context.Context, u *TranslationUnit) error {
	if err := s.prepareUnit(u); err != nil {
		return err
	}
	return s.write(ctx, "insert unit", func(tx *sql.Tx) ([]WriteEvent, error) {
		if err := insertUnitTx(ctx, tx, s.sb, u); err != nil {
			return nil, err
		}
		return []WriteEvent{{ProjectID: u.ProjectID, Entity: EntityUnit}}, nil
	})
}

// InsertUnits stores every unit in one transaction. Nothing is written when
// any unit fails validation or insertion.
func (s *Store) InsertUnits(ctx context.Context, units []*TranslationUnit) (int, error) {
	if len(units) == 0 {
		return 0, nil
	}
	for i, u := range units {
		if err := s.prepareUnit(u); err != nil {
			return 0, fmt.Errorf("unit %d: %w", i, err)
		}
	}
	err := s.write(ctx, "insert units", func(tx *sql.Tx) ([]WriteEvent, error) {
		projects := make(map[string]struct{})
		var events []WriteEvent
		for _, u := range units {
			if err := insertUnitTx(ctx, tx, s.sb, u); err != nil {
				return nil, err
			}
			if _, seen := projects[u.ProjectID]; !seen {
				projects[u.ProjectID] = struct{}{}
				events = append(events, WriteEvent{ProjectID: u.ProjectID, Entity: EntityUnit})
			}
		}
		return events, nil
	})
	if err != nil {
		return 0, err
	}
	return len(units), nil
}

// UpdateUnit rewrites the mutable fields of an existing unit.
func (s *Store) UpdateUnit(ctx context.Context, u *TranslationUnit) error {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return tmerr.Invalid("id", "must not be empty")
	}
	u.SourceLanguage = language.Normalize(u.SourceLanguage)
	u.TargetLanguage = language.Normalize(u.TargetLanguage)
	u.UpdatedAt = nowUTC()
	if u.CreatedAt.IsZero() || u.CreatedAt.After(u.UpdatedAt) {
		u.CreatedAt = u.UpdatedAt
	}
	if err := u.ValidateWithLimit(s.maxTextLength); err != nil {
		return err
	}
	return s.write(ctx, "update unit", func(tx *sql.Tx) ([]WriteEvent, error) {
		res, err := execBuilder(ctx, tx, s.sb.Update(unitTable).
			SetMap(map[string]any{
				"chapter_id":        u.ChapterID,
				"chunk_id":          u.ChunkID,
				"source_language":   u.SourceLanguage,
				"source_text":       u.SourceText,
				"source_normalized": textutil.Normalize(u.SourceText),
				"target_language":   u.TargetLanguage,
				"target_text":       u.TargetText,
				"confidence_score":  u.ConfidenceScore,
				"context":           nullString(u.Context),
				"translator_id":     nullString(u.TranslatorID),
				"reviewer_id":       nullString(u.ReviewerID),
				"quality_score":     nullFloat(u.QualityScore),
				"updated_at":        formatTime(u.UpdatedAt),
			}).
			Where(sq.Eq{"id": u.ID, "project_id": u.ProjectID}))
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, tmerr.Wrap(tmerr.ErrNotFound, component, "update unit", fmt.Sprintf("unit %s", u.ID), nil)
		}
		return []WriteEvent{{ProjectID: u.ProjectID, Entity: EntityUnit}}, nil
	})
}

// DeleteUnit removes a unit and reports whether it existed.
func (s *Store) DeleteUnit(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.write(ctx, "delete unit", func(tx *sql.Tx) ([]WriteEvent, error) {
		deleted = false
		var project string
		err := tx.QueryRowContext(ctx, "SELECT project_id FROM translation_units WHERE id = ?", id).Scan(&project)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if _, err := execBuilder(ctx, tx, s.sb.Delete(unitTable).Where(sq.Eq{"id": id})); err != nil {
			return nil, err
		}
		deleted = true
		return []WriteEvent{{ProjectID: project, Entity: EntityUnit}}, nil
	})
	return deleted, err
}

// GetUnit fetches a unit by id. It returns (nil, nil) when none exists.
func (s *Store) GetUnit(ctx context.Context, id string) (*TranslationUnit, error) {
	return selectOne(ctx, s, "get unit", s.sb.Select(unitColumns...).From(unitTable).Where(sq.Eq{"id": id}), scanUnit)
}

// UnitsByProject lists a project's units, newest first. A limit of zero
// returns every unit.
func (s *Store) UnitsByProject(ctx context.Context, projectID string, limit int) ([]*TranslationUnit, error) {
	b := s.sb.Select(unitColumns...).From(unitTable).
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("updated_at DESC", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return selectMany(ctx, s, "list units", b, scanUnit)
}

// SearchUnits finds units whose source text contains the pattern, or equals
// it when q.Exact is set. Results are ordered by exact equality, then prefix
// match, then shorter source, then most recent update.
func (s *Store) SearchUnits(ctx context.Context, q SearchQuery) ([]*TranslationUnit, error) {
	pattern := strings.TrimSpace(q.Pattern)
	if pattern == "" {
		return nil, tmerr.Invalid("pattern", "must not be empty")
	}
	b := s.sb.Select(unitColumns...).From(unitTable)
	if q.ProjectID != "" {
		b = b.Where(sq.Eq{"project_id": q.ProjectID})
	}
	b = whereLanguages(b, q.SourceLanguage, q.TargetLanguage)
	escaped := escapeLike(pattern)
	if q.Exact {
		b = b.Where(sq.Eq{"source_normalized": textutil.Normalize(pattern)})
	} else {
		b = b.Where(sq.Expr(`source_text LIKE ? ESCAPE '\'`, "%"+escaped+"%"))
	}
	b = b.OrderByClause(`CASE WHEN lower(source_text) = lower(?) THEN 0 WHEN source_text LIKE ? ESCAPE '\' THEN 1 ELSE 2 END`, pattern, escaped+"%").
		OrderBy("length(source_text)", "updated_at DESC", "id")
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	return selectMany(ctx, s, "search units", b, scanUnit)
}

// ExactUnits returns units whose normalized source text equals text. An empty
// projectID searches every project.
func (s *Store) ExactUnits(ctx context.Context, projectID, text string, pair LanguagePair) ([]*TranslationUnit, error) {
	b := s.sb.Select(unitColumns...).From(unitTable).
		Where(sq.Eq{"source_normalized": textutil.Normalize(text)})
	if projectID != "" {
		b = b.Where(sq.Eq{"project_id": projectID})
	}
	b = whereLanguages(b, pair.Source, pair.Target).OrderBy("updated_at DESC", "id")
	if s.candidateLimit > 0 {
		b = b.Limit(uint64(s.candidateLimit))
	}
	return selectMany(ctx, s, "exact units", b, scanUnit)
}

// CandidateUnits prefilters units for approximate matching by OR-ing
// substring matches over the significant query words. With no significant
// words it falls back to the most recent units for the pair.
func (s *Store) CandidateUnits(ctx context.Context, q CandidateQuery) ([]*TranslationUnit, error) {
	b := s.sb.Select(unitColumns...).From(unitTable)
	if q.ProjectID != "" {
		b = b.Where(sq.Eq{"project_id": q.ProjectID})
	}
	b = whereLanguages(b, q.Pair.Source, q.Pair.Target)
	if words := SignificantWords(q.Words); len(words) > 0 {
		or := make(sq.Or, 0, len(words))
		for _, w := range words {
			or = append(or, sq.Expr(`source_text LIKE ? ESCAPE '\'`, "%"+escapeLike(w)+"%"))
		}
		b = b.Where(or)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.candidateLimit
	}
	b = b.OrderBy("updated_at DESC", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return selectMany(ctx, s, "candidate units", b, scanUnit)
}

// SignificantWords lowercases, deduplicates, and keeps words longer than
// three characters.
func SignificantWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if utf8.RuneCountInString(w) < significantWordRunes {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func whereLanguages(b sq.SelectBuilder, source, target string) sq.SelectBuilder {
	if source = language.Normalize(source); source != "" {
		b = b.Where(sq.Eq{"source_language": source})
	}
	if target = language.Normalize(target); target != "" {
		b = b.Where(sq.Eq{"target_language": target})
	}
	return b
}
