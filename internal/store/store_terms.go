package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"tmengine/internal/tmerr"
)

const termTable = "terms"

var termColumns = []string{"id", "project_id", "term", "definition", "do_not_translate", "created_at", "updated_at"}

func scanTerm(scanner rowScanner) (*Term, error) {
	var (
		t          Term
		definition sql.NullString
		dnt        sql.NullInt64
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&t.ID, &t.ProjectID, &t.Term, &definition, &dnt, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	t.Definition = stringPtr(definition)
	t.DoNotTranslate = dnt.Valid && dnt.Int64 != 0
	t.CreatedAt = parseTime(createdRaw)
	t.UpdatedAt = parseTime(updatedRaw)
	return &t, nil
}

func prepareTerm(t *Term) error {
	if t == nil {
		return tmerr.Invalid("term", "must not be nil")
	}
	t.ProjectID = strings.TrimSpace(t.ProjectID)
	t.Term = strings.TrimSpace(t.Term)
	stamp(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return t.Validate()
}

func insertTermTx(ctx context.Context, tx *sql.Tx, sb sq.StatementBuilderType, t *Term) error {
	_, err := execBuilder(ctx, tx, sb.Insert(termTable).
		Columns(termColumns...).
		Values(t.ID, t.ProjectID, t.Term, nullString(t.Definition), boolInt(t.DoNotTranslate),
			formatTime(t.CreatedAt), formatTime(t.UpdatedAt)))
	return err
}

// InsertTerm stores one term. A term already present in the project under any
// letter case is a validation error on field "term".
func (s *Store) InsertTerm(ctx context.Context, t *Term) error {
	if err := prepareTerm(t); err != nil {
		return err
	}
	return s.write(ctx, "insert term", func(tx *sql.Tx) ([]WriteEvent, error) {
		if err := insertTermTx(ctx, tx, s.sb, t); err != nil {
			return nil, err
		}
		return []WriteEvent{{ProjectID: t.ProjectID, Entity: EntityTerm, Terms: []string{t.Term}}}, nil
	})
}

// InsertTerms stores every term in one transaction.
func (s *Store) InsertTerms(ctx context.Context, terms []*Term) (int, error) {
	if len(terms) == 0 {
		return 0, nil
	}
	for i, t := range terms {
		if err := prepareTerm(t); err != nil {
			return 0, fmt.Errorf("term %d: %w", i, err)
		}
	}
	err := s.write(ctx, "insert terms", func(tx *sql.Tx) ([]WriteEvent, error) {
		byProject := make(map[string][]string)
		var order []string
		for _, t := range terms {
			if err := insertTermTx(ctx, tx, s.sb, t); err != nil {
				return nil, err
			}
			if _, ok := byProject[t.ProjectID]; !ok {
				order = append(order, t.ProjectID)
			}
			byProject[t.ProjectID] = append(byProject[t.ProjectID], t.Term)
		}
		events := make([]WriteEvent, 0, len(order))
		for _, project := range order {
			events = append(events, WriteEvent{ProjectID: project, Entity: EntityTerm, Terms: byProject[project]})
		}
		return events, nil
	})
	if err != nil {
		return 0, err
	}
	return len(terms), nil
}

func prepareTermUpdate(t *Term) error {
	if t == nil || strings.TrimSpace(t.ID) == "" {
		return tmerr.Invalid("id", "must not be empty")
	}
	t.Term = strings.TrimSpace(t.Term)
	t.UpdatedAt = nowUTC()
	if t.CreatedAt.IsZero() || t.CreatedAt.After(t.UpdatedAt) {
		t.CreatedAt = t.UpdatedAt
	}
	return t.Validate()
}

// updateTermTx rewrites t and returns the term texts whose cached state it
// invalidates.
func updateTermTx(ctx context.Context, tx *sql.Tx, sb sq.StatementBuilderType, t *Term) ([]string, error) {
	var previous string
	err := tx.QueryRowContext(ctx, "SELECT term FROM terms WHERE id = ? AND project_id = ?", t.ID, t.ProjectID).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tmerr.Wrap(tmerr.ErrNotFound, component, "update term", fmt.Sprintf("term %s", t.ID), nil)
	}
	if err != nil {
		return nil, err
	}
	if _, err := execBuilder(ctx, tx, sb.Update(termTable).
		SetMap(map[string]any{
			"term":             t.Term,
			"definition":       nullString(t.Definition),
			"do_not_translate": boolInt(t.DoNotTranslate),
			"updated_at":       formatTime(t.UpdatedAt),
		}).
		Where(sq.Eq{"id": t.ID})); err != nil {
		return nil, err
	}
	affected := []string{t.Term}
	if !strings.EqualFold(previous, t.Term) {
		affected = append(affected, previous)
	}
	return affected, nil
}

// UpdateTerm rewrites an existing term's text, definition, and flag.
func (s *Store) UpdateTerm(ctx context.Context, t *Term) error {
	if err := prepareTermUpdate(t); err != nil {
		return err
	}
	return s.write(ctx, "update term", func(tx *sql.Tx) ([]WriteEvent, error) {
		affected, err := updateTermTx(ctx, tx, s.sb, t)
		if err != nil {
			return nil, err
		}
		return []WriteEvent{{ProjectID: t.ProjectID, Entity: EntityTerm, Terms: affected}}, nil
	})
}

// ImportTerms inserts and updates terms of one project in a single
// transaction. Any failure leaves the glossary untouched.
func (s *Store) ImportTerms(ctx context.Context, project string, inserts, updates []*Term) (int, error) {
	if len(inserts) == 0 && len(updates) == 0 {
		return 0, nil
	}
	for i, t := range inserts {
		if err := prepareTerm(t); err != nil {
			return 0, fmt.Errorf("term %d: %w", i, err)
		}
	}
	for i, t := range updates {
		if err := prepareTermUpdate(t); err != nil {
			return 0, fmt.Errorf("update %d: %w", i, err)
		}
	}
	err := s.write(ctx, "import terms", func(tx *sql.Tx) ([]WriteEvent, error) {
		var affected []string
		for _, t := range updates {
			terms, err := updateTermTx(ctx, tx, s.sb, t)
			if err != nil {
				return nil, err
			}
			affected = append(affected, terms...)
		}
		for _, t := range inserts {
			if err := insertTermTx(ctx, tx, s.sb, t); err != nil {
				return nil, err
			}
			affected = append(affected, t.Term)
		}
		return []WriteEvent{{ProjectID: project, Entity: EntityTerm, Terms: affected}}, nil
	})
	if err != nil {
		return 0, err
	}
	return len(inserts), nil
}

// DeleteTerm removes a term and reports whether it existed.
func (s *Store) DeleteTerm(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.write(ctx, "delete term", func(tx *sql.Tx) ([]WriteEvent, error) {
		deleted = false
		var project, text string
		err := tx.QueryRowContext(ctx, "SELECT project_id, term FROM terms WHERE id = ?", id).Scan(&project, &text)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if _, err := execBuilder(ctx, tx, s.sb.Delete(termTable).Where(sq.Eq{"id": id})); err != nil {
			return nil, err
		}
		deleted = true
		return []WriteEvent{{ProjectID: project, Entity: EntityTerm, Terms: []string{text}}}, nil
	})
	return deleted, err
}

// GetTerm fetches a term by id. It returns (nil, nil) when none exists.
func (s *Store) GetTerm(ctx context.Context, id string) (*Term, error) {
	return selectOne(ctx, s, "get term", s.sb.Select(termColumns...).From(termTable).Where(sq.Eq{"id": id}), scanTerm)
}

// TermsByProject lists a project's terms ordered case-insensitively.
func (s *Store) TermsByProject(ctx context.Context, projectID string) ([]*Term, error) {
	return selectMany(ctx, s, "list terms", s.sb.Select(termColumns...).From(termTable).
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("term", "id"), scanTerm)
}

// FindTerm looks a term up by text, ignoring letter case.
func (s *Store) FindTerm(ctx context.Context, projectID, text string) (*Term, error) {
	return selectOne(ctx, s, "find term", s.sb.Select(termColumns...).From(termTable).
		Where(sq.Eq{"project_id": projectID, "term": strings.TrimSpace(text)}), scanTerm)
}

// SearchTerms matches term text or definition by substring, or term text by
// case-insensitive equality when exact is set.
func (s *Store) SearchTerms(ctx context.Context, projectID, pattern string, exact bool) ([]*Term, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, tmerr.Invalid("pattern", "must not be empty")
	}
	b := s.sb.Select(termColumns...).From(termTable).Where(sq.Eq{"project_id": projectID})
	if exact {
		b = b.Where(sq.Eq{"term": pattern})
	} else {
		like := "%" + escapeLike(pattern) + "%"
		b = b.Where(sq.Or{
			sq.Expr(`term LIKE ? ESCAPE '\'`, like),
			sq.Expr(`definition LIKE ? ESCAPE '\'`, like),
		})
	}
	return selectMany(ctx, s, "search terms", b.OrderBy("length(term)", "term"), scanTerm)
}
