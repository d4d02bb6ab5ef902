package engine

import (
	"context"
	"fmt"

	"tmengine/internal/logging"
	"tmengine/internal/match"
	"tmengine/internal/store"
	"tmengine/internal/terminology"
	"tmengine/internal/tmerr"
)

// Search ranks stored units against q.
func (e *Engine) Search(ctx context.Context, q match.Query) ([]match.Candidate, error) {
	return e.match.Search(ctx, q)
}

// Suggest schedules a debounced search for an editor key. deliver runs once
// unless a newer request for the same key supersedes this one.
func (e *Engine) Suggest(ctx context.Context, key string, q match.Query, deliver func([]match.Candidate, error)) {
	e.suggester.Request(ctx, key, q, deliver)
}

// Highlight marks terminology occurrences in text.
func (e *Engine) Highlight(ctx context.Context, text, project, lang string) ([]terminology.TermHighlight, error) {
	return e.terminology.Highlight(ctx, text, project, lang)
}

// SuggestTerms proposes glossary terms for near-miss words in text.
func (e *Engine) SuggestTerms(ctx context.Context, text, project, lang string) ([]terminology.TermSuggestion, error) {
	return e.terminology.Suggest(ctx, text, project, lang)
}

// AddUnit stores a unit and queues it for the archive.
func (e *Engine) AddUnit(ctx context.Context, u *store.TranslationUnit) error {
	if u == nil {
		return tmerr.Invalid("unit", "must not be nil")
	}
	if err := e.store.InsertUnit(ctx, u); err != nil {
		return err
	}
	e.enqueue(u)
	logging.WithContext(ctx, e.logger).Debug("unit added",
		logging.Project(u.ProjectID),
		logging.String("unit_id", u.ID),
	)
	return nil
}

// AddUnits stores units atomically and queues them for the archive.
func (e *Engine) AddUnits(ctx context.Context, units []*store.TranslationUnit) (int, error) {
	n, err := e.store.InsertUnits(ctx, units)
	if err != nil {
		return 0, err
	}
	for _, u := range units {
		e.enqueue(u)
	}
	return n, nil
}

// UpdateUnit replaces a stored unit and queues the new version.
func (e *Engine) UpdateUnit(ctx context.Context, u *store.TranslationUnit) error {
	if err := e.store.UpdateUnit(ctx, u); err != nil {
		return err
	}
	e.enqueue(u)
	return nil
}

// enqueue hands the appender a copy; the caller keeps ownership of u.
func (e *Engine) enqueue(u *store.TranslationUnit) {
	if e.appender != nil {
		e.appender.Enqueue(u.ProjectID, u.Clone())
	}
}

// Unit fetches a unit by id.
func (e *Engine) Unit(ctx context.Context, id string) (*store.TranslationUnit, error) {
	u, err := e.store.GetUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, tmerr.Wrap(tmerr.ErrNotFound, "engine", "get unit", fmt.Sprintf("unit %s", id), nil)
	}
	return u, nil
}

// DeleteUnit removes a unit by id. The archive keeps the row until the next
// refresh.
func (e *Engine) DeleteUnit(ctx context.Context, id string) error {
	deleted, err := e.store.DeleteUnit(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return tmerr.Wrap(tmerr.ErrNotFound, "engine", "delete unit", fmt.Sprintf("unit %s", id), nil)
	}
	return nil
}

// Term fetches a term by id.
func (e *Engine) Term(ctx context.Context, id string) (*store.Term, error) {
	t, err := e.store.GetTerm(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, tmerr.Wrap(tmerr.ErrNotFound, "engine", "get term", fmt.Sprintf("term %s", id), nil)
	}
	return t, nil
}

// AddTerm stores a term. The cache drops the project's term state through
// the store observer.
func (e *Engine) AddTerm(ctx context.Context, t *store.Term) error {
	if t == nil {
		return tmerr.Invalid("term", "must not be nil")
	}
	return e.store.InsertTerm(ctx, t)
}

// DeleteTerm removes a term by id.
func (e *Engine) DeleteTerm(ctx context.Context, id string) error {
	deleted, err := e.store.DeleteTerm(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return tmerr.Wrap(tmerr.ErrNotFound, "engine", "delete term", fmt.Sprintf("term %s", id), nil)
	}
	return nil
}

// Stats summarizes a project.
func (e *Engine) Stats(ctx context.Context, project string) (store.ProjectStats, error) {
	return e.store.ProjectStats(ctx, project)
}
