package terminology

import (
	"context"
	"log/slog"

	"tmengine/internal/cache"
	"tmengine/internal/config"
	"tmengine/internal/logging"
	"tmengine/internal/store"
)

// TermStore is the persistence the terminology service needs.
type TermStore interface {
	TermsByProject(ctx context.Context, projectID string) ([]*store.Term, error)
	ImportTerms(ctx context.Context, project string, inserts, updates []*store.Term) (int, error)
}

// Service highlights, checks, and suggests glossary terms.
type Service struct {
	store  TermStore
	cache  *cache.Layer
	cfg    config.Terminology
	logger *slog.Logger
}

// New builds a Service. layer may be nil.
func New(st TermStore, layer *cache.Layer, cfg config.Terminology, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:  st,
		cache:  layer,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "terminology"),
	}
}

// terms returns the project's glossary, populating the cache on a miss.
func (s *Service) terms(ctx context.Context, project string) ([]*store.Term, error) {
	if cached, ok := s.cache.Terms(project); ok {
		return cached, nil
	}
	terms, err := s.store.TermsByProject(ctx, project)
	if err != nil {
		return nil, err
	}
	s.cache.PutTerms(project, terms)
	return terms, nil
}

// InvalidateProject drops cached terms, patterns, and suggestions for project.
func (s *Service) InvalidateProject(project string) {
	s.cache.InvalidateProject(project)
}

// InvalidateTerm drops cached patterns for one term.
func (s *Service) InvalidateTerm(project, term string) {
	s.cache.InvalidateTerm(project, term)
}
