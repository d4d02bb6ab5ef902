package match

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"tmengine/internal/cache"
	"tmengine/internal/config"
	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/textutil"
	"tmengine/internal/tmerr"
)

// Strategy names the retrieval strategy that produced a candidate.
type Strategy string

const (
	StrategyExact Strategy = "exact"
	StrategyFuzzy Strategy = "fuzzy"
	StrategyNGram Strategy = "ngram"
)

// Query describes one retrieval request.
type Query struct {
	Text string
	// ProjectID scopes the search. Empty searches every project.
	ProjectID string
	Pair      store.LanguagePair
	// SimilarityFloor discards weaker candidates. Zero uses the configured floor.
	SimilarityFloor float64
	// MaxResults truncates the ranked list. Zero uses the configured limit.
	MaxResults int
}

// Candidate is one ranked retrieval result.
type Candidate struct {
	Unit            *store.TranslationUnit `json:"unit"`
	ConfidenceScore float64                `json:"confidence_score"`
	SimilarityScore float64                `json:"similarity_score"`
	RankScore       float64                `json:"rank_score"`
	Strategy        Strategy               `json:"strategy"`
}

// UnitSource supplies stored units to the engine.
type UnitSource interface {
	ExactUnits(ctx context.Context, projectID, text string, pair store.LanguagePair) ([]*store.TranslationUnit, error)
	CandidateUnits(ctx context.Context, q store.CandidateQuery) ([]*store.TranslationUnit, error)
}

// Engine runs translation-memory searches.
type Engine struct {
	units  UnitSource
	cache  *cache.Layer
	cfg    config.Match
	logger *slog.Logger
}

// New builds an Engine. layer may be nil.
func New(units UnitSource, layer *cache.Layer, cfg config.Match, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.NGramSize <= 0 {
		cfg.NGramSize = 3
	}
	return &Engine{
		units:  units,
		cache:  layer,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "match"),
	}
}

func (e *Engine) resolve(q Query) (Query, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, tmerr.Invalid("query", "must not be empty")
	}
	if q.SimilarityFloor < 0 || q.SimilarityFloor > 1 {
		return q, tmerr.Invalid("similarity_floor", "must be between 0 and 1")
	}
	if q.MaxResults < 0 {
		return q, tmerr.Invalid("max_results", "must not be negative")
	}
	if q.SimilarityFloor == 0 {
		q.SimilarityFloor = e.cfg.SimilarityFloor
	}
	if q.MaxResults == 0 {
		q.MaxResults = e.cfg.MaxResults
	}
	q.Pair = q.Pair.Normalized()
	return q, nil
}

func cacheKey(q Query) string {
	return fmt.Sprintf("%s|%s|%s|%s|%.4f|%d", q.ProjectID, q.Text, q.Pair.Source, q.Pair.Target, q.SimilarityFloor, q.MaxResults)
}

// Search returns ranked candidates for q.
func (e *Engine) Search(ctx context.Context, q Query) ([]Candidate, error) {
	q, err := e.resolve(q)
	if err != nil {
		return nil, err
	}
	key := cacheKey(q)
	if cached, ok := e.cache.Matches(q.ProjectID, key); ok {
		if list, ok := cached.([]Candidate); ok {
			return slices.Clone(list), nil
		}
	}

	merged := newMergeSet()
	exact, err := e.units.ExactUnits(ctx, q.ProjectID, q.Text, q.Pair)
	if err != nil {
		return nil, err
	}
	for _, u := range exact {
		merged.add(newCandidate(u, 1.0, StrategyExact))
	}

	if merged.len() < q.MaxResults {
		pool, err := e.units.CandidateUnits(ctx, store.CandidateQuery{
			ProjectID: q.ProjectID,
			Pair:      q.Pair,
			Words:     textutil.Words(q.Text),
		})
		if err != nil {
			return nil, err
		}
		for _, u := range pool {
			if merged.hasExact(u.ID) {
				continue
			}
			sim, strategy := e.score(q.Text, u.SourceText)
			merged.add(newCandidate(u, sim, strategy))
		}
	}

	out := merged.ranked(q.SimilarityFloor, q.MaxResults)
	e.cache.PutMatches(q.ProjectID, key, slices.Clone(out))
	e.logger.Debug("match search complete",
		logging.Project(q.ProjectID),
		logging.Pair(q.Pair.Source, q.Pair.Target),
		logging.Int("exact", len(exact)),
		logging.Int("results", len(out)),
	)
	return out, nil
}

// score escalates from fuzzy to n-gram similarity and reports the strategy
// that produced the higher score.
func (e *Engine) score(query, source string) (float64, Strategy) {
	fuzzy := textutil.WordSimilarity(query, source)
	if e.isShort(query) && e.isShort(source) {
		lev := textutil.LevenshteinSimilarity(strings.ToLower(textutil.Normalize(query)), strings.ToLower(textutil.Normalize(source)))
		fuzzy = max(fuzzy, lev)
	}
	ngram := textutil.NGramSimilarity(textutil.Normalize(query), textutil.Normalize(source), e.cfg.NGramSize)
	fuzzy, ngram = textutil.Clamp01(fuzzy), textutil.Clamp01(ngram)
	if ngram > fuzzy {
		return ngram, StrategyNGram
	}
	return fuzzy, StrategyFuzzy
}

func (e *Engine) isShort(text string) bool {
	limit := e.cfg.ShortTextRunes
	if limit <= 0 {
		return false
	}
	return utf8.RuneCountInString(text) <= limit
}

func newCandidate(u *store.TranslationUnit, similarity float64, strategy Strategy) Candidate {
	return Candidate{
		Unit:            u,
		ConfidenceScore: u.ConfidenceScore,
		SimilarityScore: similarity,
		RankScore:       (u.ConfidenceScore + similarity) / 2,
		Strategy:        strategy,
	}
}

// mergeSet deduplicates candidates by normalized source and target text.
type mergeSet struct {
	byKey   map[string]Candidate
	exactID map[string]struct{}
}

func newMergeSet() *mergeSet {
	return &mergeSet{byKey: make(map[string]Candidate), exactID: make(map[string]struct{})}
}

func dedupeKey(u *store.TranslationUnit) string {
	return textutil.Normalize(u.SourceText) + "\x00" + textutil.Normalize(u.TargetText)
}

func (m *mergeSet) add(c Candidate) {
	if c.Strategy == StrategyExact {
		m.exactID[c.Unit.ID] = struct{}{}
	}
	key := dedupeKey(c.Unit)
	cur, ok := m.byKey[key]
	if !ok || c.SimilarityScore > cur.SimilarityScore ||
		(c.SimilarityScore == cur.SimilarityScore && c.Unit.UpdatedAt.After(cur.Unit.UpdatedAt)) {
		m.byKey[key] = c
	}
}

func (m *mergeSet) hasExact(id string) bool {
	_, ok := m.exactID[id]
	return ok
}

func (m *mergeSet) len() int {
	return len(m.byKey)
}

func (m *mergeSet) ranked(floor float64, limit int) []Candidate {
	out := make([]Candidate, 0, len(m.byKey))
	for _, c := range m.byKey {
		if c.SimilarityScore < floor {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, compareCandidates)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(b.RankScore, a.RankScore); c != 0 {
		return c
	}
	if c := b.Unit.UpdatedAt.Compare(a.Unit.UpdatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Unit.ID, b.Unit.ID)
}
