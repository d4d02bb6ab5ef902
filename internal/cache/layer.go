package cache

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"tmengine/internal/config"
	"tmengine/internal/logging"
	"tmengine/internal/store"
)

// indicatorProject groups indicators, which are keyed by alignment id alone.
const indicatorProject = ""

// Indicator is a cached confidence indicator for one alignment.
type Indicator struct {
	AlignmentID string
	ProjectID   string
	Confidence  float64
	Level       string
	UpdatedAt   time.Time
}

// SegmentStats reports counters for one cache segment.
type SegmentStats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Stats reports counters for every segment.
type Stats struct {
	Terms       SegmentStats `json:"terms"`
	Patterns    SegmentStats `json:"patterns"`
	Suggestions SegmentStats `json:"suggestions"`
	Matches     SegmentStats `json:"matches"`
	Indicators  SegmentStats `json:"indicators"`
}

// Layer is the shared engine cache. The zero value is not usable; call New.
type Layer struct {
	enabled bool
	logger  *slog.Logger
	now     func() time.Time

	terms       *segment[[]*store.Term]
	patterns    *segment[*regexp.Regexp]
	suggestions *segment[any]
	matches     *segment[any]
	indicators  *segment[Indicator]
}

// New builds a Layer from the cache section of cfg. A disabled layer misses
// every lookup and ignores every put.
func New(cfg config.Cache, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = logging.NewNop()
	}
	ttl := time.Duration(cfg.SuggestionTTL) * time.Second
	return &Layer{
		enabled:     cfg.Enabled,
		logger:      logging.NewComponentLogger(logger, "cache"),
		now:         time.Now,
		terms:       newSegment[[]*store.Term](0, 0),
		patterns:    newSegment[*regexp.Regexp](cfg.MaxPatternEntries, 0),
		suggestions: newSegment[any](cfg.MaxMatchEntries, ttl),
		matches:     newSegment[any](cfg.MaxMatchEntries, 0),
		indicators:  newSegment[Indicator](0, 0),
	}
}

// Enabled reports whether the layer stores anything.
func (l *Layer) Enabled() bool {
	return l != nil && l.enabled
}

// Terms returns the cached term list for project.
func (l *Layer) Terms(project string) ([]*store.Term, bool) {
	if !l.Enabled() {
		return nil, false
	}
	return l.terms.get(project, "", l.now())
}

// PutTerms caches the term list for project.
func (l *Layer) PutTerms(project string, terms []*store.Term) {
	if !l.Enabled() {
		return
	}
	l.terms.put(project, "", terms, l.now())
}

func patternKey(term, variant string) string {
	return strings.ToLower(term) + "\x00" + variant
}

// Pattern returns the compiled pattern for a project term, compiling and
// caching it on a miss. variant distinguishes patterns compiled with
// different options for the same term.
func (l *Layer) Pattern(project, term, variant string, compile func() (*regexp.Regexp, error)) (*regexp.Regexp, error) {
	if !l.Enabled() {
		return compile()
	}
	key := patternKey(term, variant)
	if re, ok := l.patterns.get(project, key, l.now()); ok {
		return re, nil
	}
	re, err := compile()
	if err != nil {
		return nil, err
	}
	l.patterns.put(project, key, re, l.now())
	return re, nil
}

// Suggestions returns cached suggestions for project and key.
func (l *Layer) Suggestions(project, key string) (any, bool) {
	if !l.Enabled() {
		return nil, false
	}
	return l.suggestions.get(project, key, l.now())
}

// PutSuggestions caches suggestions until the configured TTL elapses.
func (l *Layer) PutSuggestions(project, key string, value any) {
	if !l.Enabled() {
		return
	}
	l.suggestions.put(project, key, value, l.now())
}

// Matches returns cached match results for project and key.
func (l *Layer) Matches(project, key string) (any, bool) {
	if !l.Enabled() {
		return nil, false
	}
	return l.matches.get(project, key, l.now())
}

// PutMatches caches match results.
func (l *Layer) PutMatches(project, key string, value any) {
	if !l.Enabled() {
		return
	}
	l.matches.put(project, key, value, l.now())
}

// Indicator returns the cached confidence indicator for an alignment.
func (l *Layer) Indicator(alignmentID string) (Indicator, bool) {
	if !l.Enabled() {
		return Indicator{}, false
	}
	return l.indicators.get(indicatorProject, alignmentID, l.now())
}

// PutIndicator caches a confidence indicator.
func (l *Layer) PutIndicator(ind Indicator) {
	if !l.Enabled() || ind.AlignmentID == "" {
		return
	}
	if ind.UpdatedAt.IsZero() {
		ind.UpdatedAt = l.now().UTC()
	}
	l.indicators.put(indicatorProject, ind.AlignmentID, ind, l.now())
}

// DropIndicator removes one alignment's indicator.
func (l *Layer) DropIndicator(alignmentID string) {
	if l == nil {
		return
	}
	l.indicators.mu.Lock()
	l.indicators.deleteLocked(indicatorProject, alignmentID)
	l.indicators.mu.Unlock()
}

// InvalidateProject drops the project's terms, patterns, suggestions, and
// match results.
func (l *Layer) InvalidateProject(project string) {
	if l == nil {
		return
	}
	dropped := l.terms.dropProject(project) +
		l.patterns.dropProject(project) +
		l.suggestions.dropProject(project) +
		l.matches.dropProject(project)
	if dropped > 0 {
		l.logger.Debug("project cache invalidated",
			logging.Project(project),
			logging.Int("entries", dropped),
		)
	}
}

// InvalidateTerm drops every compiled pattern for one term along with the
// project's term list and suggestions, which may embed it.
func (l *Layer) InvalidateTerm(project, term string) {
	if l == nil {
		return
	}
	l.patterns.dropPrefix(project, strings.ToLower(term)+"\x00")
	l.terms.dropProject(project)
	l.suggestions.dropProject(project)
}

// Clear empties every segment. Durable state is unaffected.
func (l *Layer) Clear() {
	if l == nil {
		return
	}
	l.terms.clear()
	l.patterns.clear()
	l.suggestions.clear()
	l.matches.clear()
	l.indicators.clear()
}

// Stats snapshots the counters of every segment.
func (l *Layer) Stats() Stats {
	if l == nil {
		return Stats{}
	}
	return Stats{
		Terms:       l.terms.stats(),
		Patterns:    l.patterns.stats(),
		Suggestions: l.suggestions.stats(),
		Matches:     l.matches.stats(),
		Indicators:  l.indicators.stats(),
	}
}

// OnWrite invalidates the written project's derived entries. Alignment
// writes leave text caches alone; the alignment service refreshes its own
// indicators.
func (l *Layer) OnWrite(ev store.WriteEvent) {
	switch ev.Entity {
	case store.EntityTerm:
		for _, term := range ev.Terms {
			l.InvalidateTerm(ev.ProjectID, term)
		}
		l.InvalidateProject(ev.ProjectID)
	case store.EntityUnit:
		l.InvalidateProject(ev.ProjectID)
		// Unscoped searches span every project, so any unit write stales them.
		if ev.ProjectID != "" {
			l.matches.dropProject("")
		}
	case store.EntityPhraseGroup:
		l.InvalidateProject(ev.ProjectID)
	case store.EntityChunk, store.EntityAlignment:
	}
}

var _ store.WriteObserver = (*Layer)(nil)
