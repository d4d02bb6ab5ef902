package match

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tmengine/internal/config"
	"tmengine/internal/logging"
)

// Searcher runs a match query.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Candidate, error)
}

// SuggesterOptions tunes debounced suggestions.
type SuggesterOptions struct {
	Delay      time.Duration
	Threshold  float64
	MaxResults int
}

// OptionsFromConfig reads suggestion settings from the match config.
func OptionsFromConfig(cfg config.Match) SuggesterOptions {
	return SuggesterOptions{
		Delay:      time.Duration(cfg.SuggestionDelayMS) * time.Millisecond,
		Threshold:  cfg.SuggestionThreshold,
		MaxResults: cfg.SuggestionMaxResults,
	}
}

type pendingRequest struct {
	timer  *time.Timer
	cancel context.CancelFunc
}

// Suggester debounces as-you-type searches per editor key. A new request for
// a key supersedes any pending or in-flight request for the same key, and a
// superseded request never delivers.
type Suggester struct {
	searcher Searcher
	opts     SuggesterOptions
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingRequest
	closed  bool
	wg      sync.WaitGroup
}

// NewSuggester builds a Suggester over searcher.
func NewSuggester(searcher Searcher, opts SuggesterOptions, logger *slog.Logger) *Suggester {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	return &Suggester{
		searcher: searcher,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "suggester"),
		pending:  make(map[string]*pendingRequest),
	}
}

// Request schedules a search for key after the debounce delay. deliver runs
// on a timer goroutine with at most MaxResults candidates at or above the
// threshold. Requests after Close are dropped.
func (s *Suggester) Request(ctx context.Context, key string, q Query, deliver func([]Candidate, error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	q.SimilarityFloor = s.opts.Threshold
	q.MaxResults = s.opts.MaxResults

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.supersedeLocked(key)

	reqCtx, cancel := context.WithCancel(ctx)
	req := &pendingRequest{cancel: cancel}
	s.wg.Add(1)
	req.timer = time.AfterFunc(s.opts.Delay, func() {
		defer s.wg.Done()
		defer cancel()
		s.run(reqCtx, key, req, q, deliver)
	})
	s.pending[key] = req
}

func (s *Suggester) supersedeLocked(key string) {
	prev, ok := s.pending[key]
	if !ok {
		return
	}
	delete(s.pending, key)
	prev.cancel()
	if prev.timer.Stop() {
		s.wg.Done()
	}
}

func (s *Suggester) run(ctx context.Context, key string, req *pendingRequest, q Query, deliver func([]Candidate, error)) {
	if ctx.Err() != nil {
		return
	}
	results, err := s.searcher.Search(ctx, q)

	s.mu.Lock()
	current := s.pending[key] == req
	if current {
		delete(s.pending, key)
	}
	s.mu.Unlock()

	if !current || ctx.Err() != nil {
		s.logger.Debug("suggestion superseded", logging.String("key", key))
		return
	}
	if len(results) > s.opts.MaxResults {
		results = results[:s.opts.MaxResults]
	}
	if deliver != nil {
		deliver(results, err)
	}
}

// Pending reports how many requests are waiting or running.
func (s *Suggester) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels pending requests and waits for running ones to return.
func (s *Suggester) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for key := range s.pending {
		s.supersedeLocked(key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
