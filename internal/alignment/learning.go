package alignment

import (
	"context"
	"maps"
	"math"
	"strings"
	"sync"

	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/textutil"
	"tmengine/internal/tmerr"
)

const weightBound = 2.0

type sample struct {
	features map[string]float64
	delta    float64
}

// model is a linear adjustment over pair features, trained online from
// user corrections.
type model struct {
	mu      sync.Mutex
	rate    float64
	limit   int
	weights map[string]float64
	history []sample
}

func newModel(rate float64, limit int) *model {
	return &model{
		rate:  rate,
		limit: limit,
		weights: map[string]float64{
			"position_similarity":  0.4,
			"length_ratio":         0.3,
			"structure_similarity": 0.2,
		},
	}
}

// adjust returns tanh of the weighted feature sum, in (-1,1).
func (m *model) adjust(f map[string]float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for k, v := range f {
		sum += m.weights[k] * v
	}
	return math.Tanh(sum)
}

// update moves each weight along delta times its feature value.
func (m *model) update(f map[string]float64, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range f {
		m.weights[k] = textutil.Clamp(m.weights[k]+m.rate*delta*v, -weightBound, weightBound)
	}
	m.history = append(m.history, sample{features: f, delta: delta})
	if m.limit > 0 && len(m.history) > m.limit {
		m.history = m.history[len(m.history)-m.limit:]
	}
}

func (m *model) snapshot() (map[string]float64, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.weights), len(m.history)
}

// Weights returns a copy of the learned feature weights and the number of
// corrections held in memory.
func (s *Service) Weights() (map[string]float64, int) {
	return s.model.snapshot()
}

// LearnFromCorrection records a user correction and nudges the model toward
// it. The correction is logged even when learning is disabled.
func (s *Service) LearnFromCorrection(ctx context.Context, original, corrected *store.Alignment, reason string) (*store.Correction, error) {
	if original == nil || corrected == nil {
		return nil, tmerr.Invalid("correction", "original and corrected alignments are required")
	}
	langs := Languages{Source: original.SourceLanguage, Target: original.TargetLanguage}
	c := &store.Correction{
		Fingerprint:         Fingerprint(original.SourceText, original.TargetText, langs),
		SourceLanguage:      original.SourceLanguage,
		TargetLanguage:      original.TargetLanguage,
		OriginalConfidence:  original.Confidence,
		CorrectedConfidence: corrected.Confidence,
		Original:            *original,
		Corrected:           *corrected,
		Reason:              strings.TrimSpace(reason),
	}
	if err := s.store.AppendCorrection(ctx, c); err != nil {
		return nil, err
	}
	if s.cfg.EnableLearning {
		s.train(c)
	}
	s.logger.Info("alignment correction recorded",
		logging.String("fingerprint", c.Fingerprint),
		logging.Float64("original_confidence", c.OriginalConfidence),
		logging.Float64("corrected_confidence", c.CorrectedConfidence),
		logging.String("reason", c.Reason),
	)
	return c, nil
}

func (s *Service) train(c *store.Correction) {
	a := c.Corrected
	f := features(a.SourceText, a.TargetText, offsetSimilarity(a.SourceStart, a.TargetStart))
	s.model.update(f, c.CorrectedConfidence-c.OriginalConfidence)
}

// Warm replays stored corrections into the model, oldest first.
func (s *Service) Warm(ctx context.Context) error {
	if !s.cfg.EnableLearning {
		return nil
	}
	corrections, err := s.store.Corrections(ctx, s.cfg.HistoryLimit)
	if err != nil {
		return err
	}
	for i := len(corrections) - 1; i >= 0; i-- {
		s.train(corrections[i])
	}
	s.logger.Debug("alignment model warmed", logging.Int("corrections", len(corrections)))
	return nil
}

// prior is the rank-decayed mean confidence delta of past corrections with
// the same fingerprint. Results are memoized in memo for one run.
func (s *Service) prior(ctx context.Context, fingerprint string, memo map[string]float64) (float64, error) {
	if s.cfg.CorrectionPriorWeight == 0 {
		return 0, nil
	}
	if v, ok := memo[fingerprint]; ok {
		return v, nil
	}
	entries, err := s.store.CorrectionsByFingerprint(ctx, fingerprint, s.cfg.HistoryLimit)
	if err != nil {
		return 0, err
	}
	var sum, weights float64
	for rank, c := range entries {
		w := 1 / float64(1+rank)
		sum += w * (c.CorrectedConfidence - c.OriginalConfidence)
		weights += w
	}
	v := 0.0
	if weights > 0 {
		v = s.cfg.CorrectionPriorWeight * sum / weights
	}
	memo[fingerprint] = v
	return v, nil
}
