package alignment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tmengine/internal/cache"
	"tmengine/internal/config"
	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/tmerr"
)

// SentenceAlignment is a persisted sentence alignment.
type SentenceAlignment = store.Alignment

// Store is the persistence the alignment service needs.
type Store interface {
	GetChunk(ctx context.Context, id string) (*store.Chunk, error)
	GetAlignment(ctx context.Context, id string) (*store.Alignment, error)
	SaveAlignment(ctx context.Context, a *store.Alignment) error
	ReplaceAlignments(ctx context.Context, remove []string, keep []*store.Alignment) error
	DeleteAlignment(ctx context.Context, id string) (bool, error)
	AlignmentsForChunks(ctx context.Context, sourceChunkID, targetChunkID string) ([]*store.Alignment, error)
	AlignmentsByLanguages(ctx context.Context, source, target string) ([]*store.Alignment, error)
	AppendCorrection(ctx context.Context, c *store.Correction) error
	Corrections(ctx context.Context, limit int) ([]*store.Correction, error)
	CorrectionsByFingerprint(ctx context.Context, fingerprint string, limit int) ([]*store.Correction, error)
}

// Service aligns sentences and manages stored alignments.
type Service struct {
	store  Store
	cache  *cache.Layer
	cfg    config.Alignment
	logger *slog.Logger
	model  *model
	now    func() time.Time
}

// New builds an alignment Service. layer may be nil.
func New(st Store, layer *cache.Layer, cfg config.Alignment, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:  st,
		cache:  layer,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "alignment"),
		model:  newModel(cfg.LearningRate, cfg.HistoryLimit),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) get(ctx context.Context, op, id string) (*store.Alignment, error) {
	a, err := s.store.GetAlignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, tmerr.Wrap(tmerr.ErrNotFound, "alignment", op, fmt.Sprintf("alignment %s", id), nil)
	}
	return a, nil
}

func (s *Service) chunk(ctx context.Context, op, id string) (*store.Chunk, error) {
	c, err := s.store.GetChunk(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, tmerr.Wrap(tmerr.ErrNotFound, "alignment", op, fmt.Sprintf("chunk %s", id), nil)
	}
	return c, nil
}

// chunkPair loads both chunks an alignment refers to.
func (s *Service) chunkPair(ctx context.Context, op string, a *store.Alignment) (*store.Chunk, *store.Chunk, error) {
	src, err := s.chunk(ctx, op, a.SourceChunkID)
	if err != nil {
		return nil, nil, err
	}
	tgt, err := s.chunk(ctx, op, a.TargetChunkID)
	if err != nil {
		return nil, nil, err
	}
	return src, tgt, nil
}

// AlignChunks aligns two stored chunks and persists the result. Alignments a
// user validated or rejected are kept, and new pairs overlapping them are
// discarded.
func (s *Service) AlignChunks(ctx context.Context, sourceChunkID, targetChunkID string, langs Languages) (*Result, error) {
	src, err := s.chunk(ctx, "align chunks", sourceChunkID)
	if err != nil {
		return nil, err
	}
	tgt, err := s.chunk(ctx, "align chunks", targetChunkID)
	if err != nil {
		return nil, err
	}
	result, err := s.Align(ctx, src.Text, tgt.Text, langs)
	if err != nil {
		return nil, err
	}
	result.ProjectID = src.ProjectID
	result.SourceChunkID = src.ID
	result.TargetChunkID = tgt.ID

	existing, err := s.store.AlignmentsForChunks(ctx, src.ID, tgt.ID)
	if err != nil {
		return nil, err
	}
	var remove []string
	var kept []*store.Alignment
	for _, a := range existing {
		if a.Status.Terminal() {
			kept = append(kept, a)
			continue
		}
		remove = append(remove, a.ID)
	}
	fresh := result.Alignments[:0]
	for _, a := range result.Alignments {
		a.ProjectID = src.ProjectID
		a.SourceChunkID = src.ID
		a.TargetChunkID = tgt.ID
		if overlapsAny(a, kept) {
			continue
		}
		fresh = append(fresh, a)
	}
	result.Alignments = fresh
	if err := s.store.ReplaceAlignments(ctx, remove, fresh); err != nil {
		return nil, err
	}
	for _, id := range remove {
		s.cache.DropIndicator(id)
	}
	result.Alignments = append(result.Alignments, kept...)
	sortAlignments(result.Alignments)
	s.finish(result)
	s.putIndicators(result.Alignments)

	s.logger.Info("chunks aligned",
		logging.Project(src.ProjectID),
		logging.String("source_chunk_id", src.ID),
		logging.String("target_chunk_id", tgt.ID),
		logging.Int("alignments", len(result.Alignments)),
		logging.Int("kept", len(kept)),
		logging.Float64("quality", result.Quality.Overall),
		logging.String("health", string(result.Health.Status)),
	)
	return result, nil
}

func overlapsAny(a *store.Alignment, others []*store.Alignment) bool {
	for _, o := range others {
		if a.SourceStart < o.SourceEnd && o.SourceStart < a.SourceEnd {
			return true
		}
	}
	return false
}

// Alignments lists the stored alignments between two chunks.
func (s *Service) Alignments(ctx context.Context, sourceChunkID, targetChunkID string) ([]*store.Alignment, error) {
	return s.store.AlignmentsForChunks(ctx, sourceChunkID, targetChunkID)
}

// Level names a confidence band for display.
func (s *Service) Level(confidence float64) string {
	switch {
	case confidence >= s.cfg.AutoValidationThreshold:
		return "high"
	case confidence >= s.cfg.ConfidenceThreshold:
		return "medium"
	default:
		return "low"
	}
}

func (s *Service) putIndicators(alignments []*store.Alignment) {
	for _, a := range alignments {
		s.cache.PutIndicator(cache.Indicator{
			AlignmentID: a.ID,
			ProjectID:   a.ProjectID,
			Confidence:  a.Confidence,
			Level:       s.Level(a.Confidence),
			UpdatedAt:   a.UpdatedAt,
		})
	}
}

// Indicator returns the confidence indicator for a stored alignment, reading
// through the cache.
func (s *Service) Indicator(ctx context.Context, id string) (cache.Indicator, error) {
	if ind, ok := s.cache.Indicator(id); ok {
		return ind, nil
	}
	a, err := s.get(ctx, "indicator", id)
	if err != nil {
		return cache.Indicator{}, err
	}
	ind := cache.Indicator{
		AlignmentID: a.ID,
		ProjectID:   a.ProjectID,
		Confidence:  a.Confidence,
		Level:       s.Level(a.Confidence),
		UpdatedAt:   a.UpdatedAt,
	}
	s.cache.PutIndicator(ind)
	return ind, nil
}
