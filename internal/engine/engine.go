package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tmengine/internal/alignment"
	"tmengine/internal/archive"
	"tmengine/internal/cache"
	"tmengine/internal/config"
	"tmengine/internal/linking"
	"tmengine/internal/logging"
	"tmengine/internal/match"
	"tmengine/internal/preflight"
	"tmengine/internal/store"
	"tmengine/internal/terminology"
	"tmengine/internal/tmerr"
)

// Engine is the assembled translation-memory engine.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	store       *store.Store
	cache       *cache.Layer
	match       *match.Engine
	suggester   *match.Suggester
	terminology *terminology.Service
	linking     *linking.Service
	alignment   *alignment.Service

	archive  *archive.Archive
	appender *archive.Appender
	sink     *archive.S3Sink

	closeOnce sync.Once
	closeErr  error
}

// Open builds an Engine. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, tmerr.Wrap(tmerr.ErrConfiguration, "engine", "open", "config is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	st, err := store.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	layer := cache.New(cfg.Cache, logger)
	st.AddObserver(layer)

	matcher := match.New(st, layer, cfg.Match, logger)
	e := &Engine{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "engine"),
		store:       st,
		cache:       layer,
		match:       matcher,
		suggester:   match.NewSuggester(matcher, match.OptionsFromConfig(cfg.Match), logger),
		terminology: terminology.New(st, layer, cfg.Terminology, logger),
		linking:     linking.New(st, logger),
		alignment:   alignment.New(st, layer, cfg.Alignment, logger),
	}

	if err := e.alignment.Warm(ctx); err != nil {
		logging.WarnWithContext(e.logger, "alignment model warm-up failed", "alignment_warm_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the corrections table with tmctl db check"),
			logging.String(logging.FieldImpact, "alignment scoring starts from default weights"),
		)
	}

	if cfg.Archive.Enabled {
		if err := e.openArchive(ctx, logger); err != nil {
			e.suggester.Close()
			_ = st.Close()
			return nil, err
		}
	}

	e.logger.Info("engine opened",
		logging.String("database", st.Path()),
		logging.Bool("archive", e.archive != nil),
		logging.Bool("cache", layer.Enabled()),
	)
	return e, nil
}

func (e *Engine) openArchive(ctx context.Context, logger *slog.Logger) error {
	var sink archive.Sink
	if e.cfg.S3Enabled() {
		s3sink, err := archive.NewS3Sink(ctx, e.cfg.Archive)
		if err != nil {
			return fmt.Errorf("archive sink: %w", err)
		}
		e.sink = s3sink
		sink = s3sink
	}
	arch, err := archive.New(e.cfg, e.store, sink, logger)
	if err != nil {
		return err
	}
	e.archive = arch
	e.appender = archive.NewAppender(arch, e.cfg.Archive, logger)
	return nil
}

// Close drains the archive appender and closes the store.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.suggester.Close()
		var errs []error
		if e.appender != nil {
			errs = append(errs, e.appender.Close(ctx))
		}
		errs = append(errs, e.store.Close())
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Store returns the underlying store.
func (e *Engine) Store() *store.Store { return e.store }

// Cache returns the shared cache layer.
func (e *Engine) Cache() *cache.Layer { return e.cache }

// Terminology returns the terminology service.
func (e *Engine) Terminology() *terminology.Service { return e.terminology }

// Linking returns the chunk linking service.
func (e *Engine) Linking() *linking.Service { return e.linking }

// Alignment returns the alignment service.
func (e *Engine) Alignment() *alignment.Service { return e.alignment }

// Suggester returns the debounced as-you-type matcher.
func (e *Engine) Suggester() *match.Suggester { return e.suggester }

// Archive returns the columnar archive, or nil when archiving is disabled.
func (e *Engine) Archive() *archive.Archive { return e.archive }

// Preflight runs the readiness checks for this engine's configuration.
func (e *Engine) Preflight(ctx context.Context) []preflight.Result {
	var sink preflight.Prober
	if e.sink != nil {
		sink = e.sink
	}
	return preflight.RunAll(ctx, e.cfg, e.store, sink)
}
