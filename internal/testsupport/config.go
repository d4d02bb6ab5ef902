package testsupport

import (
	"path/filepath"
	"testing"

	"tmengine/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithArchive enables the Parquet archive without an object-storage sink.
func WithArchive() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Archive.Enabled = true
		b.cfg.Archive.S3Bucket = ""
	}
}

// WithLogLevel overrides the log level on the test config.
func WithLogLevel(level string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Logging.Level = level
	}
}

// WithoutCache disables the in-process cache layer.
func WithoutCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Enabled = false
	}
}

// WithConfig applies an arbitrary mutation to the test config.
func WithConfig(fn func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		fn(b.cfg)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
