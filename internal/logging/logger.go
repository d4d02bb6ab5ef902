package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"tmengine/internal/config"
)

// LogFileName is the JSON log written under paths.log_dir.
const LogFileName = "tmengine.log"

// Options describes logger construction parameters. OutputPaths accepts
// "stdout", "stderr", or file paths; it defaults to stderr.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	handler, err := newHandler(opts)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

func newHandler(opts Options) (slog.Handler, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	addSource := level.Level() <= slog.LevelDebug

	var build func(io.Writer, *slog.LevelVar, bool) slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		build = newPrettyHandler
	case "json":
		build = newJSONHandler
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	paths := opts.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stderr"}
	}
	w, err := openWriters(paths)
	if err != nil {
		return nil, err
	}
	return build(w, level, addSource), nil
}

// NewFromConfig logs to stderr in the configured format. When paths.log_dir
// is set, a JSON copy at logging.file_level also goes to tmengine.log.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	console, err := newHandler(Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, err
	}
	dir := strings.TrimSpace(cfg.Paths.LogDir)
	if dir == "" {
		return slog.New(console), nil
	}

	fileLevel := cfg.Logging.FileLevel
	if strings.TrimSpace(fileLevel) == "" {
		fileLevel = cfg.Logging.Level
	}
	file, err := newHandler(Options{
		Level:       fileLevel,
		Format:      "json",
		OutputPaths: []string{filepath.Join(dir, LogFileName)},
	})
	if err != nil {
		return nil, err
	}
	return slog.New(newFanoutHandler(console, file)), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openWriters opens each distinct destination once. Files are created with
// their parent directories and opened for append.
func openWriters(paths []string) (io.Writer, error) {
	var writers []io.Writer
	var seen []string
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" || slices.Contains(seen, path) {
			continue
		}
		seen = append(seen, path)

		switch path {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", path, err)
			}
			writers = append(writers, f)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stderr, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
