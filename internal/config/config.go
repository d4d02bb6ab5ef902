package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	ArchiveDir string `toml:"archive_dir"`
}

// Store contains configuration for the SQLite unit and term store.
type Store struct {
	BusyTimeoutMS      int `toml:"busy_timeout_ms"`
	MaxOpenConns       int `toml:"max_open_conns"`
	MaxIdleConns       int `toml:"max_idle_conns"`
	ConnMaxIdleSeconds int `toml:"conn_max_idle_seconds"`
	RetryAttempts      int `toml:"retry_attempts"`
	OperationTimeout   int `toml:"operation_timeout_seconds"`
	MaxTextLength      int `toml:"max_text_length"`
	CandidateLimit     int `toml:"candidate_limit"`
}

// Match contains configuration for translation-memory retrieval.
type Match struct {
	SimilarityFloor      float64 `toml:"similarity_floor"`
	MaxResults           int     `toml:"max_results"`
	NGramSize            int     `toml:"ngram_size"`
	ShortTextRunes       int     `toml:"short_text_runes"`
	SuggestionDelayMS    int     `toml:"suggestion_delay_ms"`
	SuggestionThreshold  float64 `toml:"suggestion_threshold"`
	SuggestionMaxResults int     `toml:"suggestion_max_results"`
}

// Terminology contains configuration for highlighting, consistency checks,
// term suggestions, and glossary import.
type Terminology struct {
	CaseSensitive       bool    `toml:"case_sensitive"`
	WordBoundariesOnly  bool    `toml:"word_boundaries_only"`
	IncludeVariations   bool    `toml:"include_variations"`
	AllowOverlaps       bool    `toml:"allow_overlaps"`
	MinConfidence       float64 `toml:"min_confidence"`
	MaxContextLength    int     `toml:"max_context_length"`
	RehighlightPadding  int     `toml:"rehighlight_padding"`
	SuggestLow          float64 `toml:"suggest_low"`
	SuggestHigh         float64 `toml:"suggest_high"`
	MaxSuggestions      int     `toml:"max_suggestions"`
	MaxTermLength       int     `toml:"max_term_length"`
	WarnTermLength      int     `toml:"warn_term_length"`
	MaxDefinitionLength int     `toml:"max_definition_length"`
}

// Alignment contains configuration for sentence alignment scoring.
type Alignment struct {
	MaxLengthRatioDeviation float64 `toml:"max_length_ratio_deviation"`
	PositionWeight          float64 `toml:"position_weight"`
	LengthWeight            float64 `toml:"length_weight"`
	StructureWeight         float64 `toml:"structure_weight"`
	ConfidenceThreshold     float64 `toml:"confidence_threshold"`
	AutoValidationThreshold float64 `toml:"auto_validation_threshold"`
	ProblemSeverityFloor    float64 `toml:"problem_severity_floor"`
	HealthDecayWeight       float64 `toml:"health_decay_weight"`
	EnableLearning          bool    `toml:"enable_learning"`
	LearningRate            float64 `toml:"learning_rate"`
	HistoryLimit            int     `toml:"history_limit"`
	CorrectionPriorWeight   float64 `toml:"correction_prior_weight"`
}

// Cache contains configuration for the in-process cache layer.
type Cache struct {
	Enabled           bool `toml:"enabled"`
	SuggestionTTL     int  `toml:"suggestion_ttl_seconds"`
	MaxMatchEntries   int  `toml:"max_match_entries"`
	MaxPatternEntries int  `toml:"max_pattern_entries"`
}

// Archive contains configuration for the columnar archive and its optional
// object-storage sink.
type Archive struct {
	Enabled            bool   `toml:"enabled"`
	Compression        string `toml:"compression"`
	AppendBatchSize    int    `toml:"append_batch_size"`
	AppendFlushSeconds int    `toml:"append_flush_seconds"`
	AppendBuffer       int    `toml:"append_buffer"`
	S3Bucket           string `toml:"s3_bucket"`
	S3Region           string `toml:"s3_region"`
	S3Prefix           string `toml:"s3_prefix"`
	S3AccessKey        string `toml:"s3_access_key"`
	S3SecretKey        string `toml:"s3_secret_key"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`

	// FileLevel applies to tmengine.log; empty means Level.
	FileLevel string `toml:"file_level"`
}

// Config encapsulates all configuration values for tmengine.
//
// Configuration sections by subsystem:
//   - Paths: database, log, and archive directories
//   - Store: SQLite pool sizing, retry, and timeouts
//   - Match: similarity floor and suggestion debounce
//   - Terminology: highlight, suggestion, and glossary limits
//   - Alignment: scoring weights and learning parameters
//   - Cache: cache sizing and expiry
//   - Archive: Parquet archive and S3 sink
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Store       Store       `toml:"store"`
	Match       Match       `toml:"match"`
	Terminology Terminology `toml:"terminology"`
	Alignment   Alignment   `toml:"alignment"`
	Cache       Cache       `toml:"cache"`
	Archive     Archive     `toml:"archive"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env"), ".env"); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv populates unset environment variables from the first existing
// .env files. Variables already present in the environment win.
func loadDotEnv(paths ...string) error {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load env file %s: %w", abs, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tmengine.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories, plus the archive
// directory when archiving is enabled.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Archive.Enabled && strings.TrimSpace(c.Paths.ArchiveDir) != "" {
		if err := os.MkdirAll(c.Paths.ArchiveDir, 0o755); err != nil {
			return fmt.Errorf("create archive directory %q: %w", c.Paths.ArchiveDir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "tmengine.db")
}

// OperationTimeout returns the default per-call storage timeout.
func (c *Config) OperationTimeout() time.Duration {
	return time.Duration(c.Store.OperationTimeout) * time.Second
}

// SuggestionDelay returns the debounce delay for suggestion mode.
func (c *Config) SuggestionDelay() time.Duration {
	return time.Duration(c.Match.SuggestionDelayMS) * time.Millisecond
}

// S3Enabled reports whether archive files are mirrored to object storage.
func (c *Config) S3Enabled() bool {
	return c.Archive.Enabled && strings.TrimSpace(c.Archive.S3Bucket) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
