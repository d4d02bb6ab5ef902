package config

import (
	"errors"
	"fmt"
	"math"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateMatch(); err != nil {
		return err
	}
	if err := c.validateTerminology(); err != nil {
		return err
	}
	if err := c.validateAlignment(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	if c.Store.MaxOpenConns <= 0 {
		return errors.New("store.max_open_conns must be positive")
	}
	if c.Store.MaxIdleConns < 0 || c.Store.MaxIdleConns > c.Store.MaxOpenConns {
		return errors.New("store.max_idle_conns must be between 0 and store.max_open_conns")
	}
	if c.Store.RetryAttempts <= 0 {
		return errors.New("store.retry_attempts must be positive")
	}
	if c.Store.BusyTimeoutMS < 0 {
		return errors.New("store.busy_timeout_ms must be non-negative")
	}
	if c.Store.OperationTimeout <= 0 {
		return errors.New("store.operation_timeout_seconds must be positive")
	}
	if c.Store.MaxTextLength <= 0 {
		return errors.New("store.max_text_length must be positive")
	}
	if c.Store.CandidateLimit <= 0 {
		return errors.New("store.candidate_limit must be positive")
	}
	return nil
}

func (c *Config) validateMatch() error {
	if err := unitInterval("match.similarity_floor", c.Match.SimilarityFloor); err != nil {
		return err
	}
	if err := unitInterval("match.suggestion_threshold", c.Match.SuggestionThreshold); err != nil {
		return err
	}
	if c.Match.MaxResults <= 0 {
		return errors.New("match.max_results must be positive")
	}
	if c.Match.NGramSize < 1 {
		return errors.New("match.ngram_size must be at least 1")
	}
	if c.Match.ShortTextRunes < 0 {
		return errors.New("match.short_text_runes must be non-negative")
	}
	if c.Match.SuggestionDelayMS < 0 {
		return errors.New("match.suggestion_delay_ms must be non-negative")
	}
	if c.Match.SuggestionMaxResults <= 0 {
		return errors.New("match.suggestion_max_results must be positive")
	}
	return nil
}

func (c *Config) validateTerminology() error {
	t := c.Terminology
	if err := unitInterval("terminology.min_confidence", t.MinConfidence); err != nil {
		return err
	}
	if err := unitInterval("terminology.suggest_low", t.SuggestLow); err != nil {
		return err
	}
	if err := unitInterval("terminology.suggest_high", t.SuggestHigh); err != nil {
		return err
	}
	if t.SuggestLow >= t.SuggestHigh {
		return errors.New("terminology.suggest_low must be below terminology.suggest_high")
	}
	if t.MaxContextLength < 0 {
		return errors.New("terminology.max_context_length must be non-negative")
	}
	if t.RehighlightPadding < 0 {
		return errors.New("terminology.rehighlight_padding must be non-negative")
	}
	if t.MaxSuggestions <= 0 {
		return errors.New("terminology.max_suggestions must be positive")
	}
	if t.MaxTermLength <= 0 || t.MaxDefinitionLength <= 0 {
		return errors.New("terminology.max_term_length and max_definition_length must be positive")
	}
	if t.WarnTermLength <= 0 || t.WarnTermLength > t.MaxTermLength {
		return errors.New("terminology.warn_term_length must be between 1 and terminology.max_term_length")
	}
	return nil
}

func (c *Config) validateAlignment() error {
	a := c.Alignment
	if a.MaxLengthRatioDeviation <= 0 {
		return errors.New("alignment.max_length_ratio_deviation must be positive")
	}
	for name, value := range map[string]float64{
		"alignment.position_weight":           a.PositionWeight,
		"alignment.length_weight":             a.LengthWeight,
		"alignment.structure_weight":          a.StructureWeight,
		"alignment.confidence_threshold":      a.ConfidenceThreshold,
		"alignment.auto_validation_threshold": a.AutoValidationThreshold,
		"alignment.problem_severity_floor":    a.ProblemSeverityFloor,
		"alignment.health_decay_weight":       a.HealthDecayWeight,
		"alignment.correction_prior_weight":   a.CorrectionPriorWeight,
	} {
		if err := unitInterval(name, value); err != nil {
			return err
		}
	}
	sum := a.PositionWeight + a.LengthWeight + a.StructureWeight
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("alignment weights must sum to 1, got %.3f", sum)
	}
	if a.LearningRate <= 0 || a.LearningRate > 1 {
		return errors.New("alignment.learning_rate must be in (0, 1]")
	}
	if a.HistoryLimit <= 0 {
		return errors.New("alignment.history_limit must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.SuggestionTTL < 0 {
		return errors.New("cache.suggestion_ttl_seconds must be non-negative")
	}
	if c.Cache.MaxMatchEntries < 0 || c.Cache.MaxPatternEntries < 0 {
		return errors.New("cache entry limits must be non-negative")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	switch c.Archive.Compression {
	case "zstd", "snappy", "gzip", "none":
	default:
		return fmt.Errorf("archive.compression: unsupported value %q", c.Archive.Compression)
	}
	if c.Archive.AppendBatchSize <= 0 {
		return errors.New("archive.append_batch_size must be positive")
	}
	if c.Archive.AppendFlushSeconds <= 0 {
		return errors.New("archive.append_flush_seconds must be positive")
	}
	if c.Archive.AppendBuffer <= 0 {
		return errors.New("archive.append_buffer must be positive")
	}
	if (c.Archive.S3AccessKey == "") != (c.Archive.S3SecretKey == "") {
		return errors.New("archive.s3_access_key and archive.s3_secret_key must be set together")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.FileLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.file_level: unsupported value %q", c.Logging.FileLevel)
	}
	return nil
}

func unitInterval(name string, value float64) error {
	if value < 0 || value > 1 || math.IsNaN(value) {
		return fmt.Errorf("%s must be between 0 and 1", name)
	}
	return nil
}
