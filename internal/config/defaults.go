package config

const (
	defaultConfigPath = "~/.config/tmengine/config.toml"
	defaultDataDir    = "~/.local/share/tmengine"
	defaultLogDir     = "~/.local/share/tmengine/logs"
	defaultArchiveDir = "~/.local/share/tmengine/archive"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"

	defaultBusyTimeoutMS      = 5000
	defaultMaxOpenConns       = 8
	defaultMaxIdleConns       = 4
	defaultConnMaxIdleSeconds = 300
	defaultRetryAttempts      = 5
	defaultOperationTimeout   = 30
	defaultMaxTextLength      = 10000
	defaultCandidateLimit     = 500

	defaultSimilarityFloor      = 0.3
	defaultMaxResults           = 20
	defaultNGramSize            = 3
	defaultShortTextRunes       = 32
	defaultSuggestionDelayMS    = 300
	defaultSuggestionThreshold  = 0.5
	defaultSuggestionMaxResults = 5

	defaultMinConfidence       = 0.6
	defaultMaxContextLength    = 100
	defaultRehighlightPadding  = 50
	defaultSuggestLow          = 0.7
	defaultSuggestHigh         = 1.0
	defaultMaxSuggestions      = 20
	defaultMaxTermLength       = 200
	defaultWarnTermLength      = 100
	defaultMaxDefinitionLength = 1000

	defaultMaxLengthRatioDeviation = 2.5
	defaultPositionWeight          = 0.4
	defaultLengthWeight            = 0.3
	defaultStructureWeight         = 0.3
	defaultConfidenceThreshold     = 0.7
	defaultAutoValidationThreshold = 0.9
	defaultProblemSeverityFloor    = 0.5
	defaultHealthDecayWeight       = 0.5
	defaultLearningRate            = 0.01
	defaultHistoryLimit            = 1000
	defaultCorrectionPriorWeight   = 0.5

	defaultSuggestionTTL     = 300
	defaultMaxMatchEntries   = 2048
	defaultMaxPatternEntries = 4096

	defaultArchiveCompression = "zstd"
	defaultAppendBatchSize    = 256
	defaultAppendFlushSeconds = 5
	defaultAppendBuffer       = 1024
	defaultS3Region           = "us-east-1"
	defaultS3Prefix           = "tmengine"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			ArchiveDir: defaultArchiveDir,
		},
		Store: Store{
			BusyTimeoutMS:      defaultBusyTimeoutMS,
			MaxOpenConns:       defaultMaxOpenConns,
			MaxIdleConns:       defaultMaxIdleConns,
			ConnMaxIdleSeconds: defaultConnMaxIdleSeconds,
			RetryAttempts:      defaultRetryAttempts,
			OperationTimeout:   defaultOperationTimeout,
			MaxTextLength:      defaultMaxTextLength,
			CandidateLimit:     defaultCandidateLimit,
		},
		Match: Match{
			SimilarityFloor:      defaultSimilarityFloor,
			MaxResults:           defaultMaxResults,
			NGramSize:            defaultNGramSize,
			ShortTextRunes:       defaultShortTextRunes,
			SuggestionDelayMS:    defaultSuggestionDelayMS,
			SuggestionThreshold:  defaultSuggestionThreshold,
			SuggestionMaxResults: defaultSuggestionMaxResults,
		},
		Terminology: Terminology{
			CaseSensitive:       false,
			WordBoundariesOnly:  true,
			IncludeVariations:   true,
			AllowOverlaps:       false,
			MinConfidence:       defaultMinConfidence,
			MaxContextLength:    defaultMaxContextLength,
			RehighlightPadding:  defaultRehighlightPadding,
			SuggestLow:          defaultSuggestLow,
			SuggestHigh:         defaultSuggestHigh,
			MaxSuggestions:      defaultMaxSuggestions,
			MaxTermLength:       defaultMaxTermLength,
			WarnTermLength:      defaultWarnTermLength,
			MaxDefinitionLength: defaultMaxDefinitionLength,
		},
		Alignment: Alignment{
			MaxLengthRatioDeviation: defaultMaxLengthRatioDeviation,
			PositionWeight:          defaultPositionWeight,
			LengthWeight:            defaultLengthWeight,
			StructureWeight:         defaultStructureWeight,
			ConfidenceThreshold:     defaultConfidenceThreshold,
			AutoValidationThreshold: defaultAutoValidationThreshold,
			ProblemSeverityFloor:    defaultProblemSeverityFloor,
			HealthDecayWeight:       defaultHealthDecayWeight,
			EnableLearning:          true,
			LearningRate:            defaultLearningRate,
			HistoryLimit:            defaultHistoryLimit,
			CorrectionPriorWeight:   defaultCorrectionPriorWeight,
		},
		Cache: Cache{
			Enabled:           true,
			SuggestionTTL:     defaultSuggestionTTL,
			MaxMatchEntries:   defaultMaxMatchEntries,
			MaxPatternEntries: defaultMaxPatternEntries,
		},
		Archive: Archive{
			Enabled:            false,
			Compression:        defaultArchiveCompression,
			AppendBatchSize:    defaultAppendBatchSize,
			AppendFlushSeconds: defaultAppendFlushSeconds,
			AppendBuffer:       defaultAppendBuffer,
			S3Region:           defaultS3Region,
			S3Prefix:           defaultS3Prefix,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
