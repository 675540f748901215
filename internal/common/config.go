package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Logging     LoggingConfig   `toml:"logging"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Embeddings  EmbeddingConfig `toml:"embeddings"`
	Scoring     ScoringConfig   `toml:"scoring"`
	Ranking     RankingConfig   `toml:"ranking"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// QueueConfig controls the broker's named queues. Concurrency values are
// contracts: resume work is assumed to proceed in parallel.
type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g. "500ms"
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g. "5m"
	MaxReceive        int    `toml:"max_receive"`        // attempts before a message is dead-lettered
	RetryInitialWait  string `toml:"retry_initial_wait"` // backoff base between redeliveries
	JDConcurrency     int    `toml:"jd_concurrency"`
	ResumeConcurrency int    `toml:"resume_concurrency"`
	RankConcurrency   int    `toml:"rank_concurrency"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output     []string `toml:"output"` // "stdout", "file"
	TimeFormat string   `toml:"time_format"`
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// LLMConfig carries provider-independent ModelClient settings.
type LLMConfig struct {
	DefaultProvider  string `toml:"default_provider"` // "gemini" or "claude"
	MaxRetries       int    `toml:"max_retries"`
	InitialBackoff   string `toml:"initial_backoff"` // e.g. "1s"
	MaxBackoff       string `toml:"max_backoff"`     // e.g. "30s"
	BreakerThreshold int    `toml:"breaker_threshold"`
	BreakerCooldown  string `toml:"breaker_cooldown"`
	ChatTimeout      string `toml:"chat_timeout"`  // per-call deadline for completions
	EmbedTimeout     string `toml:"embed_timeout"` // per-call deadline for embeddings
	RequestsPerMin   int    `toml:"requests_per_min"`
}

type EmbeddingConfig struct {
	Model            string `toml:"model"`
	Dimension        int    `toml:"dimension" validate:"min=1"`
	BatchSize        int    `toml:"batch_size"`
	SentenceMinChars int    `toml:"sentence_min_chars"`
	OverallMaxChars  int    `toml:"overall_max_chars"`
	CacheTTL         string `toml:"cache_ttl"` // expiry for content-addressed cache entries
}

// ScoringConfig holds the tunable scorer thresholds and weights.
type ScoringConfig struct {
	SimilarityTauCoverage  float64            `toml:"similarity_tau_coverage"`
	SimilarityTauAlignment float64            `toml:"similarity_tau_alignment"`
	ComponentWeights       map[string]float64 `toml:"component_weights"` // composite weights: project/semantic/keyword
}

type RankingConfig struct {
	Enabled   bool   `toml:"enabled"`
	BatchSize int    `toml:"batch_size"`
	Model     string `toml:"model"` // empty uses the default chat provider/model
}

type PipelineConfig struct {
	ResumeDeadline string `toml:"resume_deadline"` // overall per-resume processing deadline, e.g. "5m"
	UploadDir      string `toml:"upload_dir"`
	ReportDir      string `toml:"report_dir"`
}

type SchedulerConfig struct {
	Enabled       bool   `toml:"enabled"`
	SweepSchedule string `toml:"sweep_schedule"` // cron format
	StaleAfter    string `toml:"stale_after"`    // re-enqueue resumes processing longer than this
}

// WebSocketConfig contains configuration for progress event streaming
type WebSocketConfig struct {
	ThrottleInterval string `toml:"throttle_interval"` // min interval between progress frames per client
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/seligo",
			},
		},
		Queue: QueueConfig{
			PollInterval:      "500ms",
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			RetryInitialWait:  "5s",
			JDConcurrency:     2,
			ResumeConcurrency: 5,
			RankConcurrency:   1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.1,
			MaxTokens:   8192,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.1,
			MaxTokens:   8192,
		},
		LLM: LLMConfig{
			DefaultProvider:  "gemini",
			MaxRetries:       3,
			InitialBackoff:   "1s",
			MaxBackoff:       "30s",
			BreakerThreshold: 5,
			BreakerCooldown:  "60s",
			ChatTimeout:      "60s",
			EmbedTimeout:     "30s",
			RequestsPerMin:   60,
		},
		Embeddings: EmbeddingConfig{
			Model:            "gemini-embedding-001",
			Dimension:        1536,
			BatchSize:        256,
			SentenceMinChars: 3,
			OverallMaxChars:  8000,
			CacheTTL:         "720h",
		},
		Scoring: ScoringConfig{
			SimilarityTauCoverage:  0.65,
			SimilarityTauAlignment: 0.55,
		},
		Ranking: RankingConfig{
			Enabled:   true,
			BatchSize: 30,
		},
		Pipeline: PipelineConfig{
			ResumeDeadline: "5m",
			UploadDir:      "./data/uploads",
			ReportDir:      "./data/reports",
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			SweepSchedule: "*/5 * * * *",
			StaleAfter:    "10m",
		},
		WebSocket: WebSocketConfig{
			ThrottleInterval: "250ms",
		},
	}
}

// LoadFromFiles loads configuration from TOML files in order, later files
// overriding earlier ones, then applies environment overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides (secrets and
// deployment-level settings only).
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SELIGO_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("SELIGO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SELIGO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("SELIGO_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("SELIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
}

// Validate checks structural constraints and duration formats.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"queue.poll_interval":      c.Queue.PollInterval,
		"queue.visibility_timeout": c.Queue.VisibilityTimeout,
		"queue.retry_initial_wait": c.Queue.RetryInitialWait,
		"llm.initial_backoff":      c.LLM.InitialBackoff,
		"llm.max_backoff":          c.LLM.MaxBackoff,
		"llm.breaker_cooldown":     c.LLM.BreakerCooldown,
		"llm.chat_timeout":         c.LLM.ChatTimeout,
		"llm.embed_timeout":        c.LLM.EmbedTimeout,
		"embeddings.cache_ttl":     c.Embeddings.CacheTTL,
		"pipeline.resume_deadline": c.Pipeline.ResumeDeadline,
		"scheduler.stale_after":    c.Scheduler.StaleAfter,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", name, value)
		}
	}

	if c.Ranking.BatchSize <= 0 {
		c.Ranking.BatchSize = 30
	}
	if c.Embeddings.BatchSize <= 0 {
		c.Embeddings.BatchSize = 256
	}
	if c.Embeddings.SentenceMinChars <= 0 {
		c.Embeddings.SentenceMinChars = 3
	}

	return nil
}

// MustDuration parses a duration string, falling back to a default on error.
// Config validation guarantees parseability for file-sourced values.
func MustDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
