package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the audit tool.
type Config struct {
	LLM         LLMConfig        `yaml:"llm"`
	Embedding   EmbeddingConfig  `yaml:"embedding"`
	Retry       RetryConfig      `yaml:"retry"`
	StreamRetry RetryConfig      `yaml:"stream_retry"`
	Chain       ChainConfig      `yaml:"chain"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Extraction  ExtractionConfig `yaml:"extraction"`
	Audit       AuditConfig      `yaml:"audit"`
	Discovery   DiscoveryConfig  `yaml:"discovery"`
	Ingest      IngestConfig     `yaml:"ingest"`
	Store       StoreConfig      `yaml:"store"`
	Export      ExportConfig     `yaml:"export"`
	Notify      NotifyConfig     `yaml:"notify"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// LLMConfig holds completion service configuration.
type LLMConfig struct {
	Provider     string        `yaml:"provider"` // "openai", "anthropic"
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	APIKeyEnv    string        `yaml:"api_key_env"` // Environment variable for API key
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	SystemPrompt string        `yaml:"system_prompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "mock"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// RetryConfig describes a backoff schedule for rate-limited or failed requests.
type RetryConfig struct {
	BaseDelay       time.Duration `yaml:"base_delay"`
	Multiplier      float64       `yaml:"multiplier"`
	MaxDelay        time.Duration `yaml:"max_delay"` // 0 = uncapped
	MaxRetries      int           `yaml:"max_retries"`
	HonorRetryAfter bool          `yaml:"honor_retry_after"`
}

// ChainConfig bounds streaming continuation.
type ChainConfig struct {
	MaxContinuations int    `yaml:"max_continuations"`
	ContinuePrompt   string `yaml:"continue_prompt"`
}

// ClassifierConfig holds document classification settings.
type ClassifierConfig struct {
	Segments   int `yaml:"segments"`
	MaxRetries int `yaml:"max_retries"`
}

// ChunkStrategy selects a chunker and its size parameter.
type ChunkStrategy struct {
	Strategy string `yaml:"strategy"` // "paragraph", "fixed", "words"
	Size     int    `yaml:"size"`     // threshold chars, chunk count, or words
}

// ExtractionConfig holds extraction orchestration settings.
type ExtractionConfig struct {
	MaxInFlight int                      `yaml:"max_in_flight"` // 0 = one slot per programme
	Strategies  map[string]ChunkStrategy `yaml:"strategies"`    // keyed by extraction kind
	CacheSize   int                      `yaml:"cache_size"`
	CacheTTL    time.Duration            `yaml:"cache_ttl"`
}

// PassConfig holds per-pass audit settings.
type PassConfig struct {
	History bool `yaml:"history"`
}

// AuditConfig holds audit pass settings.
type AuditConfig struct {
	HistorySize    int                   `yaml:"history_size"`
	FollowupDelay  time.Duration         `yaml:"followup_delay"`
	ProgrammeDelay time.Duration         `yaml:"programme_delay"`
	Passes         map[string]PassConfig `yaml:"passes"`
}

// DiscoveryConfig holds programme discovery settings.
type DiscoveryConfig struct {
	Query      string `yaml:"query"`
	ChunkWords int    `yaml:"chunk_words"`
	TopK       int    `yaml:"top_k"`
	MaxRetries int    `yaml:"max_retries"`
}

// IngestConfig holds file selection for document ingestion.
type IngestConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "bolt", "sqlite", "memory"
	Path   string `yaml:"path"`   // empty = driver default under .perfaudit
}

// ExportConfig holds PDF render service settings.
type ExportConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NotifyConfig holds outbound notification settings.
type NotifyConfig struct {
	Slack SlackConfig `yaml:"slack"`
}

// SlackConfig holds Slack publishing settings.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
	APIURL   string `yaml:"api_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console", "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			BaseURL:      "https://api.openai.com/v1",
			APIKeyEnv:    "OPENAI_API_KEY",
			Temperature:  0.2,
			MaxTokens:    4096,
			SystemPrompt: "You are an assistant that audits government performance plans and reports.",
			Timeout:      5 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
		},
		Retry: RetryConfig{
			BaseDelay:       time.Second,
			Multiplier:      2,
			MaxDelay:        time.Minute,
			MaxRetries:      5,
			HonorRetryAfter: true,
		},
		StreamRetry: RetryConfig{
			BaseDelay:       time.Second,
			Multiplier:      2,
			MaxDelay:        10 * time.Second,
			MaxRetries:      5,
			HonorRetryAfter: true,
		},
		Chain: ChainConfig{
			MaxContinuations: 8,
			ContinuePrompt:   "continue",
		},
		Classifier: ClassifierConfig{
			Segments:   5,
			MaxRetries: 5,
		},
		Extraction: ExtractionConfig{
			MaxInFlight: 0,
			Strategies: map[string]ChunkStrategy{
				"plan-indicators":   {Strategy: "paragraph", Size: 1000},
				"report-indicators": {Strategy: "fixed", Size: 3},
				"report-deviation":  {Strategy: "fixed", Size: 4},
				"report-outcome":    {Strategy: "fixed", Size: 4},
				"plan-technical":    {Strategy: "paragraph", Size: 1000},
			},
			CacheSize: 256,
			CacheTTL:  24 * time.Hour,
		},
		Audit: AuditConfig{
			HistorySize:    5,
			FollowupDelay:  5 * time.Second,
			ProgrammeDelay: 10 * time.Second,
			Passes: map[string]PassConfig{
				"consistency":   {History: true},
				"measurability": {History: true},
				"relevance":     {History: false},
				"presentation":  {History: true},
			},
		},
		Discovery: DiscoveryConfig{
			Query:      "List all key Programmes",
			ChunkWords: 5000,
			TopK:       3,
			MaxRetries: 3,
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.txt", "**/*.md"},
			Excludes: []string{"**/.perfaudit/**", "**/.git/**"},
		},
		Store: StoreConfig{
			Driver: "bolt",
		},
		Export: ExportConfig{
			URL:     "http://localhost:3000/api/export-pdf",
			Timeout: time.Minute,
		},
		Notify: NotifyConfig{
			Slack: SlackConfig{
				TokenEnv: "SLACK_BOT_TOKEN",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for perfaudit.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "perfaudit.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, DataDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Classifier.Segments <= 0 {
		return fmt.Errorf("classifier.segments must be positive, got %d", c.Classifier.Segments)
	}
	if c.Retry.Multiplier < 1 || c.StreamRetry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be >= 1")
	}
	if c.Retry.MaxRetries < 0 || c.StreamRetry.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must not be negative")
	}
	if c.Chain.MaxContinuations < 0 {
		return fmt.Errorf("chain.max_continuations must not be negative")
	}
	if c.Audit.HistorySize <= 0 {
		return fmt.Errorf("audit.history_size must be positive, got %d", c.Audit.HistorySize)
	}
	for kind, s := range c.Extraction.Strategies {
		switch s.Strategy {
		case "paragraph", "fixed", "words":
		default:
			return fmt.Errorf("extraction.strategies.%s: unknown strategy %q", kind, s.Strategy)
		}
		if s.Size <= 0 {
			return fmt.Errorf("extraction.strategies.%s: size must be positive", kind)
		}
	}
	switch c.Store.Driver {
	case "bolt", "sqlite", "memory":
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DataDir is the per-workspace directory holding config and the record store.
const DataDir = ".perfaudit"

// StoreDBPath returns the path to the record store for the configured driver.
func (c *Config) StoreDBPath(dir string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Driver == "sqlite" {
		return filepath.Join(dir, DataDir, "audit.sqlite")
	}
	return filepath.Join(dir, DataDir, "audit.db")
}

// EnsureDataDir ensures the .perfaudit directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, DataDir), 0755)
}
