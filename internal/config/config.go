package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache" validate:"required"`
	GitHub   GitHubConfig   `mapstructure:"github" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Music    MusicConfig    `mapstructure:"music" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Poller   PollerConfig   `mapstructure:"poller" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// PublicBaseURL is the externally reachable origin used to build webhook
	// callback URLs handed to the music-generation service.
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnLifetime time.Duration `mapstructure:"conn_lifetime"`
}

// CacheConfig controls the external-call cache and rate-limit accounting.
type CacheConfig struct {
	// GitHubTTL applies to source-control reads (commit lists, details).
	GitHubTTL time.Duration `mapstructure:"github_ttl" validate:"gte=0"`
	// LLMTTL applies to completions and embeddings.
	LLMTTL time.Duration `mapstructure:"llm_ttl" validate:"gte=0"`
	// SingleFlight collapses concurrent identical cache misses into one live call.
	SingleFlight bool `mapstructure:"single_flight"`
	// DefaultLimit and DefaultWindow seed a rate-limit counter the first time a
	// service is called and no upstream hint is available.
	DefaultLimit  int           `mapstructure:"default_limit" validate:"gt=0"`
	DefaultWindow time.Duration `mapstructure:"default_window" validate:"gt=0"`
}

// GitHubConfig contains source-control API settings.
type GitHubConfig struct {
	Token      string `mapstructure:"token"`
	BaseURL    string `mapstructure:"base_url" validate:"required,url"`
	MaxCommits int    `mapstructure:"max_commits" validate:"gt=0,lte=500"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key" validate:"required"`
	Model             string `mapstructure:"model" validate:"required"`
	EmbeddingModel    string `mapstructure:"embedding_model" validate:"required"`
	RegistryPath      string `mapstructure:"registry_path"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
	// EmbedConcurrency bounds parallel embedding calls per pipeline run.
	EmbedConcurrency int `mapstructure:"embed_concurrency" validate:"gte=1,lte=32"`
}

// MusicConfig contains music-generation API settings.
type MusicConfig struct {
	APIKey          string        `mapstructure:"api_key" validate:"required"`
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	Model           string        `mapstructure:"model" validate:"required"`
	DefaultStyle    string        `mapstructure:"default_style" validate:"required,max=200"`
	CallbackSecret  string        `mapstructure:"callback_secret" validate:"required,min=32"`
	PollInterval    time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts" validate:"gt=0"`
}

// StorageConfig selects and configures the artifact storage backend.
type StorageConfig struct {
	Backend       string `mapstructure:"backend" validate:"required,oneof=filesystem gcs"`
	Dir           string `mapstructure:"dir" validate:"required_if=Backend filesystem"`
	Bucket        string `mapstructure:"bucket" validate:"required_if=Backend gcs"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"omitempty,url"`
}

// PollerConfig controls the background reconciliation poller.
type PollerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval" validate:"gt=0"`
	StaleAfter time.Duration `mapstructure:"stale_after" validate:"gte=0"`
}
