package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "GITSONG"

// Load configuration from environment variables only.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration from an optional YAML file and the
// environment. Environment variables take precedence over values from the file.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"database.url",
		"github.token",
		"llm.gemini_api_key",
		"llm.registry_path",
		"music.api_key",
		"music.callback_secret",
		"storage.bucket",
		"storage.public_base_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.public_base_url", "http://localhost:8080")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_lifetime", 5*time.Minute)

	v.SetDefault("cache.github_ttl", 24*time.Hour)
	v.SetDefault("cache.llm_ttl", 7*24*time.Hour)
	v.SetDefault("cache.single_flight", true)
	v.SetDefault("cache.default_limit", 5000)
	v.SetDefault("cache.default_window", time.Hour)

	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.max_commits", 50)

	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.embedding_model", "gemini-embedding-001")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.embed_concurrency", 4)

	v.SetDefault("music.base_url", "https://api.sunoapi.org")
	v.SetDefault("music.model", "V4_5")
	v.SetDefault("music.default_style", "indie rock, upbeat, driving drums")
	v.SetDefault("music.poll_interval", 10*time.Second)
	v.SetDefault("music.max_poll_attempts", 60)

	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.dir", "./data/artifacts")

	v.SetDefault("poller.enabled", true)
	v.SetDefault("poller.interval", time.Minute)
	v.SetDefault("poller.stale_after", 2*time.Minute)
}
