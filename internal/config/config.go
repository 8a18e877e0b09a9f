// Package config provides unified configuration loading for mimus.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all mimus configuration settings.
type Config struct {
	// Clock controls the simulated timeline.
	Clock ClockConfig `json:"clock" yaml:"clock"`

	// Store contains settings for the relational store.
	Store StoreConfig `json:"store" yaml:"store"`

	// RecSys contains settings for recommendation generation.
	RecSys RecSysConfig `json:"recsys" yaml:"recsys"`

	// Platform contains dispatcher and feed settings.
	Platform PlatformConfig `json:"platform" yaml:"platform"`

	// Embedding contains settings for text embedding.
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`

	// Logging contains settings for operational and action logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ClockConfig configures the simulated clock.
type ClockConfig struct {
	// Start is the simulated start instant in RFC 3339 form.
	// Empty means the real wall-clock time at engine startup.
	Start string `json:"start,omitempty" yaml:"start,omitempty"`

	// Factor is the simulated-seconds-per-real-second multiplier.
	// Zero or negative values fall back to the default of 60.
	Factor float64 `json:"factor" yaml:"factor"`
}

// StoreConfig configures the relational store.
type StoreConfig struct {
	// Path is the SQLite database file path. ":memory:" keeps the
	// database in memory; any existing file at Path is removed at
	// startup so every run begins from an empty schema.
	Path string `json:"path" yaml:"path"`
}

// RecSysConfig configures recommendation generation.
type RecSysConfig struct {
	// Strategy selects the recommender: "random", "hot", or "personalized".
	Strategy string `json:"strategy" yaml:"strategy"`

	// MaxPosts is the per-user recommendation list capacity.
	MaxPosts int `json:"max_posts" yaml:"max_posts"`

	// RefreshInterval is the number of dispatched actions between
	// recommendation table rebuilds. Zero disables periodic rebuilds;
	// explicit UpdateRecTable actions still work.
	RefreshInterval int `json:"refresh_interval" yaml:"refresh_interval"`

	// CountRefresh includes Refresh actions in the rebuild interval
	// counter. Off by default so read-heavy feeds do not force rebuilds.
	CountRefresh bool `json:"count_refresh" yaml:"count_refresh"`

	// ExplorationFraction is the share of each personalized list that is
	// replaced with unseen random posts. Range: 0.0 to 1.0.
	ExplorationFraction float64 `json:"exploration_fraction" yaml:"exploration_fraction"`

	// HotPeriodSeconds is the age penalty divisor of the hot-score
	// strategy: one net-vote order of magnitude per period of post age.
	HotPeriodSeconds float64 `json:"hot_period_seconds" yaml:"hot_period_seconds"`

	// Seed seeds the random generators used by the recommenders and the
	// feed sampler. Zero derives a seed from the current time.
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// PlatformConfig configures the action dispatcher and feed shaping.
type PlatformConfig struct {
	// FeedSize is the number of recommended posts a Refresh returns.
	FeedSize int `json:"feed_size" yaml:"feed_size"`

	// TrendSize is the number of posts a Trend query returns.
	TrendSize int `json:"trend_size" yaml:"trend_size"`

	// TrendWindow bounds how far back Trend looks in simulated time.
	TrendWindow time.Duration `json:"trend_window" yaml:"trend_window"`

	// AllowSelfRating permits users to like or dislike their own posts
	// and comments.
	AllowSelfRating bool `json:"allow_self_rating" yaml:"allow_self_rating"`

	// SearchLimit caps the number of results for user and post searches.
	SearchLimit int `json:"search_limit" yaml:"search_limit"`
}

// EmbeddingConfig configures text embedding for the personalized
// recommender.
type EmbeddingConfig struct {
	// Provider selects the embedder: "hash" (deterministic, no model)
	// or "local" (GGUF model, requires building with -tags llamacpp).
	Provider string `json:"provider" yaml:"provider"`

	// LibPath is the llama.cpp shared library location. Only used when
	// provider is "local".
	LibPath string `json:"lib_path,omitempty" yaml:"lib_path,omitempty"`

	// ModelPath is the path to a GGUF embedding model file. Only used
	// when provider is "local".
	ModelPath string `json:"model_path,omitempty" yaml:"model_path,omitempty"`

	// GPULayers is the number of model layers to offload to GPU
	// (0 = CPU only). Only used when provider is "local".
	GPULayers int `json:"gpu_layers,omitempty" yaml:"gpu_layers,omitempty"`

	// ContextSize is the context window size in tokens for the local
	// model. Defaults to 512 if not set.
	ContextSize int `json:"context_size,omitempty" yaml:"context_size,omitempty"`
}

// LoggingConfig configures mimus's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables action logging to actions.jsonl next to the store.
	// "trace" additionally includes full action payload content.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Clock: ClockConfig{
			Factor: 60,
		},
		Store: StoreConfig{
			Path: "mimus.db",
		},
		RecSys: RecSysConfig{
			Strategy:            "random",
			MaxPosts:            30,
			RefreshInterval:     64,
			ExplorationFraction: 0.1,
			HotPeriodSeconds:    45000,
		},
		Platform: PlatformConfig{
			FeedSize:    3,
			TrendSize:   10,
			TrendWindow: 72 * time.Hour,
			SearchLimit: 20,
		},
		Embedding: EmbeddingConfig{
			Provider: "hash",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ./mimus.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	wd, err := os.Getwd()
	if err == nil {
		configPath := filepath.Join(wd, "mimus.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Clock.Start != "" {
		if _, err := time.Parse(time.RFC3339, c.Clock.Start); err != nil {
			return fmt.Errorf("invalid clock start %q: %w", c.Clock.Start, err)
		}
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path must not be empty")
	}

	validStrategies := map[string]bool{"random": true, "hot": true, "personalized": true}
	if !validStrategies[c.RecSys.Strategy] {
		return fmt.Errorf("invalid recsys strategy: %s (valid: random, hot, personalized)", c.RecSys.Strategy)
	}

	if c.RecSys.MaxPosts <= 0 {
		return fmt.Errorf("recsys max_posts must be positive, got %d", c.RecSys.MaxPosts)
	}

	if c.RecSys.RefreshInterval < 0 {
		return fmt.Errorf("recsys refresh_interval must be non-negative, got %d", c.RecSys.RefreshInterval)
	}

	if c.RecSys.ExplorationFraction < 0 || c.RecSys.ExplorationFraction > 1 {
		return fmt.Errorf("exploration_fraction must be between 0 and 1, got %f", c.RecSys.ExplorationFraction)
	}

	if c.RecSys.HotPeriodSeconds <= 0 {
		return fmt.Errorf("hot_period_seconds must be positive, got %f", c.RecSys.HotPeriodSeconds)
	}

	if c.Platform.FeedSize <= 0 {
		return fmt.Errorf("platform feed_size must be positive, got %d", c.Platform.FeedSize)
	}

	if c.Platform.TrendSize <= 0 {
		return fmt.Errorf("platform trend_size must be positive, got %d", c.Platform.TrendSize)
	}

	if c.Platform.SearchLimit <= 0 {
		return fmt.Errorf("platform search_limit must be positive, got %d", c.Platform.SearchLimit)
	}

	validProviders := map[string]bool{"hash": true, "local": true}
	if !validProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding provider: %s (valid: hash, local)", c.Embedding.Provider)
	}

	if c.Embedding.Provider == "local" && c.Embedding.ModelPath == "" {
		return fmt.Errorf("embedding model_path is required when provider is local")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("MIMUS_CLOCK_START"); v != "" {
		config.Clock.Start = v
	}
	if v := os.Getenv("MIMUS_CLOCK_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Clock.Factor = f
		}
	}

	if v := os.Getenv("MIMUS_STORE_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("MIMUS_RECSYS_STRATEGY"); v != "" {
		config.RecSys.Strategy = v
	}
	if v := os.Getenv("MIMUS_RECSYS_MAX_POSTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.RecSys.MaxPosts = n
		}
	}
	if v := os.Getenv("MIMUS_RECSYS_REFRESH_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.RecSys.RefreshInterval = n
		}
	}
	if v := os.Getenv("MIMUS_RECSYS_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.RecSys.Seed = n
		}
	}

	if v := os.Getenv("MIMUS_EMBEDDING_PROVIDER"); v != "" {
		config.Embedding.Provider = v
	}
	if v := os.Getenv("MIMUS_EMBEDDING_LIB_PATH"); v != "" {
		config.Embedding.LibPath = v
	}
	if v := os.Getenv("MIMUS_EMBEDDING_MODEL_PATH"); v != "" {
		config.Embedding.ModelPath = v
	}
	if v := os.Getenv("MIMUS_EMBEDDING_GPU_LAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Embedding.GPULayers = n
		}
	}

	if v := os.Getenv("MIMUS_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// SimStart resolves the configured clock start, falling back to now.
func (c *Config) SimStart(now time.Time) time.Time {
	if c.Clock.Start == "" {
		return now
	}
	t, err := time.Parse(time.RFC3339, c.Clock.Start)
	if err != nil {
		return now
	}
	return t
}
