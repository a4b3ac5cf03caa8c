// Package config provides configuration loading and validation for the service and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Explanation cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Duration is a time.Duration read from strings such as "90s" or "1h"
// in both JSON files and the environment.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the service configuration. Values come from Defaults, then an
// optional JSON file, then the environment; CLI flags override last.
type Config struct {
	// Artifacts
	ModelPath    string `json:"model_path,omitempty" env:"CHURN_MODEL_PATH"`       // Path to the model artifact (.json or .json.gz)
	DatasetPath  string `json:"dataset_path,omitempty" env:"CHURN_DATASET_PATH"`   // Reference customers CSV
	DatabaseURL  string `json:"database_url,omitempty" env:"DATABASE_URL"`         // PostgreSQL URL for the reference customers
	DatasetTable string `json:"dataset_table,omitempty" env:"CHURN_DATASET_TABLE"` // Table holding the reference customers

	// Server
	Port          int `json:"port,omitempty" env:"PORT"`
	ScorerWorkers int `json:"scorer_workers,omitempty" env:"SCORER_WORKERS"` // 0 means GOMAXPROCS
	TopKDefault   int `json:"top_k_default,omitempty" env:"TOP_K_DEFAULT"`
	TopKMax       int `json:"top_k_max,omitempty" env:"TOP_K_MAX"`

	// Logging
	LogLevel  string `json:"log_level,omitempty" env:"LOG_LEVEL"`
	LogFormat string `json:"log_format,omitempty" env:"LOG_FORMAT"`

	// Explanation cache
	ExplainCache    string   `json:"explain_cache,omitempty" env:"EXPLAIN_CACHE"`
	ExplainCacheTTL Duration `json:"explain_cache_ttl,omitempty" env:"EXPLAIN_CACHE_TTL"`
	RedisAddr       string   `json:"redis_addr,omitempty" env:"REDIS_ADDR"`
	RedisPassword   string   `json:"redis_password,omitempty" env:"REDIS_PASSWORD"`
	RedisDB         int      `json:"redis_db,omitempty" env:"REDIS_DB"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ModelPath:       filepath.Join("model", "churn_model.json"),
		DatasetTable:    "customers",
		Port:            8080,
		TopKDefault:     10,
		TopKMax:         50,
		LogLevel:        "info",
		LogFormat:       "json",
		ExplainCache:    CacheMemory,
		ExplainCacheTTL: Duration(time.Hour),
	}
}

// Load builds the effective configuration: defaults, then the JSON file at
// path when path is non-empty, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg.MergeWithDefaults(cfg)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("config error: 'model_path' is required")
	}
	if c.DatasetPath != "" && c.DatabaseURL != "" {
		return fmt.Errorf("config error: 'dataset_path' and 'database_url' are mutually exclusive")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535")
	}
	if c.ScorerWorkers < 0 {
		return fmt.Errorf("config error: 'scorer_workers' must be non-negative")
	}
	if c.TopKMax < 1 {
		return fmt.Errorf("config error: 'top_k_max' must be positive")
	}
	if c.TopKDefault < 1 || c.TopKDefault > c.TopKMax {
		return fmt.Errorf("config error: 'top_k_default' must be between 1 and 'top_k_max' (%d)", c.TopKMax)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config error: unknown 'log_level' %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("config error: 'log_format' must be json or console, got %q", c.LogFormat)
	}

	switch c.ExplainCache {
	case CacheNone:
	case CacheMemory, CacheRedis:
		if c.ExplainCacheTTL <= 0 {
			return fmt.Errorf("config error: 'explain_cache_ttl' must be positive")
		}
		if c.ExplainCache == CacheRedis && c.RedisAddr == "" {
			return fmt.Errorf("config error: 'redis_addr' is required when 'explain_cache' is redis")
		}
	default:
		return fmt.Errorf("config error: 'explain_cache' must be memory, redis or none, got %q", c.ExplainCache)
	}

	if c.DatasetPath != "" {
		if _, err := os.Stat(c.DatasetPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: dataset file not found: %s", c.DatasetPath)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.ModelPath == "" {
		result.ModelPath = defaults.ModelPath
	}
	if result.DatasetPath == "" {
		result.DatasetPath = defaults.DatasetPath
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.DatasetTable == "" {
		result.DatasetTable = defaults.DatasetTable
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.ExplainCache == "" {
		result.ExplainCache = defaults.ExplainCache
	}
	if result.RedisAddr == "" {
		result.RedisAddr = defaults.RedisAddr
	}
	if result.RedisPassword == "" {
		result.RedisPassword = defaults.RedisPassword
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.ScorerWorkers == 0 {
		result.ScorerWorkers = defaults.ScorerWorkers
	}
	if result.TopKDefault == 0 {
		result.TopKDefault = defaults.TopKDefault
	}
	if result.TopKMax == 0 {
		result.TopKMax = defaults.TopKMax
	}
	if result.RedisDB == 0 {
		result.RedisDB = defaults.RedisDB
	}
	if result.ExplainCacheTTL == 0 {
		result.ExplainCacheTTL = defaults.ExplainCacheTTL
	}

	return result
}
