package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// EndpointConfig represents rate limiting configuration for one route.
type EndpointConfig struct {
	Path   string        // Path pattern: exact, prefix ending in "/", or "*" per segment
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	IdleTimeout     time.Duration // Buckets unused this long are dropped
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	TrustedProxies  map[string]bool // Peers allowed to name the client via X-Forwarded-For
	EndpointConfigs []EndpointConfig
}

type envConfig struct {
	Enabled         bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	DefaultLimit    int           `env:"RATE_LIMIT_DEFAULT_LIMIT" envDefault:"1000"`
	DefaultWindow   time.Duration `env:"RATE_LIMIT_DEFAULT_WINDOW" envDefault:"1m"`
	IdleTimeout     time.Duration `env:"RATE_LIMIT_IDLE_TIMEOUT" envDefault:"1h"`
	CleanupInterval time.Duration `env:"RATE_LIMIT_CLEANUP_INTERVAL" envDefault:"5m"`
	Whitelist       []string      `env:"RATE_LIMIT_WHITELIST" envSeparator:","`
	Blacklist       []string      `env:"RATE_LIMIT_BLACKLIST" envSeparator:","`
	TrustedProxies  []string      `env:"RATE_LIMIT_TRUSTED_PROXIES" envSeparator:","`
}

// LoadConfig reads rate limiting configuration from RATE_LIMIT_* environment variables.
func LoadConfig() (*Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return nil, fmt.Errorf("failed to parse rate limit environment: %w", err)
	}
	if !ec.Enabled {
		return &Config{Enabled: false}, nil
	}
	if ec.DefaultLimit <= 0 || ec.DefaultWindow <= 0 {
		return nil, fmt.Errorf("rate limit default limit and window must be positive")
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    ec.DefaultLimit,
		DefaultWindow:   ec.DefaultWindow,
		IdleTimeout:     ec.IdleTimeout,
		CleanupInterval: ec.CleanupInterval,
		Whitelist:       ipSet(ec.Whitelist),
		Blacklist:       ipSet(ec.Blacklist),
		TrustedProxies:  ipSet(ec.TrustedProxies),
		EndpointConfigs: DefaultEndpointConfigs(),
	}, nil
}

// DefaultEndpointConfigs returns the route-specific limits.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Whole-dataset work
		{Path: "/predict/batch", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/customers/top", Method: "GET", Limit: 60, Window: time.Minute, Burst: 10},

		// TreeSHAP per record
		{Path: "/explain", Method: "POST", Limit: 300, Window: time.Minute, Burst: 30},
		{Path: "/customers/*/explain", Method: "GET", Limit: 300, Window: time.Minute, Burst: 30},

		// Single predictions and lookups share the client's default bucket.
		// /health and /metrics are unlimited, see MatchEndpoint.
	}
}

func ipSet(list []string) map[string]bool {
	result := make(map[string]bool, len(list))
	for _, ip := range list {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
