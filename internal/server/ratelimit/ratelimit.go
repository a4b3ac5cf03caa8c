// Package ratelimit provides per-client rate limiting using token buckets.
package ratelimit

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// tokenBucket allows capacity requests at once, refilling at refillRate per second.
type tokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(capacity int, refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
	}
}

// take refills the bucket, consumes a token if one is available and reports
// the tokens left and when the bucket will be full again.
func (tb *tokenBucket) take(now time.Time) (allowed bool, remaining int, full time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		allowed = true
	}

	missing := tb.capacity - tb.tokens
	full = now.Add(time.Duration(missing / tb.refillRate * float64(time.Second)))
	return allowed, int(tb.tokens), full
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages token buckets per client. Configured routes get one bucket
// per route and method; all other routes share the client's default bucket.
// Idle buckets expire from the underlying cache.
type Limiter struct {
	config  *Config
	buckets *gocache.Cache
	mu      sync.Mutex // serialises bucket creation
	now     func() time.Time
}

// NewLimiter creates a limiter. A nil config enables a default of 1000 requests per minute.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:       true,
			DefaultLimit:  1000,
			DefaultWindow: time.Minute,
		}
	}

	idle := config.IdleTimeout
	if idle <= 0 {
		idle = time.Hour
	}
	cleanup := config.CleanupInterval
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}

	return &Limiter{
		config:  config,
		buckets: gocache.New(idle, cleanup),
		now:     time.Now,
	}
}

// Allow checks whether a request from clientID to endpoint may proceed.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	ec := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	var key string
	if ec == nil {
		// everything under the default limit shares one bucket per client,
		// so path parameters cannot mint fresh buckets
		key = clientID + ":default"
		ec = &EndpointConfig{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultLimit,
		}
	} else {
		key = clientID + ":" + ec.Path + ":" + method
	}
	if ec.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	allowed, remaining, full := l.bucket(key, ec, now).take(now)

	var retryAfter time.Duration
	if !allowed {
		// one token's worth of refill
		retryAfter = time.Duration(float64(ec.Window) / float64(ec.Limit))
	}

	return allowed, Info{
		Allowed:    allowed,
		Limit:      ec.Limit,
		Remaining:  remaining,
		ResetTime:  full,
		RetryAfter: retryAfter,
	}
}

// TrustsProxy reports whether ip is a proxy whose X-Forwarded-For header
// identifies the real client.
func (l *Limiter) TrustsProxy(ip string) bool {
	return l.config.TrustedProxies[ip]
}

// Buckets returns the number of live buckets.
func (l *Limiter) Buckets() int {
	return l.buckets.ItemCount()
}

func (l *Limiter) bucket(key string, ec *EndpointConfig, now time.Time) *tokenBucket {
	if b, ok := l.buckets.Get(key); ok {
		// refresh the idle expiry
		l.buckets.SetDefault(key, b)
		return b.(*tokenBucket)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets.Get(key); ok {
		return b.(*tokenBucket)
	}

	capacity := ec.Burst
	if capacity <= 0 {
		capacity = ec.Limit
	}
	b := newTokenBucket(capacity, float64(ec.Limit)/ec.Window.Seconds(), now)
	l.buckets.SetDefault(key, b)
	return b
}
