package explain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/churn-predictor/internal/types"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache stores attribution sets by key. Implementations must be safe for
// concurrent use and must not hand out values callers can mutate.
type Cache interface {
	Get(ctx context.Context, key string) (*types.AttributionSet, bool, error)
	Set(ctx context.Context, key string, a *types.AttributionSet) error
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(ttl, 2*ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*types.AttributionSet, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	return clone(v.(*types.AttributionSet)), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, a *types.AttributionSet) error {
	c.store.Set(key, clone(a), gocache.DefaultExpiration)
	return nil
}

// Len returns the number of unexpired entries.
func (c *MemoryCache) Len() int {
	return c.store.ItemCount()
}

// RedisCache shares explanations between service replicas.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache wraps an already connected client.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*types.AttributionSet, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var a types.AttributionSet
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, false, fmt.Errorf("decode cached explanation %s: %w", key, err)
	}
	return &a, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, a *types.AttributionSet) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode explanation: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func clone(a *types.AttributionSet) *types.AttributionSet {
	return &types.AttributionSet{
		BaseValue:     a.BaseValue,
		RawMargin:     a.RawMargin,
		Features:      append([]string(nil), a.Features...),
		Values:        append([]string(nil), a.Values...),
		Contributions: append([]float64(nil), a.Contributions...),
	}
}
