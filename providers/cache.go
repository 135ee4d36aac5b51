package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"vibeagent"
)

const cacheKeyPrefix = "vibeagent:venues:"

// Cache stores provider answers keyed by provider and query.
type Cache interface {
	Get(ctx context.Context, key string) ([]vibeagent.VerifiedVenue, bool, error)
	Set(ctx context.Context, key string, venues []vibeagent.VerifiedVenue) error
}

// CacheKey is stable for equal queries against the same provider.
func CacheKey(provider string, q vibeagent.ProviderQuery) string {
	b, _ := json.Marshal(q)
	sum := sha256.Sum256(b)
	return cacheKeyPrefix + provider + ":" + hex.EncodeToString(sum[:16])
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]vibeagent.VerifiedVenue, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var venues []vibeagent.VerifiedVenue
	if err := json.Unmarshal(val, &venues); err != nil {
		return nil, false, fmt.Errorf("decode cached venues: %w", err)
	}
	return venues, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, venues []vibeagent.VerifiedVenue) error {
	data, err := json.Marshal(venues)
	if err != nil {
		return fmt.Errorf("encode venues: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

type localEntry struct {
	venues    []vibeagent.VerifiedVenue
	expiresAt time.Time
}

// LocalCache is an in-process LRU with per-entry expiry.
type LocalCache struct {
	entries *lru.Cache[string, localEntry]
	ttl     time.Duration
	now     func() time.Time
}

func NewLocalCache(size int, ttl time.Duration) (*LocalCache, error) {
	entries, err := lru.New[string, localEntry](max(size, 1))
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LocalCache{entries: entries, ttl: ttl, now: time.Now}, nil
}

func (c *LocalCache) Get(_ context.Context, key string) ([]vibeagent.VerifiedVenue, bool, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.entries.Remove(key)
		return nil, false, nil
	}
	return e.venues, true, nil
}

func (c *LocalCache) Set(_ context.Context, key string, venues []vibeagent.VerifiedVenue) error {
	c.entries.Add(key, localEntry{venues: venues, expiresAt: c.now().Add(c.ttl)})
	return nil
}

// NewCache returns a Redis cache when an address is configured and a local LRU
// otherwise.
func NewCache(cfg vibeagent.CacheConfig) (Cache, error) {
	if cfg.RedisAddr == "" {
		local, err := NewLocalCache(cfg.LocalSize, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisCache(client, cfg.TTL), nil
}

// Cached answers repeated queries from a cache. Cache failures are logged and the
// provider is called as if the entry were missing. Empty answers are not cached.
type Cached struct {
	Provider
	cache Cache
}

func NewCached(p Provider, cache Cache) *Cached {
	return &Cached{Provider: p, cache: cache}
}

func (c *Cached) Query(ctx context.Context, q vibeagent.ProviderQuery) ([]vibeagent.VerifiedVenue, error) {
	key := CacheKey(c.Name(), q)
	venues, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("PROVIDER: cache get failed", "provider", c.Name(), "error", err)
	}
	if ok {
		slog.Debug("PROVIDER: cache hit", "provider", c.Name(), "venues", len(venues))
		return venues, nil
	}

	venues, err = c.Provider.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(venues) > 0 {
		if err := c.cache.Set(ctx, key, venues); err != nil {
			slog.Warn("PROVIDER: cache set failed", "provider", c.Name(), "error", err)
		}
	}
	return venues, nil
}

// Wrap stacks the cache over the resilience layer so cache hits skip rate limiting.
func Wrap(p Provider, opts ResilienceOptions, cache Cache) Provider {
	var out Provider = NewResilient(p, opts)
	if cache != nil {
		out = NewCached(out, cache)
	}
	return out
}
