// Package cache provides optional Redis-backed acceleration for storage
// lookups that are read far more often than they change.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"newsqueue/internal/repository"
)

const keyPrefix = "newsqueue:published:"

// redisClient is the subset of *redis.Client used by CachedPublishedSet,
// narrowed so tests can substitute a fake without a live Redis server.
type redisClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedPublishedSet decorates a repository.PublishedSetRepository with a
// Redis read-through cache. Redis is never the source of truth: a cache miss
// or a Redis error always falls through to the underlying store, and a
// positive Contains result from the store is used to warm the cache. This
// keeps the Published Set's durability guarantee (spec section 4.6) intact
// even if Redis is unavailable or evicts entries early.
type CachedPublishedSet struct {
	inner  repository.PublishedSetRepository
	client redisClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedPublishedSet wraps inner with a Redis cache. ttl bounds how long a
// published id is remembered in Redis. Once an entry expires, Contains falls
// through to inner, which keeps every published id.
func NewCachedPublishedSet(inner repository.PublishedSetRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedPublishedSet {
	return &CachedPublishedSet{inner: inner, client: client, ttl: ttl, logger: logger}
}

func cacheKey(uniqueID string) string {
	return keyPrefix + uniqueID
}

// Contains checks Redis first, then falls back to the durable store on a
// cache miss or a Redis error. It never reports false solely because Redis
// was unreachable.
func (c *CachedPublishedSet) Contains(ctx context.Context, uniqueID string) (bool, error) {
	n, err := c.client.Exists(ctx, cacheKey(uniqueID)).Result()
	if err != nil {
		c.logger.Warn("redis published-set lookup failed, falling back to store",
			slog.String("unique_id", uniqueID), slog.Any("error", err))
	} else if n > 0 {
		return true, nil
	}

	found, err := c.inner.Contains(ctx, uniqueID)
	if err != nil {
		return false, err
	}
	if found {
		c.warm(ctx, uniqueID)
	}
	return found, nil
}

// Add records uniqueID in the durable store, then best-effort warms the
// cache. A failure to reach Redis here is logged, not returned: Add's
// durability contract is satisfied once inner.Add succeeds.
func (c *CachedPublishedSet) Add(ctx context.Context, uniqueID string) error {
	if err := c.inner.Add(ctx, uniqueID); err != nil {
		return err
	}
	c.warm(ctx, uniqueID)
	return nil
}

func (c *CachedPublishedSet) warm(ctx context.Context, uniqueID string) {
	if err := c.client.Set(ctx, cacheKey(uniqueID), "1", c.ttl).Err(); err != nil {
		c.logger.Warn("failed to warm redis published-set cache",
			slog.String("unique_id", uniqueID), slog.Any("error", err))
	}
}

// NewClient builds a Redis client from a connection address such as
// "localhost:6379". Connectivity is not verified here; callers that need a
// liveness check should Ping before relying on the client.
func NewClient(addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}
