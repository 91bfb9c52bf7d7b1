package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces event id keys.
const DefaultRedisPrefix = "line_sales_bridge:event:"

// RedisCache stores event ids as expiring Redis keys, shared between
// replicas.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed cache. The client is owned by the
// caller.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

// MarkIfNew sets the key only if it does not exist yet.
func (c *RedisCache) MarkIfNew(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set Redis key: %w", err)
	}
	return ok, nil
}

// Close is a no-op; the shared client is closed by its owner.
func (c *RedisCache) Close() error {
	return nil
}
