package cache

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultCleanupInterval = 1 * time.Hour
	defaultMaxSize         = 10000
)

// CacheConfig represents the cache configuration
type CacheConfig struct {
	Enabled         bool
	Type            string // "redis" or "memory"
	MaxSize         int
	CleanupInterval time.Duration
	RedisPrefix     string
}

// NewCache creates a cache instance based on the configuration. The redis
// client is required for the redis type only.
func NewCache(cfg CacheConfig, redisClient *redis.Client) (Cache, error) {
	if !cfg.Enabled {
		return NewNoOpCache(), nil
	}

	switch cfg.Type {
	case "memory":
		return NewMemoryCache(cfg.MaxSize, cfg.CleanupInterval), nil

	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis client is required for redis cache")
		}
		return NewRedisCache(redisClient, cfg.RedisPrefix), nil

	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
