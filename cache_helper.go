package salesbridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/dawitel/line-sales-bridge/cache"
	"github.com/dawitel/line-sales-bridge/store"
	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects to Redis and pings it. Both binaries use it so
// they reach the same snapshot with the same TLS and pool settings.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(redisOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func redisOptions(cfg RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		}
	}

	return opts
}

// newDedupCache creates the webhook event cache from the configuration
func newDedupCache(cfg DedupConfig, client *redis.Client) (cache.Cache, error) {
	if !cfg.Enabled {
		return cache.NewNoOpCache(), nil
	}

	return cache.NewCache(cache.CacheConfig{
		Enabled:         cfg.Enabled,
		Type:            cfg.Type,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
		RedisPrefix:     cache.DefaultRedisPrefix,
	}, client)
}

// NewSnapshotter creates the message store snapshot backend
func NewSnapshotter(cfg MessageStoreConfig, redisCfg RedisConfig, client *redis.Client) (store.Snapshotter, error) {
	return store.NewSnapshotter(store.SnapshotConfig{
		Type:         cfg.Snapshot,
		FilePath:     cfg.FilePath,
		RedisKey:     cfg.RedisKey,
		RedisTimeout: redisCfg.WriteTimeout,
	}, client)
}
