package store

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Snapshot backend types.
const (
	SnapshotNone  = "none"
	SnapshotFile  = "file"
	SnapshotRedis = "redis"
)

// SnapshotConfig selects and configures a snapshot backend.
type SnapshotConfig struct {
	Type         string
	FilePath     string
	RedisKey     string
	RedisTimeout time.Duration
}

// NewSnapshotter creates the configured backend. redisClient is only used,
// and must be non-nil, for the redis type.
func NewSnapshotter(cfg SnapshotConfig, redisClient *redis.Client) (Snapshotter, error) {
	switch cfg.Type {
	case "", SnapshotNone:
		return NewNoOpSnapshot(), nil

	case SnapshotFile:
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("snapshot file path is required")
		}
		return NewFileSnapshot(cfg.FilePath), nil

	case SnapshotRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis client is required for redis snapshots")
		}
		return NewRedisSnapshot(redisClient, cfg.RedisKey, cfg.RedisTimeout), nil

	default:
		return nil, fmt.Errorf("unknown snapshot type: %s", cfg.Type)
	}
}
