package cache

import (
	"context"
	"time"
)

// NoOpCache is used when deduplication is disabled. Every event is new.
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache instance.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// MarkIfNew always reports the event as unseen.
func (c *NoOpCache) MarkIfNew(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return true, nil
}

// Close is a no-op.
func (c *NoOpCache) Close() error {
	return nil
}
