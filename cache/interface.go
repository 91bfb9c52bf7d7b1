package cache

import (
	"context"
	"time"
)

// Cache remembers webhook event ids so redelivered events are handled once.
type Cache interface {
	// MarkIfNew records eventID for ttl and reports whether it was unseen.
	MarkIfNew(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// Close closes the cache and releases resources
	Close() error
}
