package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process event id cache. When full, the oldest
// recorded id is evicted first.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	order   []string
	maxSize int
	cleanup *time.Ticker
	stop    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewMemoryCache creates a cache holding at most maxSize ids and sweeps
// expired ones every cleanupInterval.
func NewMemoryCache(maxSize int, cleanupInterval time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}

	c := &MemoryCache{
		entries: make(map[string]time.Time),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		cleanup: time.NewTicker(cleanupInterval),
		stop:    make(chan struct{}),
		now:     time.Now,
	}

	go c.cleanupExpired()

	return c
}

// MarkIfNew records eventID unless it is already present and unexpired.
func (c *MemoryCache) MarkIfNew(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expiresAt, ok := c.entries[eventID]; ok {
		if now.Before(expiresAt) {
			return false, nil
		}
		c.removeLocked(eventID)
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[eventID] = now.Add(ttl)
	c.order = append(c.order, eventID)

	return true, nil
}

// Len returns the number of ids held.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine and drops all entries.
func (c *MemoryCache) Close() error {
	c.once.Do(func() {
		c.cleanup.Stop()
		close(c.stop)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]time.Time)
	c.order = nil

	return nil
}

// cleanupExpired periodically removes expired entries
func (c *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-c.cleanup.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	kept := c.order[:0]
	for _, id := range c.order {
		if now.Before(c.entries[id]) {
			kept = append(kept, id)
			continue
		}
		delete(c.entries, id)
	}
	c.order = kept
}

func (c *MemoryCache) removeLocked(eventID string) {
	delete(c.entries, eventID)
	for i, id := range c.order {
		if id == eventID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
