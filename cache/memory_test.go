package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_MarkIfNew(t *testing.T) {
	req := require.New(t)
	c := NewMemoryCache(10, time.Hour)
	defer c.Close()
	ctx := context.Background()

	fresh, err := c.MarkIfNew(ctx, "evt-1", time.Hour)
	req.NoError(err)
	req.True(fresh)

	fresh, err = c.MarkIfNew(ctx, "evt-1", time.Hour)
	req.NoError(err)
	req.False(fresh)
}

func Test_Expired_Ids_Are_New_Again(t *testing.T) {
	req := require.New(t)
	c := NewMemoryCache(10, time.Hour)
	defer c.Close()

	now := time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	fresh, _ := c.MarkIfNew(context.Background(), "evt", time.Minute)
	req.True(fresh)

	now = now.Add(2 * time.Minute)
	fresh, _ = c.MarkIfNew(context.Background(), "evt", time.Minute)
	req.True(fresh)
	req.Equal(1, c.Len())
}

func Test_Evicts_Oldest_When_Full(t *testing.T) {
	req := require.New(t)
	c := NewMemoryCache(3, time.Hour)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := c.MarkIfNew(ctx, fmt.Sprintf("evt-%d", i), time.Hour)
		req.NoError(err)
	}
	req.Equal(3, c.Len())

	fresh, _ := c.MarkIfNew(ctx, "evt-0", time.Hour)
	req.True(fresh)
	fresh, _ = c.MarkIfNew(ctx, "evt-3", time.Hour)
	req.False(fresh)
}

func Test_Sweep(t *testing.T) {
	req := require.New(t)
	c := NewMemoryCache(10, time.Hour)
	defer c.Close()

	now := time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, _ = c.MarkIfNew(context.Background(), "short", time.Minute)
	_, _ = c.MarkIfNew(context.Background(), "long", time.Hour)

	now = now.Add(10 * time.Minute)
	c.sweep()
	req.Equal(1, c.Len())
}

func Test_NewCache(t *testing.T) {
	req := require.New(t)

	c, err := NewCache(CacheConfig{Enabled: false}, nil)
	req.NoError(err)
	req.IsType(&NoOpCache{}, c)

	c, err = NewCache(CacheConfig{Enabled: true, Type: "memory"}, nil)
	req.NoError(err)
	req.IsType(&MemoryCache{}, c)
	req.NoError(c.Close())

	_, err = NewCache(CacheConfig{Enabled: true, Type: "redis"}, nil)
	req.Error(err)

	_, err = NewCache(CacheConfig{Enabled: true, Type: "mongo"}, nil)
	req.Error(err)
}
