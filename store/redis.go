package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey is the key holding the message snapshot.
const DefaultRedisKey = "line_sales_bridge:messages"

// RedisSnapshot keeps the message sequence as one JSON value in Redis.
type RedisSnapshot struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisSnapshot creates a Redis snapshotter. The client is owned by the
// caller and is not closed by Close.
func NewRedisSnapshot(client *redis.Client, key string, timeout time.Duration) *RedisSnapshot {
	if key == "" {
		key = DefaultRedisKey
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RedisSnapshot{
		client:  client,
		key:     key,
		timeout: timeout,
	}
}

// Load fetches the snapshot. A missing key is not an error.
func (r *RedisSnapshot) Load() ([]StoredMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read Redis snapshot: %w", err)
	}

	var messages []StoredMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode Redis snapshot: %w", err)
	}
	return messages, nil
}

// Save overwrites the snapshot key.
func (r *RedisSnapshot) Save(messages []StoredMessage) error {
	if messages == nil {
		messages = []StoredMessage{}
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write Redis snapshot: %w", err)
	}
	return nil
}

func (r *RedisSnapshot) Close() error {
	return nil
}
