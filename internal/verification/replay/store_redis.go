package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore tracks deliveries in Redis so deduplication holds across
// service instances.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore creates a Redis-backed store with the given retention window.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

// Seen implements Store.
func (s *RedisStore) Seen(ctx context.Context, providerID, runID string, completedAt time.Time) (bool, error) {
	n, err := s.client.Exists(ctx, deliveryKey(providerID, runID, completedAt)).Result()
	if err != nil {
		return false, fmt.Errorf("check webhook delivery: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed implements Store.
func (s *RedisStore) MarkProcessed(ctx context.Context, providerID, runID string, completedAt time.Time) error {
	err := s.client.Set(ctx, deliveryKey(providerID, runID, completedAt), 1, s.retention).Err()
	if err != nil {
		return fmt.Errorf("mark webhook delivery: %w", err)
	}
	return nil
}
