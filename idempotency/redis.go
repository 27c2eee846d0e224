package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStoreConfig configures the Redis-backed store.
type RedisStoreConfig struct {
	// KeyPrefix namespaces the keys in Redis.
	// Default: "idempotency:"
	KeyPrefix string
}

// RedisStore persists entries in Redis so replay protection survives
// process restarts and spans replicas. Expiry is delegated to Redis TTLs.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient, config ...RedisStoreConfig) *RedisStore {
	cfg := RedisStoreConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "idempotency:"
	}

	return &RedisStore{
		client: client,
		prefix: cfg.KeyPrefix,
	}
}

// Get retrieves an entry. Returns (nil, nil) on miss.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency: redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("idempotency: redis get: %w", err)
	}
	return &entry, nil
}

// Set stores an entry with a TTL derived from its expiry.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("idempotency: redis set: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: redis set: %w", err)
	}
	return nil
}

// Delete removes an entry. Idempotent - no error on miss.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency: redis delete: %w", err)
	}
	return nil
}

// Clear removes all entries under the store's prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("idempotency: redis clear: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("idempotency: redis clear: %w", err)
	}
	return nil
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
