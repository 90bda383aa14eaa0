package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps cached responses and claim markers in Redis. All writes are
// single-command atomic operations.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedis constructs a Redis-backed idempotency store.
func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the cached response for a key, or nil when absent.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, responseKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency cache get: %w", err)
	}
	return data, nil
}

// Set caches a completed response for ResponseTTL.
func (s *RedisStore) Set(ctx context.Context, key string, response []byte) error {
	if err := s.client.Set(ctx, responseKey(key), response, ResponseTTL).Err(); err != nil {
		return fmt.Errorf("idempotency cache set: %w", err)
	}
	return nil
}

// Claim atomically marks the key as in-flight. Returns true when this caller
// won the claim; false when another attempt already holds it.
func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	won, err := s.client.SetNX(ctx, claimKey(key), "1", ClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	return won, nil
}

// Release drops the claim marker so a failed attempt unblocks waiting losers
// immediately instead of after ClaimTTL.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, claimKey(key)).Err(); err != nil {
		return fmt.Errorf("idempotency claim release: %w", err)
	}
	return nil
}
