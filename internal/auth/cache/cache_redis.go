// Package cache holds the API-key identity cache backed by the shared store.
//
// Entries live under "apikey:"+credential for a short TTL. Rotation and
// revocation must call Delete explicitly; expiry alone is not the contract.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"paygate/internal/auth/models"
)

const (
	keyPrefix = "apikey:"

	// DefaultTTL bounds staleness between a tier change and its visibility.
	DefaultTTL = 300 * time.Second
)

// RedisCache stores resolved identities in Redis so hot API keys skip the
// credential store.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed identity cache.
func NewRedis(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client, ttl: DefaultTTL}
}

// Get returns the cached identity for the credential, or nil on a miss.
func (c *RedisCache) Get(ctx context.Context, credential string) (*models.Identity, error) {
	data, err := c.client.Get(ctx, keyPrefix+credential).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read apikey cache: %w", err)
	}

	var identity models.Identity
	if err := json.Unmarshal([]byte(data), &identity); err != nil {
		return nil, fmt.Errorf("unmarshal apikey cache entry: %w", err)
	}
	return &identity, nil
}

// Set caches the identity under the credential with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, credential string, identity *models.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal apikey cache entry: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+credential, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("write apikey cache: %w", err)
	}
	return nil
}

// Delete removes the cache entry. Called on rotation or revocation so a dead
// credential never outlives its cache TTL.
func (c *RedisCache) Delete(ctx context.Context, credential string) error {
	if err := c.client.Del(ctx, keyPrefix+credential).Err(); err != nil {
		return fmt.Errorf("invalidate apikey cache: %w", err)
	}
	return nil
}
