// Package window implements the sliding-window counter store: a sorted set of
// request timestamps per identifier, purged lazily as windows slide.
package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"paygate/internal/ratelimit/models"
)

// RedisStore keeps one sorted set per identifier in Redis. The purge and the
// count run in a single pipeline so concurrent callers cannot bypass the
// quota between them.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedis constructs a Redis-backed window store.
func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// CheckAndConsume purges expired timestamps, counts the surviving window, and
// records the request when the quota allows it. A request told "exceeded"
// never inserts a timestamp.
func (s *RedisStore) CheckAndConsume(ctx context.Context, identifier string, limit, windowSeconds int) (*models.Info, error) {
	key := models.KeyPrefix + identifier
	now := s.now().Unix()
	windowStart := now - int64(windowSeconds)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit window check: %w", err)
	}

	currentCount := int(countCmd.Val())
	isExceeded := currentCount >= limit

	resetAt := now + int64(windowSeconds)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = int64(oldest[0].Score) + int64(windowSeconds)
	}

	remaining := limit - currentCount
	if remaining < 0 {
		remaining = 0
	}

	if !isExceeded {
		// Unique member per request: two requests in the same second must
		// both count toward the window.
		member := strconv.FormatInt(s.now().UnixNano(), 10) + ":" + uuid.NewString()
		insert := s.client.TxPipeline()
		insert.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: member})
		insert.Expire(ctx, key, time.Duration(2*windowSeconds)*time.Second)
		if _, err := insert.Exec(ctx); err != nil {
			return nil, fmt.Errorf("rate limit window consume: %w", err)
		}
		remaining--
		if remaining < 0 {
			remaining = 0
		}
	}

	return &models.Info{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		IsExceeded: isExceeded,
	}, nil
}

// Peek reports the current window state without consuming a slot.
func (s *RedisStore) Peek(ctx context.Context, identifier string, limit, windowSeconds int) (*models.Info, error) {
	key := models.KeyPrefix + identifier
	now := s.now().Unix()
	windowStart := now - int64(windowSeconds)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit window peek: %w", err)
	}

	currentCount := int(countCmd.Val())
	resetAt := now + int64(windowSeconds)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = int64(oldest[0].Score) + int64(windowSeconds)
	}

	remaining := limit - currentCount
	if remaining < 0 {
		remaining = 0
	}

	return &models.Info{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		IsExceeded: currentCount >= limit,
	}, nil
}
