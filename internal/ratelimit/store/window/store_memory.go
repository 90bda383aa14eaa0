package window

import (
	"context"
	"sync"
	"time"

	"paygate/internal/ratelimit/models"
)

// MemoryStore implements the sliding window in process memory. For production
// use RedisStore; this variant backs tests and Redis-less local runs.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]int64 // identifier -> sorted unix-second timestamps
	now     func() time.Time

	// Unavailable simulates a store outage; callers should fail open.
	Unavailable bool
}

// NewMemory constructs an in-memory window store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string][]int64),
		now:     time.Now,
	}
}

// SetClock overrides the store clock. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CheckAndConsume mirrors RedisStore.CheckAndConsume with a mutex standing in
// for the pipeline's atomicity.
func (s *MemoryStore) CheckAndConsume(_ context.Context, identifier string, limit, windowSeconds int) (*models.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unavailable {
		return nil, context.DeadlineExceeded
	}

	now := s.now().Unix()
	timestamps := s.purge(identifier, now-int64(windowSeconds))
	currentCount := len(timestamps)
	isExceeded := currentCount >= limit

	resetAt := now + int64(windowSeconds)
	if currentCount > 0 {
		resetAt = timestamps[0] + int64(windowSeconds)
	}

	remaining := max(0, limit-currentCount)
	if !isExceeded {
		s.windows[identifier] = append(timestamps, now)
		remaining = max(0, remaining-1)
	}

	return &models.Info{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		IsExceeded: isExceeded,
	}, nil
}

// Peek reports the current window state without consuming a slot.
func (s *MemoryStore) Peek(_ context.Context, identifier string, limit, windowSeconds int) (*models.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unavailable {
		return nil, context.DeadlineExceeded
	}

	now := s.now().Unix()
	timestamps := s.purge(identifier, now-int64(windowSeconds))
	currentCount := len(timestamps)

	resetAt := now + int64(windowSeconds)
	if currentCount > 0 {
		resetAt = timestamps[0] + int64(windowSeconds)
	}

	return &models.Info{
		Limit:      limit,
		Remaining:  max(0, limit-currentCount),
		ResetAt:    resetAt,
		IsExceeded: currentCount >= limit,
	}, nil
}

// purge drops timestamps at or before the threshold and returns the survivors.
// Caller holds the lock.
func (s *MemoryStore) purge(identifier string, threshold int64) []int64 {
	timestamps := s.windows[identifier]
	i := 0
	for ; i < len(timestamps); i++ {
		if timestamps[i] > threshold {
			break
		}
	}
	timestamps = timestamps[i:]
	if len(timestamps) == 0 {
		delete(s.windows, identifier)
		return nil
	}
	s.windows[identifier] = timestamps
	return timestamps
}
