package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore mirrors RedisStore in process memory. Backs tests and
// Redis-less local runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time

	// Unavailable simulates a store outage; reads fail open to a fresh
	// attempt, writes are swallowed by the caller.
	Unavailable bool
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemory constructs an in-memory idempotency store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the store clock. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get returns the cached response for a key, or nil when absent.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return nil, context.DeadlineExceeded
	}
	entry, ok := s.entries[responseKey(key)]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.entries, responseKey(key))
		return nil, nil
	}
	return entry.data, nil
}

// Set caches a completed response for ResponseTTL.
func (s *MemoryStore) Set(_ context.Context, key string, response []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return context.DeadlineExceeded
	}
	s.entries[responseKey(key)] = memoryEntry{
		data:      response,
		expiresAt: s.now().Add(ResponseTTL),
	}
	return nil
}

// Claim marks the key as in-flight, returning true for the winner.
func (s *MemoryStore) Claim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return false, context.DeadlineExceeded
	}
	ck := claimKey(key)
	if entry, ok := s.entries[ck]; ok && s.now().Before(entry.expiresAt) {
		return false, nil
	}
	s.entries[ck] = memoryEntry{expiresAt: s.now().Add(ClaimTTL)}
	return true, nil
}

// Release drops the claim marker.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return context.DeadlineExceeded
	}
	delete(s.entries, claimKey(key))
	return nil
}
