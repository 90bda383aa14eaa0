package cache

import (
	"context"
	"sync"
	"time"

	"paygate/internal/auth/models"
)

// MemoryCache is an in-process identity cache for tests and single-node
// deployments without Redis.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	identity  models.Identity
	expiresAt time.Time
}

// NewMemory constructs an in-memory identity cache.
func NewMemory() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
}

// Get returns the cached identity for the credential, or nil on a miss.
func (c *MemoryCache) Get(_ context.Context, credential string) (*models.Identity, error) {
	c.mu.RLock()
	entry, ok := c.entries[credential]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, nil
	}
	identity := entry.identity
	return &identity, nil
}

// Set caches the identity under the credential with the configured TTL.
func (c *MemoryCache) Set(_ context.Context, credential string, identity *models.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[credential] = memoryEntry{
		identity:  *identity,
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

// Delete removes the cache entry.
func (c *MemoryCache) Delete(_ context.Context, credential string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, credential)
	return nil
}
