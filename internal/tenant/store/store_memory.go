package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"paygate/internal/tenant/models"
	"paygate/pkg/platform/sentinel"
)

// MemoryStore keeps tenants and API keys in process memory. Backs tests and
// database-less local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*models.Tenant
	keys    map[string]*models.APIKey

	// Unavailable simulates a store outage.
	Unavailable bool
}

// NewMemory constructs an in-memory tenant store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]*models.Tenant),
		keys:    make(map[string]*models.APIKey),
	}
}

// CreateTenant inserts a tenant, rejecting duplicate emails.
func (s *MemoryStore) CreateTenant(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return sentinel.ErrUnavailable
	}
	for _, existing := range s.tenants {
		if strings.EqualFold(existing.Email, t.Email) {
			return sentinel.ErrAlreadyExists
		}
	}
	clone := *t
	s.tenants[t.ID] = &clone
	return nil
}

// FindTenant looks up a tenant by id.
func (s *MemoryStore) FindTenant(_ context.Context, id string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Unavailable {
		return nil, sentinel.ErrUnavailable
	}
	t, ok := s.tenants[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

// InsertKey persists a newly issued API key.
func (s *MemoryStore) InsertKey(_ context.Context, k *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return sentinel.ErrUnavailable
	}
	clone := *k
	s.keys[k.ID] = &clone
	return nil
}

// FindKey looks up an API key by id.
func (s *MemoryStore) FindKey(_ context.Context, id string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Unavailable {
		return nil, sentinel.ErrUnavailable
	}
	k, ok := s.keys[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *k
	return &clone, nil
}

// DeactivateKey marks a key revoked.
func (s *MemoryStore) DeactivateKey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return sentinel.ErrUnavailable
	}
	k, ok := s.keys[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	k.IsActive = false
	return nil
}

// ListKeys returns a tenant's keys, newest first.
func (s *MemoryStore) ListKeys(_ context.Context, tenantID string) ([]models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Unavailable {
		return nil, sentinel.ErrUnavailable
	}
	var keys []models.APIKey
	for _, k := range s.keys {
		if k.TenantID == tenantID {
			keys = append(keys, *k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}
