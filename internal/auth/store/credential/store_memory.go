package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paygate/internal/auth/models"
	"paygate/pkg/platform/sentinel"
)

// Record is an in-memory credential row.
type Record struct {
	ID         string
	Key        string
	TenantID   string
	Tier       models.Tier
	Active     bool
	LastUsedAt time.Time
}

// Tenant is an in-memory tenant row for subject/email lookups.
type Tenant struct {
	ID        string
	Tier      models.Tier
	Email     string
	SubjectID string
}

// MemoryStore is an in-memory credential store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	byKey   map[string]*Record
	tenants map[string]*Tenant

	// Unavailable simulates an unreachable backing store when set.
	Unavailable bool
}

// NewMemory constructs an empty in-memory credential store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byKey:   make(map[string]*Record),
		tenants: make(map[string]*Tenant),
	}
}

// AddCredential seeds a credential row.
func (s *MemoryStore) AddCredential(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[rec.Key] = &rec
}

// AddTenant seeds a tenant row.
func (s *MemoryStore) AddTenant(t Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = &t
}

// RemoveCredential deletes a credential row (simulates revocation).
func (s *MemoryStore) RemoveCredential(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byKey, key)
}

func (s *MemoryStore) FindActiveCredential(_ context.Context, value string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Unavailable {
		return nil, fmt.Errorf("memory store: %w", sentinel.ErrUnavailable)
	}

	rec, ok := s.byKey[value]
	if !ok || !rec.Active {
		return nil, fmt.Errorf("credential not found: %w", sentinel.ErrNotFound)
	}
	return &models.Identity{
		TenantID:     rec.TenantID,
		Tier:         rec.Tier,
		CredentialID: rec.ID,
	}, nil
}

func (s *MemoryStore) FindTenantBySubject(_ context.Context, subject string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Unavailable {
		return nil, fmt.Errorf("memory store: %w", sentinel.ErrUnavailable)
	}
	for _, t := range s.tenants {
		if t.SubjectID == subject {
			return &models.Identity{TenantID: t.ID, Tier: t.Tier}, nil
		}
	}
	return nil, fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
}

func (s *MemoryStore) FindTenantByEmail(_ context.Context, email string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Unavailable {
		return nil, fmt.Errorf("memory store: %w", sentinel.ErrUnavailable)
	}
	for _, t := range s.tenants {
		if t.Email == email {
			return &models.Identity{TenantID: t.ID, Tier: t.Tier}, nil
		}
	}
	return nil, fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
}

func (s *MemoryStore) BindSubject(_ context.Context, tenantID, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[tenantID]; ok {
		t.SubjectID = subject
	}
	return nil
}

func (s *MemoryStore) TouchLastUsed(_ context.Context, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byKey {
		if rec.ID == credentialID {
			rec.LastUsedAt = time.Now()
		}
	}
	return nil
}
