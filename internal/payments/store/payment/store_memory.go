package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	"paygate/internal/payments/models"
	"paygate/pkg/platform/sentinel"
)

// MemoryStore keeps payment records in process memory. Backs tests and
// database-less local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.PaymentRecord

	// Unavailable simulates a store outage.
	Unavailable bool
}

// NewMemory constructs an in-memory payment store.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.PaymentRecord)}
}

// Create inserts a new payment record.
func (s *MemoryStore) Create(_ context.Context, rec *models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return sentinel.ErrUnavailable
	}
	if _, exists := s.records[rec.ID]; exists {
		return sentinel.ErrAlreadyExists
	}
	clone := *rec
	s.records[rec.ID] = &clone
	return nil
}

// Find looks up a record by internal id, then by provider transaction id.
func (s *MemoryStore) Find(_ context.Context, id string) (*models.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Unavailable {
		return nil, sentinel.ErrUnavailable
	}
	if rec, ok := s.records[id]; ok {
		clone := *rec
		return &clone, nil
	}
	for _, rec := range s.records {
		if rec.ProviderTransactionID == id {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// UpdateRefund records the refund outcome and the resulting payment status.
func (s *MemoryStore) UpdateRefund(_ context.Context, id, refundID, refundStatus string, refundAmount int64, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return sentinel.ErrUnavailable
	}
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.RefundID = refundID
	rec.RefundStatus = refundStatus
	rec.RefundAmount = refundAmount
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStatus syncs the payment status.
func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return sentinel.ErrUnavailable
	}
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// List returns records matching the filter, newest first.
func (s *MemoryStore) List(_ context.Context, filter models.ListPaymentsFilter) ([]models.PaymentRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Unavailable {
		return nil, 0, sentinel.ErrUnavailable
	}

	var matched []models.PaymentRecord
	for _, rec := range s.records {
		if filter.Provider != "" && rec.Provider != filter.Provider {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.TenantID != "" && rec.TenantID != filter.TenantID {
			continue
		}
		if !filter.StartDate.IsZero() && rec.CreatedAt.Before(filter.StartDate) {
			continue
		}
		if !filter.EndDate.IsZero() && rec.CreatedAt.After(filter.EndDate) {
			continue
		}
		matched = append(matched, *rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}
