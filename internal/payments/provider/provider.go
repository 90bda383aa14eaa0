// Package provider defines the payment-processor capability interface and the
// registry that resolves a provider name to its configured adapter. New
// processors implement Adapter and register; the execution pipeline never
// changes.
package provider

import (
	"context"
	"sort"
	"sync"

	"paygate/internal/payments/models"
	dErrors "paygate/pkg/domain-errors"
)

// CreatePaymentInput carries everything an adapter needs to create a payment.
// The idempotency key is forwarded unchanged so the processor deduplicates on
// its side as well.
type CreatePaymentInput struct {
	Amount         int64
	Currency       string
	PaymentMethod  string
	TenantID       string
	Description    string
	Metadata       map[string]any
	IdempotencyKey string
}

// PaymentResult is the processor's answer to a create call.
type PaymentResult struct {
	ProviderTransactionID string
	Status                models.Status
	ClientSecret          string
	ProviderMetadata      map[string]any
}

// RefundInput carries a refund call's parameters. A zero Amount means full
// refund.
type RefundInput struct {
	ProviderTransactionID string
	Amount                int64
	Currency              string
	Reason                string
	IdempotencyKey        string
}

// RefundResult is the processor's answer to a refund call.
type RefundResult struct {
	RefundID         string
	Status           models.Status
	Amount           int64
	ProviderMetadata map[string]any
}

// StatusResult is the processor's answer to a status check.
type StatusResult struct {
	Status           models.Status
	ProviderMetadata map[string]any
}

// Adapter is the capability every payment processor integration implements.
// Failures are typed: PAYMENT_NOT_FOUND, PAYMENT_FAILED / REFUND_FAILED for
// business rejections, PROVIDER_ERROR for infrastructure faults.
type Adapter interface {
	Name() models.Provider
	CreatePayment(ctx context.Context, in CreatePaymentInput) (*PaymentResult, error)
	RefundPayment(ctx context.Context, in RefundInput) (*RefundResult, error)
	GetPaymentStatus(ctx context.Context, providerTransactionID string) (*StatusResult, error)
}

// Registry resolves provider names to configured adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.Provider]Adapter
}

// NewRegistry builds a registry over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Resolve returns the adapter for a provider, failing with INVALID_PROVIDER
// when the name is unknown or the processor is not configured.
func (r *Registry) Resolve(p models.Provider) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[p]
	if !ok {
		return nil, dErrors.NewWithDetails(dErrors.CodeInvalidProvider,
			"payment provider not configured: "+string(p),
			map[string]any{"provider": string(p)})
	}
	return a, nil
}

// Names lists the configured providers, sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for p := range r.adapters {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
