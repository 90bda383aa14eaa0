// Package models defines the payment domain's types: providers, statuses,
// the durable payment record, and the request/response shapes of the public
// payment operations.
package models

import (
	"strings"
	"time"

	dErrors "paygate/pkg/domain-errors"
)

// Provider identifies an external payment processor.
type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderPayPal Provider = "paypal"
)

// IsValid reports whether the provider is one of the supported processors.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderStripe, ProviderPayPal:
		return true
	}
	return false
}

// ParseProvider normalizes a provider name. Unknown names fail with
// INVALID_PROVIDER so the caller can reject the request before any side
// effect.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", dErrors.NewWithDetails(dErrors.CodeInvalidProvider,
			"unsupported payment provider: "+s,
			map[string]any{"provider": s})
	}
	return p, nil
}

// Status is the lifecycle state of a payment or refund.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// IsValid reports whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// IsTerminalRefund reports whether a provider-reported refund state means the
// money is back with the customer. Anything else keeps the payment in
// processing until a later status sync settles it.
func (s Status) IsTerminalRefund() bool {
	return s == StatusRefunded
}

// PaymentRecord is the durable record of a payment attempt and its lifecycle.
// Amounts are integer minor units (cents for USD); zero-decimal currencies
// carry whole units.
type PaymentRecord struct {
	ID                    string         `json:"id"`
	Provider              Provider       `json:"provider"`
	ProviderTransactionID string         `json:"provider_transaction_id"`
	Amount                int64          `json:"amount"`
	Currency              string         `json:"currency"`
	Status                Status         `json:"status"`
	TenantID              string         `json:"customer_id,omitempty"`
	Metadata              map[string]any `json:"metadata,omitempty"`
	RefundID              string         `json:"refund_id,omitempty"`
	RefundStatus          string         `json:"refund_status,omitempty"`
	RefundAmount          int64          `json:"refund_amount,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// HasOpenRefund reports whether the record already carries a refund that has
// not failed. One refund per payment: a second refund is only allowed after a
// failed one.
func (p *PaymentRecord) HasOpenRefund() bool {
	return p.RefundID != "" && Status(p.RefundStatus) != StatusFailed
}

// CreatePaymentRequest is the inbound shape for creating a payment.
type CreatePaymentRequest struct {
	Provider      string         `json:"provider"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	PaymentMethod string         `json:"payment_method"`
	TenantID      string         `json:"customer_id,omitempty"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Validate checks the request shape before any provider call.
func (r *CreatePaymentRequest) Validate() error {
	if r.Amount <= 0 {
		return dErrors.NewWithDetails(dErrors.CodeValidation,
			"amount must be a positive integer in minor units",
			map[string]any{"amount": r.Amount})
	}
	if len(r.Currency) != 3 {
		return dErrors.NewWithDetails(dErrors.CodeValidation,
			"currency must be a three-letter ISO 4217 code",
			map[string]any{"currency": r.Currency})
	}
	if r.PaymentMethod == "" {
		return dErrors.New(dErrors.CodeValidation, "payment_method is required")
	}
	if _, err := ParseProvider(r.Provider); err != nil {
		return err
	}
	return nil
}

// CreatePaymentResponse is the outbound shape of a created payment. The full
// serialized form is what the idempotency cache replays.
type CreatePaymentResponse struct {
	ID                    string         `json:"id"`
	ProviderTransactionID string         `json:"provider_transaction_id"`
	Amount                int64          `json:"amount"`
	Currency              string         `json:"currency"`
	Status                Status         `json:"status"`
	CreatedAt             string         `json:"created_at"`
	TraceID               string         `json:"trace_id,omitempty"`
	Metadata              map[string]any `json:"metadata,omitempty"`
	ProviderMetadata      map[string]any `json:"provider_metadata,omitempty"`
	ClientSecret          string         `json:"client_secret,omitempty"`
}

// RefundPaymentRequest is the inbound shape for refunding a payment. A zero
// amount means full refund.
type RefundPaymentRequest struct {
	Amount int64  `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Validate checks the refund shape.
func (r *RefundPaymentRequest) Validate() error {
	if r.Amount < 0 {
		return dErrors.NewWithDetails(dErrors.CodeValidation,
			"refund amount must be positive when provided",
			map[string]any{"amount": r.Amount})
	}
	return nil
}

// RefundPaymentResponse is the outbound shape of a refund.
type RefundPaymentResponse struct {
	RefundID              string         `json:"refund_id"`
	OriginalTransactionID string         `json:"original_transaction_id"`
	Amount                int64          `json:"amount"`
	Status                Status         `json:"status"`
	CreatedAt             string         `json:"created_at"`
	TraceID               string         `json:"trace_id,omitempty"`
	ProviderMetadata      map[string]any `json:"provider_metadata,omitempty"`
}

// PaymentStatusResponse is the outbound shape of a status check.
type PaymentStatusResponse struct {
	ID                    string   `json:"id"`
	ProviderTransactionID string   `json:"provider_transaction_id"`
	Provider              Provider `json:"provider"`
	Status                Status   `json:"status"`
	Amount                int64    `json:"amount"`
	Currency              string   `json:"currency"`
	CreatedAt             string   `json:"created_at"`
	UpdatedAt             string   `json:"updated_at"`
	TraceID               string   `json:"trace_id,omitempty"`
	RefundID              string   `json:"refund_id,omitempty"`
	RefundStatus          string   `json:"refund_status,omitempty"`
	RefundAmount          int64    `json:"refund_amount,omitempty"`
}

// ListPaymentsFilter selects payment records for listing. Zero values mean
// "no filter".
type ListPaymentsFilter struct {
	Provider  Provider
	Status    Status
	TenantID  string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

// Normalize clamps pagination to the supported range.
func (f *ListPaymentsFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListPaymentsResponse is the outbound shape of a payment listing.
type ListPaymentsResponse struct {
	Payments []PaymentRecord `json:"payments"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
	TraceID  string          `json:"trace_id,omitempty"`
}
