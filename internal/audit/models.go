// Package audit captures the durable trail of payment and refund outcomes.
// Emission is best-effort everywhere: a lost audit event never changes the
// outcome of the operation it describes.
package audit

import "time"

// Action names the audited operation outcome.
type Action string

const (
	ActionPaymentCreated Action = "payment_created"
	ActionPaymentFailed  Action = "payment_failed"
	ActionRefundCreated  Action = "refund_created"
	ActionRefundFailed   Action = "refund_failed"
	ActionStatusChecked  Action = "status_checked"
)

// Event is one audit entry. Keep it transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp             time.Time      `json:"timestamp"`
	Action                Action         `json:"action"`
	TenantID              string         `json:"customer_id,omitempty"`
	Endpoint              string         `json:"endpoint,omitempty"`
	Method                string         `json:"method,omitempty"`
	Provider              string         `json:"provider,omitempty"`
	ProviderTransactionID string         `json:"provider_transaction_id,omitempty"`
	RefundID              string         `json:"refund_id,omitempty"`
	Amount                int64          `json:"amount,omitempty"`
	Currency              string         `json:"currency,omitempty"`
	LatencyMS             int64          `json:"latency_ms"`
	ErrorMessage          string         `json:"error_message,omitempty"`
	TraceID               string         `json:"trace_id,omitempty"`
	Details               map[string]any `json:"details,omitempty"`
}
