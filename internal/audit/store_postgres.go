package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore appends events to the audit_logs table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore builds a database-backed sink.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Record implements Sink.
func (s *PostgresStore) Record(ctx context.Context, event Event) error {
	var details []byte
	if event.Details != nil {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (created_at, action, customer_id, endpoint,
			method, provider, provider_transaction_id, refund_id, amount,
			currency, latency_ms, error_message, trace_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		event.Timestamp, event.Action, nullable(event.TenantID),
		nullable(event.Endpoint), nullable(event.Method),
		nullable(event.Provider), nullable(event.ProviderTransactionID),
		nullable(event.RefundID), event.Amount, nullable(event.Currency),
		event.LatencyMS, nullable(event.ErrorMessage),
		nullable(event.TraceID), details,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
