// Package payment persists PaymentRecord rows: created after a provider
// confirms a payment, updated on refund and on status sync.
package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"paygate/internal/payments/models"
	"paygate/pkg/platform/sentinel"
)

// PostgresStore persists payment records in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a Postgres-backed payment store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const paymentColumns = `id, provider, provider_transaction_id, amount, currency,
	status, customer_id, metadata, refund_id, refund_status, refund_amount,
	created_at, updated_at`

// Create inserts a new payment record.
func (s *PostgresStore) Create(ctx context.Context, rec *models.PaymentRecord) error {
	metadata, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments (id, provider, provider_transaction_id, amount,
			currency, status, customer_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Provider, rec.ProviderTransactionID, rec.Amount,
		rec.Currency, rec.Status, nullString(rec.TenantID), metadata,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert payment: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Find looks up a record by internal id, falling back to the provider's
// transaction id so callers holding only the processor reference still
// resolve.
func (s *PostgresStore) Find(ctx context.Context, id string) (*models.PaymentRecord, error) {
	rec, err := s.findBy(ctx, "id", id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return s.findBy(ctx, "provider_transaction_id", id)
	}
	return rec, err
}

func (s *PostgresStore) findBy(ctx context.Context, column, value string) (*models.PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE `+column+` = $1`, value)
	rec, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find payment: %w", sentinel.ErrUnavailable, err)
	}
	return rec, nil
}

// UpdateRefund records the refund outcome and the resulting payment status.
func (s *PostgresStore) UpdateRefund(ctx context.Context, id, refundID, refundStatus string, refundAmount int64, status models.Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET refund_id = $2, refund_status = $3, refund_amount = $4,
			status = $5, updated_at = now()
		WHERE id = $1`,
		id, refundID, refundStatus, refundAmount, status,
	)
	if err != nil {
		return fmt.Errorf("%w: update payment refund: %w", sentinel.ErrUnavailable, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// UpdateStatus syncs the payment status from provider-reported truth.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("%w: update payment status: %w", sentinel.ErrUnavailable, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns records matching the filter, newest first, with the total
// count of matches before pagination.
func (s *PostgresStore) List(ctx context.Context, filter models.ListPaymentsFilter) ([]models.PaymentRecord, int, error) {
	where, args := buildFilter(filter)

	var total int
	countQuery := "SELECT count(*) FROM payments" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count payments: %w", sentinel.ErrUnavailable, err)
	}

	query := "SELECT " + paymentColumns + " FROM payments" + where +
		" ORDER BY created_at DESC" +
		" LIMIT $" + strconv.Itoa(len(args)+1) +
		" OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list payments: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var records []models.PaymentRecord
	for rows.Next() {
		rec, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scan payment: %w", sentinel.ErrUnavailable, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: list payments: %w", sentinel.ErrUnavailable, err)
	}
	return records, total, nil
}

func buildFilter(filter models.ListPaymentsFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, clause+" $"+strconv.Itoa(len(args)))
	}

	if filter.Provider != "" {
		add("provider =", string(filter.Provider))
	}
	if filter.Status != "" {
		add("status =", string(filter.Status))
	}
	if filter.TenantID != "" {
		add("customer_id =", filter.TenantID)
	}
	if !filter.StartDate.IsZero() {
		add("created_at >=", filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		add("created_at <=", filter.EndDate)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPayment(row scannable) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	var tenantID, refundID, refundStatus sql.NullString
	var refundAmount sql.NullInt64
	var metadata []byte
	var createdAt, updatedAt time.Time

	err := row.Scan(&rec.ID, &rec.Provider, &rec.ProviderTransactionID,
		&rec.Amount, &rec.Currency, &rec.Status, &tenantID, &metadata,
		&refundID, &refundStatus, &refundAmount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.TenantID = tenantID.String
	rec.RefundID = refundID.String
	rec.RefundStatus = refundStatus.String
	rec.RefundAmount = refundAmount.Int64
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal payment metadata: %w", err)
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
