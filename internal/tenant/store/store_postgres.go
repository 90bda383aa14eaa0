// Package store persists tenants and their API keys.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"paygate/internal/tenant/models"
	"paygate/pkg/platform/sentinel"
)

// PostgresStore persists tenants and API keys in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a Postgres-backed tenant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateTenant inserts a tenant, failing with ErrAlreadyExists when the email
// is taken.
func (s *PostgresStore) CreateTenant(ctx context.Context, t *models.Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, email, tier, subject_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Email, t.Tier, nullString(t.SubjectID), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("%w: insert tenant: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// FindTenant looks up a tenant by id.
func (s *PostgresStore) FindTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	var subjectID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, tier, subject_id, created_at, updated_at
		FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Email, &t.Tier, &subjectID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find tenant: %w", sentinel.ErrUnavailable, err)
	}
	t.SubjectID = subjectID.String
	return &t, nil
}

// InsertKey persists a newly issued API key.
func (s *PostgresStore) InsertKey(ctx context.Context, k *models.APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, key, tenant_id, name, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		k.ID, k.Key, k.TenantID, nullString(k.Name), k.IsActive, k.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert api key: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// FindKey looks up an API key by id, including its credential value so the
// caller can invalidate the auth cache on revocation.
func (s *PostgresStore) FindKey(ctx context.Context, id string) (*models.APIKey, error) {
	var k models.APIKey
	var name sql.NullString
	var lastUsed sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key, tenant_id, name, is_active, last_used_at, created_at
		FROM api_keys WHERE id = $1`, id,
	).Scan(&k.ID, &k.Key, &k.TenantID, &name, &k.IsActive, &lastUsed, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find api key: %w", sentinel.ErrUnavailable, err)
	}
	k.Name = name.String
	if lastUsed.Valid {
		k.LastUsedAt = &lastUsed.Time
	}
	return &k, nil
}

// DeactivateKey marks a key revoked.
func (s *PostgresStore) DeactivateKey(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: deactivate api key: %w", sentinel.ErrUnavailable, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListKeys returns a tenant's keys, newest first.
func (s *PostgresStore) ListKeys(ctx context.Context, tenantID string) ([]models.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, tenant_id, name, is_active, last_used_at, created_at
		FROM api_keys WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: list api keys: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var k models.APIKey
		var name sql.NullString
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Key, &k.TenantID, &name, &k.IsActive, &lastUsed, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan api key: %w", sentinel.ErrUnavailable, err)
		}
		k.Name = name.String
		if lastUsed.Valid {
			k.LastUsedAt = &lastUsed.Time
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list api keys: %w", sentinel.ErrUnavailable, err)
	}
	return keys, nil
}

func isUniqueViolation(err error) bool {
	// pgx surfaces postgres error codes in the error string when used
	// through database/sql; 23505 is unique_violation.
	return err != nil && strings.Contains(err.Error(), "23505")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
