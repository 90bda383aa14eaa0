// Package credential persists API keys and their tenant bindings.
//
// Lookups distinguish "no such credential" (sentinel.ErrNotFound) from
// infrastructure failures (sentinel.ErrUnavailable): the Authenticator must
// never report an outage as an invalid credential.
package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paygate/internal/auth/models"
	"paygate/pkg/platform/sentinel"
)

// PostgresStore persists credentials in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindActiveCredential resolves a presented API key to its identity, joining
// the owning tenant for the tier.
func (s *PostgresStore) FindActiveCredential(ctx context.Context, value string) (*models.Identity, error) {
	const q = `
		SELECT k.id, k.tenant_id, t.tier
		FROM api_keys k
		JOIN tenants t ON t.id = k.tenant_id
		WHERE k.key = $1 AND k.is_active`

	var identity models.Identity
	var tier string
	err := s.db.QueryRowContext(ctx, q, value).Scan(&identity.CredentialID, &identity.TenantID, &tier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find active credential: %w: %w", sentinel.ErrUnavailable, err)
	}

	identity.Tier = models.ParseTier(tier)
	return &identity, nil
}

// FindTenantBySubject resolves a session-token subject to its tenant.
func (s *PostgresStore) FindTenantBySubject(ctx context.Context, subject string) (*models.Identity, error) {
	const q = `SELECT id, tier FROM tenants WHERE subject_id = $1`
	return s.findTenant(ctx, q, subject)
}

// FindTenantByEmail resolves an email claim to its tenant. Used as a fallback
// for tenants created before their subject id was recorded.
func (s *PostgresStore) FindTenantByEmail(ctx context.Context, email string) (*models.Identity, error) {
	const q = `SELECT id, tier FROM tenants WHERE email = $1`
	return s.findTenant(ctx, q, email)
}

func (s *PostgresStore) findTenant(ctx context.Context, query, arg string) (*models.Identity, error) {
	var identity models.Identity
	var tier string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&identity.TenantID, &tier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant: %w: %w", sentinel.ErrUnavailable, err)
	}
	identity.Tier = models.ParseTier(tier)
	return &identity, nil
}

// BindSubject records the subject id on a tenant resolved via email fallback,
// so future session-token lookups hit the subject path directly.
func (s *PostgresStore) BindSubject(ctx context.Context, tenantID, subject string) error {
	const q = `UPDATE tenants SET subject_id = $1 WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, q, subject, tenantID); err != nil {
		return fmt.Errorf("bind subject: %w", err)
	}
	return nil
}

// TouchLastUsed records when the credential last authenticated a request.
// Fire-and-forget: callers must not fail a request on error.
func (s *PostgresStore) TouchLastUsed(ctx context.Context, credentialID string) error {
	const q = `UPDATE api_keys SET last_used_at = now() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, credentialID); err != nil {
		return fmt.Errorf("touch last used: %w", err)
	}
	return nil
}
