// Package service manages customers and their API keys. Revoking a key
// synchronously invalidates its auth cache entry so a revoked credential
// stops working immediately rather than after cache expiry.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authmodels "paygate/internal/auth/models"
	"paygate/internal/tenant/models"
	dErrors "paygate/pkg/domain-errors"
	"paygate/pkg/platform/sentinel"
)

// keyPrefix identifies gateway-issued credentials.
const keyPrefix = "pk_"

// TenantStore persists tenants and API keys.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *models.Tenant) error
	FindTenant(ctx context.Context, id string) (*models.Tenant, error)
	InsertKey(ctx context.Context, k *models.APIKey) error
	FindKey(ctx context.Context, id string) (*models.APIKey, error)
	DeactivateKey(ctx context.Context, id string) error
	ListKeys(ctx context.Context, tenantID string) ([]models.APIKey, error)
}

// CredentialInvalidator removes a credential's auth cache entry on rotation
// or revocation.
type CredentialInvalidator interface {
	InvalidateCredential(ctx context.Context, credential string) error
}

// Service manages tenants and API keys. Thread-safe.
type Service struct {
	store        TenantStore
	invalidator  CredentialInvalidator
	logger       *slog.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithInvalidator sets the auth cache invalidator.
func WithInvalidator(inv CredentialInvalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

// WithStoreTimeout bounds individual store calls.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.storeTimeout = d }
}

// New creates a tenant management service.
func New(store TenantStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("tenant store is required")
	}
	s := &Service{
		store:        store,
		logger:       slog.Default(),
		storeTimeout: 5 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateTenant registers a new customer. Duplicate emails conflict.
func (s *Service) CreateTenant(ctx context.Context, req *models.CreateTenantRequest) (*models.Tenant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tenant := &models.Tenant{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Tier:      authmodels.ParseTier(req.Tier),
		SubjectID: req.SubjectID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	err := s.store.CreateTenant(storeCtx, tenant)
	if errors.Is(err, sentinel.ErrAlreadyExists) {
		return nil, dErrors.NewWithDetails(dErrors.CodeTenantExists,
			"customer with this email already exists",
			map[string]any{"email": req.Email})
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "customer creation failed")
	}

	s.logger.InfoContext(ctx, "customer created",
		"customer_id", tenant.ID,
		"tier", tenant.Tier,
	)
	return tenant, nil
}

// IssueKey generates a new API key for a tenant. The plaintext value is
// returned exactly once.
func (s *Service) IssueKey(ctx context.Context, tenantID, name string) (*models.APIKey, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.store.FindTenant(storeCtx, tenantID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NewWithDetails(dErrors.CodeTenantNotFound,
				"customer not found: "+tenantID,
				map[string]any{"customer_id": tenantID})
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "customer lookup failed")
	}

	key := &models.APIKey{
		ID:        uuid.NewString(),
		Key:       generateKey(),
		TenantID:  tenantID,
		Name:      name,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertKey(storeCtx, key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "api key creation failed")
	}

	s.logger.InfoContext(ctx, "api key issued",
		"key_id", key.ID,
		"customer_id", tenantID,
	)
	return key, nil
}

// RevokeKey deactivates an API key and drops its auth cache entry. Tenant
// callers can only revoke their own keys.
func (s *Service) RevokeKey(ctx context.Context, authCtx *authmodels.AuthContext, keyID string) error {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	key, err := s.store.FindKey(storeCtx, keyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.NewWithDetails(dErrors.CodeAPIKeyNotFound,
			"api key not found: "+keyID,
			map[string]any{"key_id": keyID})
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "api key lookup failed")
	}

	if authCtx.IsTenant() && key.TenantID != authCtx.TenantID {
		return dErrors.New(dErrors.CodeForbidden, "api key belongs to another customer")
	}

	if err := s.store.DeactivateKey(storeCtx, keyID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "api key revocation failed")
	}

	// The revoked credential must stop authenticating now, not when its
	// cache entry expires.
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateCredential(ctx, key.Key); err != nil {
			s.logger.WarnContext(ctx, "auth cache invalidation failed after revocation",
				"key_id", keyID,
				"error", err,
			)
		}
	}

	s.logger.InfoContext(ctx, "api key revoked",
		"key_id", keyID,
		"customer_id", key.TenantID,
	)
	return nil
}

// ListKeys returns a tenant's keys without their credential values.
func (s *Service) ListKeys(ctx context.Context, tenantID string) ([]models.APIKey, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	keys, err := s.store.ListKeys(storeCtx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "api key listing failed")
	}
	return keys, nil
}

func generateKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is unusable anyway.
		panic(err)
	}
	return keyPrefix + hex.EncodeToString(buf)
}
