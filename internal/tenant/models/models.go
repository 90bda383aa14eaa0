// Package models defines the tenant (customer) and API-key management types.
package models

import (
	"strings"
	"time"

	authmodels "paygate/internal/auth/models"
	dErrors "paygate/pkg/domain-errors"
)

// Tenant is a billing customer of the gateway.
type Tenant struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Tier      authmodels.Tier `json:"tier"`
	SubjectID string          `json:"user_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// APIKey is a tenant-issued credential. The key value is returned exactly
// once, at creation.
type APIKey struct {
	ID         string     `json:"id"`
	Key        string     `json:"-"`
	TenantID   string     `json:"-"`
	Name       string     `json:"name,omitempty"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateTenantRequest is the inbound shape for creating a customer.
type CreateTenantRequest struct {
	Email     string `json:"email"`
	Tier      string `json:"tier,omitempty"`
	SubjectID string `json:"user_id,omitempty"`
}

// Validate checks the request shape.
func (r *CreateTenantRequest) Validate() error {
	email := strings.TrimSpace(r.Email)
	if email == "" || !strings.Contains(email, "@") {
		return dErrors.NewWithDetails(dErrors.CodeValidation,
			"a valid email is required",
			map[string]any{"email": r.Email})
	}
	return nil
}

// TenantResponse is the outbound customer shape.
type TenantResponse struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Tier      authmodels.Tier `json:"tier"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	TraceID   string          `json:"trace_id,omitempty"`
}

// CreateAPIKeyRequest is the inbound shape for issuing a key. TenantID is
// required for bootstrap/static contexts and ignored for tenant contexts.
type CreateAPIKeyRequest struct {
	Name     string `json:"name,omitempty"`
	TenantID string `json:"customer_id,omitempty"`
}

// CreateAPIKeyResponse carries the one-time plaintext key.
type CreateAPIKeyResponse struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	TraceID   string `json:"trace_id,omitempty"`
}

// ListAPIKeysResponse lists a tenant's keys without their values.
type ListAPIKeysResponse struct {
	Keys    []APIKey `json:"keys"`
	TraceID string   `json:"trace_id,omitempty"`
}

// RevokeAPIKeyResponse confirms a revocation.
type RevokeAPIKeyResponse struct {
	ID      string `json:"id"`
	Revoked bool   `json:"revoked"`
	TraceID string `json:"trace_id,omitempty"`
}
