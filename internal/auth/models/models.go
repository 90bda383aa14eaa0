package models

import "strings"

// Tier is the service level granted to an authenticated caller. It drives the
// rate-limit quota and downstream authorization decisions.
type Tier string

const (
	TierPublic  Tier = "public"
	TierStarter Tier = "starter"
	TierGrowth  Tier = "growth"
	TierScale   Tier = "scale"
	TierAdmin   Tier = "admin"
)

// IsValid reports whether the tier is one of the known service levels.
func (t Tier) IsValid() bool {
	switch t {
	case TierPublic, TierStarter, TierGrowth, TierScale, TierAdmin:
		return true
	}
	return false
}

// ParseTier normalizes an arbitrary tier string, falling back to starter for
// anything it does not recognize.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(s))
	if !t.IsValid() {
		return TierStarter
	}
	return t
}

// AuthContext is the per-request authentication result. It is constructed once
// by the Authenticator, immutable afterwards, and never persisted.
type AuthContext struct {
	TenantID     string // empty for bootstrap/static/public contexts
	Tier         Tier
	CredentialID string // which API key resolved this, when applicable
	IsBootstrap  bool
	IsStatic     bool
}

// IsTenant reports whether the context is bound to a concrete tenant.
func (a *AuthContext) IsTenant() bool {
	return a != nil && a.TenantID != ""
}

// IsAdmin reports whether the context carries admin privileges.
func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.Tier == TierAdmin
}

// PresentedCredentials carries whatever the client attached to the request.
type PresentedCredentials struct {
	APIKey       string // X-API-Key header
	SessionToken string // bearer token from the Authorization header
}

// Identity is a resolved credential: the tenant it belongs to and its tier.
type Identity struct {
	TenantID     string `json:"tenant_id"`
	Tier         Tier   `json:"tier"`
	CredentialID string `json:"credential_id,omitempty"`
}
