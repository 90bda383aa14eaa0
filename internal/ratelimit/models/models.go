// Package models defines the rate limiter's value types: tier quotas,
// window identifiers, and the per-check result.
package models

import (
	"paygate/internal/auth/models"
)

// Window is the sliding-window length in seconds for every tier.
const Window = 60

// KeyPrefix namespaces rate-limit keys in the shared counter store.
const KeyPrefix = "ratelimit:"

// tierLimits maps each tier to its requests-per-window quota.
var tierLimits = map[models.Tier]int{
	models.TierStarter: 100,
	models.TierGrowth:  500,
	models.TierScale:   2000,
	models.TierAdmin:   10000,
	models.TierPublic:  60,
}

// TierLimit returns the quota for a tier. Unrecognized tiers get the starter
// quota so a bad tier string can never grant unlimited throughput.
func TierLimit(tier models.Tier) int {
	if limit, ok := tierLimits[tier]; ok {
		return limit
	}
	return tierLimits[models.TierStarter]
}

// Identifier selects the window key for a request: the tenant when
// authenticated as one, otherwise the client IP.
func Identifier(authCtx *models.AuthContext, clientIP string) string {
	if authCtx.IsTenant() {
		return "tenant:" + authCtx.TenantID
	}
	if clientIP == "" {
		clientIP = "unknown"
	}
	return "ip:" + clientIP
}

// Info is the response-facing rate limit status, computed fresh per check.
type Info struct {
	Limit      int   `json:"limit"`
	Remaining  int   `json:"remaining"`
	ResetAt    int64 `json:"reset_at"` // unix seconds
	IsExceeded bool  `json:"is_exceeded"`
}

// RetryAfter returns the seconds a limited caller should wait, never negative.
func (i Info) RetryAfter(now int64) int64 {
	retry := i.ResetAt - now
	if retry < 0 {
		return 0
	}
	return retry
}
