// Package middleware enforces the sliding-window quota on the HTTP surface.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	authMW "paygate/internal/auth/middleware"
	authmodels "paygate/internal/auth/models"
	platformMW "paygate/internal/platform/middleware"
	"paygate/internal/ratelimit/models"
	dErrors "paygate/pkg/domain-errors"
	httperrors "paygate/pkg/http-errors"
)

// Limiter checks and consumes one quota slot for the request's identifier.
type Limiter interface {
	CheckRequest(ctx context.Context, authCtx *authmodels.AuthContext, clientIP string) *models.Info
}

// ExemptFunc reports whether a route bypasses rate limiting. The gateway
// exempts the same allow-list that bypasses authentication.
type ExemptFunc func(method, path string) bool

// RateLimit consumes a quota slot per request and stamps the quota headers on
// every non-exempt response. Exhausted callers get a 429 with Retry-After.
func RateLimit(limiter Limiter, exempt ExemptFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt != nil && exempt(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			authCtx := authMW.GetAuthContext(ctx)
			clientIP := platformMW.GetClientIP(ctx)

			info := limiter.CheckRequest(ctx, authCtx, clientIP)
			setQuotaHeaders(w, info)

			if info.IsExceeded {
				retryAfter := info.RetryAfter(time.Now().Unix())
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				httperrors.WriteCode(w, dErrors.CodeRateLimitExceeded,
					"Rate limit exceeded. Please try again later.",
					map[string]any{
						"limit":       info.Limit,
						"remaining":   info.Remaining,
						"reset_at":    info.ResetAt,
						"retry_after": retryAfter,
					},
					platformMW.GetTraceID(ctx),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setQuotaHeaders(w http.ResponseWriter, info *models.Info) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt, 10))
}
