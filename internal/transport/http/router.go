// Package httptransport assembles the gateway's HTTP surface: the middleware
// chain and every mounted route.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	authMW "paygate/internal/auth/middleware"
	authmodels "paygate/internal/auth/models"
	"paygate/internal/platform/health"
	platformMW "paygate/internal/platform/middleware"
	ratelimitMW "paygate/internal/ratelimit/middleware"
)

// Registrar mounts a handler's routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router mounts.
type Deps struct {
	Logger        *slog.Logger
	Authenticator authMW.Authenticator
	Limiter       ratelimitMW.Limiter
	Payments      Registrar
	Tenants       Registrar
	Quota         Registrar
	Health        *health.Handler
	Metrics       http.Handler

	// Exempt bypasses rate limiting for allow-listed routes. Defaults to the
	// public route set that also bypasses authentication.
	Exempt ratelimitMW.ExemptFunc
}

// NewRouter wires the middleware chain and mounts all endpoints. The order
// matters: trace id and client ip resolve first so every later stage can log
// and key on them, authentication runs before rate limiting so quotas key on
// the authenticated tenant.
func NewRouter(deps Deps) http.Handler {
	exempt := deps.Exempt
	if exempt == nil {
		public := authmodels.DefaultPublicRoutes()
		exempt = func(method, path string) bool {
			return authmodels.IsAuthBypassMethod(method) || public.Contains(method, path)
		}
	}

	r := chi.NewRouter()

	r.Use(platformMW.TraceID)
	r.Use(platformMW.ClientIP)
	r.Use(platformMW.Recovery(deps.Logger))
	r.Use(platformMW.Logger(deps.Logger))
	r.Use(authMW.Authenticate(deps.Authenticator, deps.Logger))
	r.Use(ratelimitMW.RateLimit(deps.Limiter, exempt))

	if deps.Health != nil {
		deps.Health.Register(r)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.Payments != nil {
		deps.Payments.Register(r)
	}
	if deps.Tenants != nil {
		deps.Tenants.Register(r)
	}
	if deps.Quota != nil {
		deps.Quota.Register(r)
	}

	return r
}
