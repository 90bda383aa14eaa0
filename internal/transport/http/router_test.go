package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	authmodels "paygate/internal/auth/models"
	"paygate/internal/platform/health"
	ratelimitmodels "paygate/internal/ratelimit/models"
	dErrors "paygate/pkg/domain-errors"
)

type fakeAuthenticator struct {
	authCtx *authmodels.AuthContext
	err     error
	public  authmodels.RouteSet
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, method, path string, _ authmodels.PresentedCredentials) (*authmodels.AuthContext, error) {
	if f.public.Contains(method, path) {
		return &authmodels.AuthContext{Tier: authmodels.TierPublic}, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.authCtx, nil
}

type fakeLimiter struct {
	calls int
	info  *ratelimitmodels.Info
}

func (f *fakeLimiter) CheckRequest(_ context.Context, _ *authmodels.AuthContext, _ string) *ratelimitmodels.Info {
	f.calls++
	return f.info
}

type pingRegistrar struct{}

func (pingRegistrar) Register(r chi.Router) {
	r.Get("/api/v1/payments", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestRouter(auth *fakeAuthenticator, limiter *fakeLimiter) http.Handler {
	return NewRouter(Deps{
		Logger:        slog.Default(),
		Authenticator: auth,
		Limiter:       limiter,
		Payments:      pingRegistrar{},
		Health:        health.New("test"),
	})
}

func TestAuthenticatedRequestCarriesQuotaHeaders(t *testing.T) {
	auth := &fakeAuthenticator{
		authCtx: &authmodels.AuthContext{TenantID: "cust-1", Tier: authmodels.TierStarter},
		public:  authmodels.DefaultPublicRoutes(),
	}
	limiter := &fakeLimiter{info: &ratelimitmodels.Info{Limit: 100, Remaining: 99}}
	router := newTestRouter(auth, limiter)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	req.Header.Set("X-API-Key", "pk_test")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, 1, limiter.calls)
}

func TestAuthFailureStopsBeforeRateLimit(t *testing.T) {
	auth := &fakeAuthenticator{
		err:    dErrors.New(dErrors.CodeInvalidCredential, "invalid API key"),
		public: authmodels.DefaultPublicRoutes(),
	}
	limiter := &fakeLimiter{info: &ratelimitmodels.Info{Limit: 100, Remaining: 100}}
	router := newTestRouter(auth, limiter)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, limiter.calls)
}

func TestHealthBypassesRateLimiting(t *testing.T) {
	auth := &fakeAuthenticator{public: authmodels.DefaultPublicRoutes()}
	limiter := &fakeLimiter{info: &ratelimitmodels.Info{IsExceeded: true}}
	router := newTestRouter(auth, limiter)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.Zero(t, limiter.calls)
}
