package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authMW "paygate/internal/auth/middleware"
	authmodels "paygate/internal/auth/models"
	"paygate/internal/ratelimit/service"
	"paygate/internal/ratelimit/store/window"
)

func newHandler(t *testing.T, exempt ExemptFunc) http.Handler {
	t.Helper()
	store := window.NewMemory()
	svc, err := service.New(store)
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(svc, exempt)(next)
}

func doRequest(handler http.Handler, authCtx *authmodels.AuthContext, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authCtx != nil {
		req = req.WithContext(authMW.WithAuthContext(req.Context(), authCtx))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestQuotaHeadersOnEveryResponse(t *testing.T) {
	handler := newHandler(t, nil)
	authCtx := &authmodels.AuthContext{TenantID: "t1", Tier: authmodels.TierStarter}

	rec := doRequest(handler, authCtx, "/api/v1/payments")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestStarterTenantLimitedAtQuota(t *testing.T) {
	handler := newHandler(t, nil)
	authCtx := &authmodels.AuthContext{TenantID: "t-starter", Tier: authmodels.TierStarter}

	for i := 0; i < 100; i++ {
		rec := doRequest(handler, authCtx, "/api/v1/payments")
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := doRequest(handler, authCtx, "/api/v1/payments")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Code    string `json:"code"`
		Details struct {
			Limit      int   `json:"limit"`
			Remaining  int   `json:"remaining"`
			ResetAt    int64 `json:"reset_at"`
			RetryAfter int64 `json:"retry_after"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Code)
	assert.Equal(t, 100, body.Details.Limit)
	assert.Equal(t, 0, body.Details.Remaining)
	assert.LessOrEqual(t, body.Details.RetryAfter, int64(60))
}

func TestExemptRoutesBypassLimiter(t *testing.T) {
	routes := authmodels.DefaultPublicRoutes()
	exempt := func(method, path string) bool {
		return authmodels.IsAuthBypassMethod(method) || routes.Contains(method, path)
	}
	handler := newHandler(t, exempt)

	// Exhaust the anonymous IP window on a limited path first.
	anon := &authmodels.AuthContext{Tier: authmodels.TierPublic}
	for i := 0; i < 60; i++ {
		rec := doRequest(handler, anon, "/api/v1/payments")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doRequest(handler, anon, "/api/v1/payments")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Health stays reachable and carries no quota headers.
	rec = doRequest(handler, anon, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestAnonymousRequestsKeyedByIP(t *testing.T) {
	handler := newHandler(t, nil)

	rec := doRequest(handler, nil, "/api/v1/payments")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
}
