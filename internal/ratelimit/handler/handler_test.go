package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authMW "paygate/internal/auth/middleware"
	authmodels "paygate/internal/auth/models"
	"paygate/internal/ratelimit/models"
)

type fakeQuota struct {
	lastAuth *authmodels.AuthContext
	info     *models.Info
}

func (f *fakeQuota) Current(_ context.Context, authCtx *authmodels.AuthContext, _ string) *models.Info {
	f.lastAuth = authCtx
	return f.info
}

func TestHandleCurrent(t *testing.T) {
	quota := &fakeQuota{info: &models.Info{Limit: 500, Remaining: 499, ResetAt: 1700000060}}
	r := chi.NewRouter()
	New(quota, slog.Default()).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rate-limit", nil)
	req = req.WithContext(authMW.WithAuthContext(req.Context(),
		&authmodels.AuthContext{TenantID: "cust-1", Tier: authmodels.TierGrowth}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, quota.lastAuth)
	assert.Equal(t, "cust-1", quota.lastAuth.TenantID)

	var resp QuotaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 500, resp.Limit)
	assert.Equal(t, 499, resp.Remaining)
	assert.Equal(t, int64(1700000060), resp.ResetAt)
}
