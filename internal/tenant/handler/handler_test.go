package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authMW "paygate/internal/auth/middleware"
	authmodels "paygate/internal/auth/models"
	"paygate/internal/tenant/models"
	dErrors "paygate/pkg/domain-errors"
)

type fakeService struct {
	issuedFor  string
	revokedKey string
	err        error
}

func (f *fakeService) CreateTenant(_ context.Context, req *models.CreateTenantRequest) (*models.Tenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Tenant{
		ID:        "cust-1",
		Email:     req.Email,
		Tier:      authmodels.ParseTier(req.Tier),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeService) IssueKey(_ context.Context, tenantID, name string) (*models.APIKey, error) {
	f.issuedFor = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return &models.APIKey{
		ID:        "key-1",
		Key:       "pk_secret",
		TenantID:  tenantID,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeService) RevokeKey(_ context.Context, _ *authmodels.AuthContext, keyID string) error {
	f.revokedKey = keyID
	return f.err
}

func (f *fakeService) ListKeys(_ context.Context, tenantID string) ([]models.APIKey, error) {
	f.issuedFor = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return []models.APIKey{{ID: "key-1", TenantID: tenantID, IsActive: true}}, nil
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.Default()).Register(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, target string, body any, authCtx *authmodels.AuthContext) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if authCtx != nil {
		req = req.WithContext(authMW.WithAuthContext(req.Context(), authCtx))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreateTenant(t *testing.T) {
	router := newRouter(&fakeService{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/customers",
		map[string]any{"email": "ops@acme.test", "tier": "growth"}, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp models.TenantResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cust-1", resp.ID)
	assert.Equal(t, authmodels.TierGrowth, resp.Tier)
}

func TestHandleCreateTenantDuplicate(t *testing.T) {
	router := newRouter(&fakeService{
		err: dErrors.New(dErrors.CodeTenantExists, "customer with this email already exists"),
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/customers",
		map[string]any{"email": "ops@acme.test"}, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(dErrors.CodeTenantExists), resp["code"])
}

func TestHandleIssueKeyTenantPinned(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc)

	// A tenant caller gets a key for itself even when the body names another
	// customer.
	rec := doRequest(t, router, http.MethodPost, "/api/v1/api-keys",
		map[string]any{"name": "ci", "customer_id": "someone-else"},
		&authmodels.AuthContext{TenantID: "cust-7", Tier: authmodels.TierStarter})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "cust-7", svc.issuedFor)

	var resp models.CreateAPIKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pk_secret", resp.Key)
}

func TestHandleIssueKeyBootstrapRequiresCustomer(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc)
	bootstrap := &authmodels.AuthContext{Tier: authmodels.TierAdmin, IsBootstrap: true}

	rec := doRequest(t, router, http.MethodPost, "/api/v1/api-keys",
		map[string]any{"name": "first"}, bootstrap)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/api-keys",
		map[string]any{"name": "first", "customer_id": "cust-3"}, bootstrap)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "cust-3", svc.issuedFor)
}

func TestHandleListKeys(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/api-keys", nil,
		&authmodels.AuthContext{TenantID: "cust-2", Tier: authmodels.TierScale})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cust-2", svc.issuedFor)
	var resp models.ListAPIKeysResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Keys, 1)
	assert.Empty(t, resp.Keys[0].Key, "credential values never serialize")
}

func TestHandleRevokeKey(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc)

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/api-keys/key-9", nil,
		&authmodels.AuthContext{TenantID: "cust-2", Tier: authmodels.TierScale})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "key-9", svc.revokedKey)
	var resp models.RevokeAPIKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Revoked)
}
