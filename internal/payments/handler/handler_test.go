package handler

import (
	"bytes"
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
	"paygate/internal/payments/models"
	dErrors "paygate/pkg/domain-errors"
)

type fakeService struct {
	createReq  *models.CreatePaymentRequest
	createKey  string
	refundReq  *models.RefundPaymentRequest
	refundID   string
	refundKey  string
	listFilter models.ListPaymentsFilter
	err        error
}

func (f *fakeService) CreatePayment(_ context.Context, _ *authmodels.AuthContext, req *models.CreatePaymentRequest, key string) (*models.CreatePaymentResponse, error) {
	f.createReq, f.createKey = req, key
	if f.err != nil {
		return nil, f.err
	}
	return &models.CreatePaymentResponse{ID: "pay-1", Status: models.StatusCompleted}, nil
}

func (f *fakeService) RefundPayment(_ context.Context, _ *authmodels.AuthContext, paymentID string, req *models.RefundPaymentRequest, key string) (*models.RefundPaymentResponse, error) {
	f.refundID, f.refundReq, f.refundKey = paymentID, req, key
	if f.err != nil {
		return nil, f.err
	}
	return &models.RefundPaymentResponse{RefundID: "ref-1", Status: models.StatusRefunded}, nil
}

func (f *fakeService) CheckPaymentStatus(_ context.Context, _ *authmodels.AuthContext, paymentID string) (*models.PaymentStatusResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.PaymentStatusResponse{ID: paymentID, Status: models.StatusCompleted}, nil
}

func (f *fakeService) ListPayments(_ context.Context, _ *authmodels.AuthContext, filter models.ListPaymentsFilter) (*models.ListPaymentsResponse, error) {
	f.listFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return &models.ListPaymentsResponse{Payments: []models.PaymentRecord{}, Total: 0}, nil
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.Default()).Register(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(authMW.WithAuthContext(req.Context(),
		&authmodels.AuthContext{TenantID: "cust-1", Tier: authmodels.TierStarter}))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreatePayment(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/payments", map[string]any{
		"provider":       "stripe",
		"amount":         1500,
		"currency":       "usd",
		"payment_method": "pm_card",
	}, map[string]string{IdempotencyKeyHeader: "idem-123"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "idem-123", svc.createKey)
	require.NotNil(t, svc.createReq)
	assert.Equal(t, int64(1500), svc.createReq.Amount)

	var resp models.CreatePaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pay-1", resp.ID)
}

func TestHandleCreatePaymentMalformedBody(t *testing.T) {
	router := newRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(dErrors.CodeValidation), resp["code"])
}

func TestHandleCreatePaymentServiceError(t *testing.T) {
	svc := &fakeService{err: dErrors.New(dErrors.CodeInvalidProvider, "unsupported payment provider: square")}
	router := newRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/payments", map[string]any{
		"provider": "square", "amount": 100, "currency": "usd", "payment_method": "pm",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(dErrors.CodeInvalidProvider), resp["code"])
}

func TestHandleRefundEmptyBodyMeansFullRefund(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/payments/pay-9/refund", nil,
		map[string]string{IdempotencyKeyHeader: "refund-key"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pay-9", svc.refundID)
	assert.Equal(t, "refund-key", svc.refundKey)
	require.NotNil(t, svc.refundReq)
	assert.Zero(t, svc.refundReq.Amount)
}

func TestHandlePaymentStatusNotFound(t *testing.T) {
	svc := &fakeService{err: dErrors.New(dErrors.CodePaymentNotFound, "payment not found")}
	router := newRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/payments/missing", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListPaymentsFilterParsing(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc)

	rec := doRequest(t, router, http.MethodGet,
		"/api/v1/payments?provider=stripe&status=completed&limit=25&offset=5&start_date=2026-01-01", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ProviderStripe, svc.listFilter.Provider)
	assert.Equal(t, models.StatusCompleted, svc.listFilter.Status)
	assert.Equal(t, 25, svc.listFilter.Limit)
	assert.Equal(t, 5, svc.listFilter.Offset)
	assert.Equal(t, 2026, svc.listFilter.StartDate.Year())

	t.Run("unknown status rejected", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/payments?status=bogus", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-integer limit rejected", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/payments?limit=ten", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
