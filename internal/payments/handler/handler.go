// Package handler is the HTTP surface of the payment operations. It delegates
// to the payment service without embedding business logic so transport
// concerns stay isolated.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	authMW "paygate/internal/auth/middleware"
	authmodels "paygate/internal/auth/models"
	"paygate/internal/payments/models"
	platformMW "paygate/internal/platform/middleware"
	dErrors "paygate/pkg/domain-errors"
	httperrors "paygate/pkg/http-errors"
	"paygate/pkg/platform/httputil"
)

// IdempotencyKeyHeader carries the client's idempotency key. Optional; when
// absent the request executes without replay protection.
const IdempotencyKeyHeader = "Idempotency-Key"

// Service defines the payment operations the handler exposes.
type Service interface {
	CreatePayment(ctx context.Context, authCtx *authmodels.AuthContext, req *models.CreatePaymentRequest, idempotencyKey string) (*models.CreatePaymentResponse, error)
	RefundPayment(ctx context.Context, authCtx *authmodels.AuthContext, paymentID string, req *models.RefundPaymentRequest, idempotencyKey string) (*models.RefundPaymentResponse, error)
	CheckPaymentStatus(ctx context.Context, authCtx *authmodels.AuthContext, paymentID string) (*models.PaymentStatusResponse, error)
	ListPayments(ctx context.Context, authCtx *authmodels.AuthContext, filter models.ListPaymentsFilter) (*models.ListPaymentsResponse, error)
}

// Handler serves the /api/v1/payments endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a payment handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the payment routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/payments", h.HandleCreatePayment)
	r.Get("/api/v1/payments", h.HandleListPayments)
	r.Get("/api/v1/payments/{id}", h.HandlePaymentStatus)
	r.Post("/api/v1/payments/{id}/refund", h.HandleRefundPayment)
}

// HandleCreatePayment creates a payment through the requested provider.
func (h *Handler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := platformMW.GetTraceID(ctx)

	var req models.CreatePaymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httperrors.Write(w, err, traceID)
		return
	}

	resp, err := h.service.CreatePayment(ctx, authMW.GetAuthContext(ctx), &req,
		r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.logger.ErrorContext(ctx, "create payment failed", "error", err, "trace_id", traceID)
		httperrors.Write(w, err, traceID)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleRefundPayment refunds a payment through its originating provider. An
// empty body means a full refund.
func (h *Handler) HandleRefundPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := platformMW.GetTraceID(ctx)
	paymentID := chi.URLParam(r, "id")

	var req models.RefundPaymentRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httperrors.Write(w, err, traceID)
			return
		}
	}

	resp, err := h.service.RefundPayment(ctx, authMW.GetAuthContext(ctx), paymentID, &req,
		r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.logger.ErrorContext(ctx, "refund payment failed",
			"error", err, "payment_id", paymentID, "trace_id", traceID)
		httperrors.Write(w, err, traceID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandlePaymentStatus returns the current status of a payment, refreshed from
// the provider when reachable.
func (h *Handler) HandlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := platformMW.GetTraceID(ctx)
	paymentID := chi.URLParam(r, "id")

	resp, err := h.service.CheckPaymentStatus(ctx, authMW.GetAuthContext(ctx), paymentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "payment status check failed",
			"error", err, "payment_id", paymentID, "trace_id", traceID)
		httperrors.Write(w, err, traceID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleListPayments lists payments matching the query filters.
func (h *Handler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := platformMW.GetTraceID(ctx)

	filter, err := filterFromQuery(r)
	if err != nil {
		httperrors.Write(w, err, traceID)
		return
	}

	resp, err := h.service.ListPayments(ctx, authMW.GetAuthContext(ctx), filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list payments failed", "error", err, "trace_id", traceID)
		httperrors.Write(w, err, traceID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func filterFromQuery(r *http.Request) (models.ListPaymentsFilter, error) {
	q := r.URL.Query()
	var filter models.ListPaymentsFilter

	if raw := q.Get("provider"); raw != "" {
		provider, err := models.ParseProvider(raw)
		if err != nil {
			return filter, err
		}
		filter.Provider = provider
	}
	if raw := q.Get("status"); raw != "" {
		status := models.Status(raw)
		if !status.IsValid() {
			return filter, dErrors.NewWithDetails(dErrors.CodeValidation,
				"unknown payment status: "+raw,
				map[string]any{"status": raw})
		}
		filter.Status = status
	}
	filter.TenantID = q.Get("customer_id")

	var err error
	if filter.StartDate, err = parseQueryTime(q.Get("start_date")); err != nil {
		return filter, err
	}
	if filter.EndDate, err = parseQueryTime(q.Get("end_date")); err != nil {
		return filter, err
	}
	if filter.Limit, err = parseQueryInt(q.Get("limit")); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseQueryInt(q.Get("offset")); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseQueryTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.NewWithDetails(dErrors.CodeValidation,
		"dates must be RFC 3339 timestamps or YYYY-MM-DD",
		map[string]any{"value": raw})
}

func parseQueryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.NewWithDetails(dErrors.CodeValidation,
			"pagination parameters must be integers",
			map[string]any{"value": raw})
	}
	return n, nil
}
