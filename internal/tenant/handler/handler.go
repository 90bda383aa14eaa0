// Package handler is the HTTP surface of customer and API-key management.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authMW "paygate/internal/auth/middleware"
	authmodels "paygate/internal/auth/models"
	platformMW "paygate/internal/platform/middleware"
	"paygate/internal/tenant/models"
	dErrors "paygate/pkg/domain-errors"
	httperrors "paygate/pkg/http-errors"
	"paygate/pkg/platform/httputil"
)

// Service defines the tenant operations the handler exposes.
type Service interface {
	CreateTenant(ctx context.Context, req *models.CreateTenantRequest) (*models.Tenant, error)
	IssueKey(ctx context.Context, tenantID, name string) (*models.APIKey, error)
	RevokeKey(ctx context.Context, authCtx *authmodels.AuthContext, keyID string) error
	ListKeys(ctx context.Context, tenantID string) ([]models.APIKey, error)
}

// Handler serves the customer and API-key endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a tenant handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the tenant routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/customers", h.HandleCreateTenant)
	r.Post("/api/v1/api-keys", h.HandleIssueKey)
	r.Get("/api/v1/api-keys", h.HandleListKeys)
	r.Delete("/api/v1/api-keys/{id}", h.HandleRevokeKey)
}

// HandleCreateTenant registers a new customer. Public: this is how a customer
// gets onboarded before they hold any credential.
func (h *Handler) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := platformMW.GetTraceID(ctx)

	var req models.CreateTenantRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httperrors.Write(w, err, traceID)
		return
	}

	tenant, err := h.service.CreateTenant(ctx, &req)
	if err != nil {
		h.logger.ErrorContext(ctx, "create customer failed", "error", err, "trace_id", traceID)
		httperrors.Write(w, err, traceID)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &models.TenantResponse{
		ID:        tenant.ID,
		Email:     tenant.Email,
		Tier:      tenant.Tier,
		CreatedAt: tenant.CreatedAt.Format(time.RFC3339),
		UpdatedAt: tenant.UpdatedAt.Format(time.RFC3339),
		TraceID:   traceID,
	})
}

// HandleIssueKey issues a new API key. Tenant callers always get a key for
// themselves; bootstrap and static admin callers must name the customer.
func (h *Handler) HandleIssueKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := platformMW.GetTraceID(ctx)

	var req models.CreateAPIKeyRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httperrors.Write(w, err, traceID)
			return
		}
	}

	tenantID, err := resolveTenantID(authMW.GetAuthContext(ctx), req.TenantID)
	if err != nil {
		httperrors.Write(w, err, traceID)
		return
	}

	key, err := h.service.IssueKey(ctx, tenantID, req.Name)
	if err != nil {
		h.logger.ErrorContext(ctx, "issue api key failed",
			"error", err, "customer_id", tenantID, "trace_id", traceID)
		httperrors.Write(w, err, traceID)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &models.CreateAPIKeyResponse{
		ID:        key.ID,
		Key:       key.Key,
		Name:      key.Name,
		CreatedAt: key.CreatedAt.Format(time.RFC3339),
		TraceID:   traceID,
	})
}

// HandleListKeys lists a customer's keys without their credential values.
func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := platformMW.GetTraceID(ctx)

	tenantID, err := resolveTenantID(authMW.GetAuthContext(ctx), r.URL.Query().Get("customer_id"))
	if err != nil {
		httperrors.Write(w, err, traceID)
		return
	}

	keys, err := h.service.ListKeys(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list api keys failed",
			"error", err, "customer_id", tenantID, "trace_id", traceID)
		httperrors.Write(w, err, traceID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &models.ListAPIKeysResponse{
		Keys:    keys,
		TraceID: traceID,
	})
}

// HandleRevokeKey deactivates an API key and invalidates its cached identity.
func (h *Handler) HandleRevokeKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := platformMW.GetTraceID(ctx)
	keyID := chi.URLParam(r, "id")

	if err := h.service.RevokeKey(ctx, authMW.GetAuthContext(ctx), keyID); err != nil {
		h.logger.ErrorContext(ctx, "revoke api key failed",
			"error", err, "key_id", keyID, "trace_id", traceID)
		httperrors.Write(w, err, traceID)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &models.RevokeAPIKeyResponse{
		ID:      keyID,
		Revoked: true,
		TraceID: traceID,
	})
}

// resolveTenantID picks the customer a key operation targets. Tenant contexts
// are pinned to their own id regardless of what the request names.
func resolveTenantID(authCtx *authmodels.AuthContext, requested string) (string, error) {
	if authCtx.IsTenant() {
		return authCtx.TenantID, nil
	}
	if requested == "" {
		return "", dErrors.New(dErrors.CodeValidation,
			"customer_id is required for bootstrap and admin callers")
	}
	return requested, nil
}
