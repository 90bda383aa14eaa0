// Package handler exposes the informational rate-limit read.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	authMW "paygate/internal/auth/middleware"
	authmodels "paygate/internal/auth/models"
	platformMW "paygate/internal/platform/middleware"
	"paygate/internal/ratelimit/models"
	"paygate/pkg/platform/httputil"
)

// Quota reports a caller's window state without consuming a slot.
type Quota interface {
	Current(ctx context.Context, authCtx *authmodels.AuthContext, clientIP string) *models.Info
}

// Handler serves the rate-limit quota endpoint.
type Handler struct {
	quota  Quota
	logger *slog.Logger
}

// New creates a rate-limit handler.
func New(quota Quota, logger *slog.Logger) *Handler {
	return &Handler{quota: quota, logger: logger}
}

// Register mounts the quota route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/v1/rate-limit", h.HandleCurrent)
}

// QuotaResponse is the informational quota read.
type QuotaResponse struct {
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	ResetAt   int64  `json:"reset_at"`
	TraceID   string `json:"trace_id,omitempty"`
}

// HandleCurrent returns the caller's current window state. Reading the quota
// does not consume a slot beyond the one the middleware already charged.
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info := h.quota.Current(ctx, authMW.GetAuthContext(ctx), platformMW.GetClientIP(ctx))

	httputil.WriteJSON(w, http.StatusOK, QuotaResponse{
		Limit:     info.Limit,
		Remaining: info.Remaining,
		ResetAt:   info.ResetAt,
		TraceID:   platformMW.GetTraceID(ctx),
	})
}
