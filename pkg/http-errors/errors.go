// Package httperrors maps domain error codes onto the HTTP surface and renders
// the error body the SDK contract expects:
//
//	{"code": "...", "error": "...", "details": {...}, "trace_id": "..."}
package httperrors

import (
	"encoding/json"
	"net/http"

	dErrors "paygate/pkg/domain-errors"
)

// ErrorResponse is the wire shape of every error the gateway returns.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
	TraceID string         `json:"trace_id,omitempty"`
}

// ToHTTPStatus maps a domain code to its transport status.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeMissingCredential, dErrors.CodeInvalidCredential, dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeBootstrapNotAllowed:
		return http.StatusForbidden
	case dErrors.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case dErrors.CodeValidation, dErrors.CodeInvalidProvider,
		dErrors.CodePaymentFailed, dErrors.CodeRefundFailed:
		return http.StatusBadRequest
	case dErrors.CodeNotFound, dErrors.CodePaymentNotFound,
		dErrors.CodeTenantNotFound, dErrors.CodeAPIKeyNotFound:
		return http.StatusNotFound
	case dErrors.CodeTenantExists, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeProviderUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Write renders err as a JSON error response. Unknown errors collapse to
// INTERNAL_ERROR with a generic message so internals never leak to clients.
func Write(w http.ResponseWriter, err error, traceID string) {
	code := dErrors.CodeOf(err)
	msg := err.Error()
	if code == dErrors.CodeInternal {
		msg = "Internal server error"
	}
	WriteCode(w, code, msg, dErrors.DetailsOf(err), traceID)
}

// WriteCode renders an explicit code/message pair.
func WriteCode(w http.ResponseWriter, code dErrors.Code, msg string, details map[string]any, traceID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Code:    string(code),
		Error:   msg,
		Details: details,
		TraceID: traceID,
	})
}
