// Package httputil holds small helpers shared by HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "paygate/pkg/domain-errors"
)

// MaxBodyBytes caps request bodies; payment payloads are small JSON documents.
const MaxBodyBytes = 1 << 20 // 1 MiB

// WriteJSON serializes v as the response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes a JSON request body into dst, returning a domain
// validation error for malformed payloads so handlers map it to 400.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeValidation, "request body is required")
		}
		return dErrors.Wrap(err, dErrors.CodeValidation, "malformed JSON request body")
	}
	return nil
}
