package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
// The string values are part of the public API contract: SDK clients match on
// them, so they stay in the upstream SCREAMING_SNAKE form.
type Code string

const (
	// Authentication
	CodeMissingCredential   Code = "MISSING_API_KEY"
	CodeInvalidCredential   Code = "INVALID_API_KEY"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeBootstrapNotAllowed Code = "BOOTSTRAP_KEY_NOT_ALLOWED"

	// Rate limiting
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"

	// Validation
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeInvalidProvider Code = "INVALID_PROVIDER"

	// Resources
	CodeNotFound        Code = "NOT_FOUND"
	CodePaymentNotFound Code = "PAYMENT_NOT_FOUND"
	CodeTenantNotFound  Code = "CUSTOMER_NOT_FOUND"
	CodeAPIKeyNotFound  Code = "API_KEY_NOT_FOUND"

	// Conflicts
	CodeTenantExists Code = "CUSTOMER_EXISTS"
	CodeConflict     Code = "CONFLICT"

	// Operations
	CodePaymentFailed       Code = "PAYMENT_FAILED"
	CodeRefundFailed        Code = "REFUND_FAILED"
	CodeProviderUnavailable Code = "PROVIDER_ERROR"

	// Infrastructure
	CodeInternal Code = "INTERNAL_ERROR"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// NewWithDetails creates a domain error carrying structured details for the
// transport layer to serialize (e.g. rate-limit retry metadata).
func NewWithDetails(code Code, msg string, details map[string]any) error {
	return &Error{Code: code, Message: msg, Details: details}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Details: existing.Details, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the domain code from an error, defaulting to CodeInternal
// for anything outside the taxonomy.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// DetailsOf extracts structured details from a domain error, if any.
func DetailsOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
