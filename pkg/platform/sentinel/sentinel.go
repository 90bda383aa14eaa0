// Package sentinel defines shared sentinel errors used across store layers so
// services can distinguish "absent" from "broken" without importing each other.
package sentinel

import "errors"

var (
	// ErrNotFound marks a lookup that completed but matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists marks a uniqueness violation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnavailable marks an infrastructure failure: the store was reached
	// but could not answer, or could not be reached at all.
	ErrUnavailable = errors.New("store unavailable")
)
