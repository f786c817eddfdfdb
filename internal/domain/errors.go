package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both missing rows and rows outside the
	// principal's visibility scope, so cross-tenant probes cannot
	// distinguish the two.
	ErrNotFound = errors.New("not found")

	ErrForbidden          = errors.New("forbidden")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// ValidationError reports a malformed field in a request payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
