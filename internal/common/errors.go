// Package common defines shared constants and sentinel errors used across
// the storage, service and transport layers of fundkeeper. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Ledger errors.
	ErrorPermission       = errors.New("permission denied")
	ErrorDuplicateName    = errors.New("duplicate name")
	ErrorConflict         = errors.New("conflict")
	ErrorValidation       = errors.New("validation error")
	ErrorInvalidOperation = errors.New("invalid operation")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// FieldError attaches a request field and a user-facing message to one of
// the sentinel errors above. errors.Is(err, Kind) holds for a FieldError.
type FieldError struct {
	Kind    error
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

// NewFieldError builds a FieldError of the given kind.
func NewFieldError(kind error, field, message string) *FieldError {
	return &FieldError{Kind: kind, Field: field, Message: message}
}

// Validation is shorthand for a field-level ErrorValidation.
func Validation(field, message string) *FieldError {
	return NewFieldError(ErrorValidation, field, message)
}

// Permission wraps ErrorPermission with a message explaining what was denied.
func Permission(message string) *FieldError {
	return NewFieldError(ErrorPermission, "", message)
}
