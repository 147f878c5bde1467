package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested resource does not exist
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden is returned when a user acts on a resource owned by someone else
	ErrForbidden = errors.New("not authorized to access this resource")
	// ErrConflict is returned on unique constraint violations (email, username)
	ErrConflict = errors.New("resource already exists")
	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStaleRule is returned when a rule's due date changed since it was read
	ErrStaleRule = errors.New("recurring rule was advanced concurrently")
)

// ValidationError represents a rejected input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
