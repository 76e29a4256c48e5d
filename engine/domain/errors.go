package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrEmptyQuery         = errors.New("empty query")
	ErrInvalidQuery       = errors.New("invalid query")
	ErrQueryTooLong       = errors.New("query too long")
	ErrInvalidVehicle     = errors.New("invalid vehicle")
	ErrYearOutOfRange     = errors.New("year out of range")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidIssue       = errors.New("invalid issue record")
)

// ErrServiceFailure marks an internal inconsistency, such as a knowledge
// store that cannot be read. Callers surface it as a generic failure.
var ErrServiceFailure = errors.New("service failure")

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// IsInputError reports whether err is caused by bad caller input.
func IsInputError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
