package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrDataFetch is matched by every *DataFetchError.
	ErrDataFetch = errors.New("data fetch failed")
	// ErrInvalidFinancialYear reports a malformed financial-year label.
	ErrInvalidFinancialYear = errors.New("invalid financial year")
)

// ValidationError describes caller input the engine refuses to analyze.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// DataFetchError wraps a persistence failure. It is distinct from an empty result.
type DataFetchError struct {
	TenantID string
	Op       string
	Err      error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("failed to %s for tenant %s: %v", e.Op, e.TenantID, e.Err)
}

// Is lets errors.Is(err, ErrDataFetch) match any DataFetchError.
func (e *DataFetchError) Is(target error) bool {
	return target == ErrDataFetch
}

func (e *DataFetchError) Unwrap() error {
	return e.Err
}
