package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the ledger. Test with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrNotFound         = errors.New("transaction not found")
)

// ValidationError describes an invalid or missing field. It matches
// ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StoreError wraps a failed adapter call. It matches both
// ErrStoreUnavailable and the underlying cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// Unavailable wraps err as a StoreError for op. Not-found and validation
// errors pass through unchanged so callers keep their kind.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
