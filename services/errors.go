package services

import (
	"errors"
	"fmt"

	"github.com/anjiri1684/fee_ledger/store"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = store.ErrNotFound
	// ErrConcurrencyConflict is returned once retries against a contended fee
	// are exhausted. Callers may retry the whole request.
	ErrConcurrencyConflict = errors.New("transient conflict, please retry")
	ErrFeeHasPayments      = errors.New("fee already has payments")

	ErrInvalidAmount = &ValidationError{Field: "amount", Message: "must be greater than zero"}
)

// ValidationError rejects a request synchronously; it is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func notFound(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
