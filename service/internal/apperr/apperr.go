// Package apperr defines the error classes shared by the service layers and
// mapped to HTTP status codes in one place by the handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("invalid input")
	ErrUnknownCard         = errors.New("card not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrDeckExhausted       = errors.New("no more cards available")
	ErrInsufficientCatalog = errors.New("catalog too small to deal a hand")
	ErrPersistence         = errors.New("failed to save game")
	ErrNoActiveSession     = errors.New("no active session")
	ErrRoundNotActive      = errors.New("no round in progress")
	ErrRoundActive         = errors.New("round already in progress")
	ErrGameOver            = errors.New("game is over")
	ErrGameNotOver         = errors.New("game is still running")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PersistenceError wraps a storage failure during a write. Callers may retry.
type PersistenceError struct {
	Operation string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersistence) match.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Retryable reports whether err is worth retrying by the caller.
func Retryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}
