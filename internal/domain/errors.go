package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Callers match with errors.Is; every layer wraps with %w.

var (
	// ErrInvalidInput marks a caller contract violation (bad enum or range).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when no progression record exists for a user,
	// or when a referenced notification does not belong to them.
	ErrNotFound = errors.New("not found")

	// ErrUpstream marks a failure of the persistence collaborator.
	ErrUpstream = errors.New("upstream store failure")

	// ErrNoGlowCards is returned when a reveal is requested without an entitlement.
	ErrNoGlowCards = fmt.Errorf("%w: no glow cards to reveal", ErrInvalidInput)

	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)
)

// Upstream wraps a store error so it matches ErrUpstream and keeps the cause.
// Nil stays nil, and errors that already carry a domain sentinel pass through.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUpstream) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
