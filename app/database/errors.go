package database

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups of content items, candidates, or reservations
// that do not exist. Surfaced to callers as-is; never retried.
var ErrNotFound = errors.New("not found")

// ErrInvalidState marks operations attempted on a reservation in a terminal
// or incompatible status.
var ErrInvalidState = errors.New("invalid state")

func notFoundError(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

func invalidStateError(op string, id int64, status ReservationStatus) error {
	return fmt.Errorf("cannot %s reservation %d in status %s: %w", op, id, status, ErrInvalidState)
}

// NotFoundError builds a typed not-found error for the given entity.
// Exposed for callers that detect missing rows themselves.
func NotFoundError(entity string, id int64) error {
	return notFoundError(entity, id)
}

// InvalidStateError builds a typed invalid-state error for a reservation.
func InvalidStateError(op string, id int64, status ReservationStatus) error {
	return invalidStateError(op, id, status)
}
