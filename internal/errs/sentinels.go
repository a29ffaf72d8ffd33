// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates a missing entitlement or wrong owner.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a duplicate active entitlement for the same game.
	ErrConflict = errors.New("conflict")

	// ErrBadRequest indicates an invalid state transition or malformed input.
	ErrBadRequest = errors.New("bad request")

	// ErrUnavailable indicates the game exists but is not purchasable.
	ErrUnavailable = errors.New("unavailable")
)
