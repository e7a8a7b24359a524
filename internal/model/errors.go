package model

import "errors"

var (
	// Session related errors
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrTokenExpired    = errors.New("token expired")
	ErrMissingToken    = errors.New("backend returned no token")
	ErrSessionChanged  = errors.New("session changed while the check was in flight")
	ErrInvalidResponse = errors.New("invalid backend response")

	// Confirmation related errors
	ErrNoPendingConfirmation = errors.New("no confirmation is pending")
	ErrStaleConfirmation     = errors.New("confirmation was replaced or already resolved")
	ErrInvalidChoice         = errors.New("value is not one of the offered choices")

	// Moderation related errors
	ErrUnknownAction   = errors.New("unknown moderation action")
	ErrInvalidDuration = errors.New("invalid suspend duration")
	ErrInvalidTarget   = errors.New("invalid moderation target")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)
