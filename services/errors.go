package services

import "errors"

// Error taxonomy shared by all services. Handlers map these onto HTTP
// statuses; everything else is wrapped and treated as internal.
var (
	// ErrNotFound: a session/habit/chain/profile reference does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidIndex: habit index out of bounds or already terminal.
	ErrInvalidIndex = errors.New("invalid habit index")

	// ErrValidation: input rejected before touching storage.
	ErrValidation = errors.New("validation failed")

	// ErrConflict: optimistic version check failed after retries; the caller
	// should re-read and retry.
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrTransaction: a multi-statement write could not commit atomically.
	ErrTransaction = errors.New("transaction failed")
)
