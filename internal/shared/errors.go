package shared

import "errors"

var (
	// ErrUnauthenticated indicates a missing, invalid, or expired session
	// whose refresh token did not match. The client must log in again.
	ErrUnauthenticated = errors.New("invalid session")
	// ErrForbidden indicates the actor is not allowed to perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates a malformed or out-of-bounds request payload.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrProvider indicates an upstream Discord/Roblox API failure.
	ErrProvider = errors.New("upstream provider failure")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrConflict indicates a concurrent write won; the caller's view is stale.
	ErrConflict = errors.New("stale write")
)
