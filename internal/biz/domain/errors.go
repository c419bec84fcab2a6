package domain

import "errors"

// Error taxonomy shared by the store, the persistence layer and the sync engine.
// Callers match with errors.Is; most call sites wrap these with context.
var (
	// ErrInvalidInput is returned for empty names or member IDs
	ErrInvalidInput = errors.New("invalid input")

	// ErrNameTooLong means the real name cannot fit under the label ceiling
	ErrNameTooLong = errors.New("name too long")

	// ErrNotFound is returned when no binding (or no remote snapshot) exists
	ErrNotFound = errors.New("not found")

	// ErrPolicyRejected means the actor may not edit another member's record
	ErrPolicyRejected = errors.New("policy rejected")

	// ErrConflict means the remote version changed since it was read
	ErrConflict = errors.New("version conflict")

	// ErrRelabelFailed means the platform refused or failed a nickname update
	ErrRelabelFailed = errors.New("relabel failed")

	// ErrPersistenceUnavailable means the remote store could not be written
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)
