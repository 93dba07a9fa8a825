package errors

import "errors"

// Common application errors
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is returned for invalid input data.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when the resource state does not allow the operation.
	ErrConflict = errors.New("resource state conflict")
)

// CAT engine errors
var (
	// ErrInvalidSession means the session id is unknown or the session is no longer active.
	// Callers must not reuse the session.
	ErrInvalidSession = errors.New("invalid session")

	// ErrDuplicateSession means a session already exists for the same
	// (assessment, participant, attempt) triple.
	ErrDuplicateSession = errors.New("session already exists for this attempt")

	// ErrItemNotPending means a response was submitted for an item that was
	// neither selected for the session nor left in its remaining pool.
	ErrItemNotPending = errors.New("item is not pending for this session")
)
