package journal

import "errors"

// Common errors returned by the journal.
var (
	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID is returned when a session id is not a UUID.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrInvalidEntry is returned when an entry has no type or path.
	ErrInvalidEntry = errors.New("invalid journal entry")

	// ErrClosed is returned when the journal is used after Close.
	ErrClosed = errors.New("journal is closed")
)
