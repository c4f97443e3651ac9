package collection

import "errors"

// Common errors returned by the collection.
var (
	// ErrFileNotFound is returned when a name is not in the collection.
	ErrFileNotFound = errors.New("file not in collection")

	// ErrAlreadyWatching is returned when StartWatching is called twice.
	ErrAlreadyWatching = errors.New("collection is already watching")

	// ErrEmptyBaseDir is returned when no base directory is configured.
	ErrEmptyBaseDir = errors.New("base directory cannot be empty")
)
