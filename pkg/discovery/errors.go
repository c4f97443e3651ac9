package discovery

import "errors"

// Common errors returned by the discovery package.
var (
	// ErrRootNotFound is returned when a root directory does not exist.
	ErrRootNotFound = errors.New("root directory not found")

	// ErrNotDirectory is returned when a root is not a directory.
	ErrNotDirectory = errors.New("root is not a directory")
)
