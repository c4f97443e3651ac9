package filter

import "errors"

// Common errors returned by the filter package.
var (
	// ErrInvalidPattern is returned when a name mask cannot be compiled.
	ErrInvalidPattern = errors.New("invalid name pattern")

	// ErrInvalidCacheSize is returned for a negative cache size.
	ErrInvalidCacheSize = errors.New("invalid cache size: must be >= 0")
)
