package watcher

import "errors"

// Common errors returned by the watcher.
var (
	// ErrAlreadyStarted is returned when Start is called on a running watcher.
	ErrAlreadyStarted = errors.New("watcher already started")

	// ErrNotStarted is returned when Stop is called before Start.
	ErrNotStarted = errors.New("watcher not started")

	// ErrWatcherStopped is returned when Start is called after Stop.
	// A stopped watcher cannot be restarted; create a new one.
	ErrWatcherStopped = errors.New("watcher is stopped")

	// ErrNoDirectories is returned when no directory is configured.
	ErrNoDirectories = errors.New("no directories to watch")

	// ErrNotDirectory is returned when a configured path is not a directory.
	ErrNotDirectory = errors.New("watch path is not a directory")

	// ErrNilListener is returned when Start is called without a listener.
	ErrNilListener = errors.New("listener is nil")

	// ErrInvalidQuietPeriod is returned for a negative quiet period.
	ErrInvalidQuietPeriod = errors.New("invalid quiet period: must be >= 0")

	// ErrInvalidOverflowPolicy is returned for an unknown overflow policy.
	ErrInvalidOverflowPolicy = errors.New("invalid overflow policy: must be log or notify")

	// ErrUnknownChangeType is returned when a change type name is not recognized.
	ErrUnknownChangeType = errors.New("unknown change type")
)
