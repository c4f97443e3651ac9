// Package watcher turns raw filesystem notifications into a stable stream of
// classified changes.
//
// Raw fsnotify events for the registered directories are coalesced by
// (path, kind) and held until the watched tree has been quiet for the
// configured period. The batch is then classified against the filesystem as
// it is at that moment (file or directory; created, modified or deleted) and
// delivered to a single Listener, one change at a time, from one goroutine.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{
//	    Dirs:        []string{"/srv/data"},
//	    QuietPeriod: 500 * time.Millisecond,
//	    Recursive:   true,
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = w.Start(watcher.ListenerFunc(func(c watcher.Change) error {
//	    fmt.Println(c.Type, c.Path)
//	    return nil
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
package watcher

import (
	"fmt"
	"strings"
	"time"
)

// DefaultQuietPeriod is the debounce interval used when Config.QuietPeriod is zero.
const DefaultQuietPeriod = 500 * time.Millisecond

// Kind is the raw kind of a buffered notification.
type Kind uint8

// Raw notification kinds.
const (
	KindCreated Kind = iota + 1
	KindModified
	KindDeleted
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "CREATED"
	case KindModified:
		return "MODIFIED"
	case KindDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// ChangeType is the classification of a dispatched change.
// Directory modification is never reported.
type ChangeType uint8

// Classified change types.
const (
	FileCreated ChangeType = iota + 1
	FileModified
	FileDeleted
	DirectoryCreated
	DirectoryDeleted
)

// String returns the change type name.
func (t ChangeType) String() string {
	switch t {
	case FileCreated:
		return "FILE_CREATED"
	case FileModified:
		return "FILE_MODIFIED"
	case FileDeleted:
		return "FILE_DELETED"
	case DirectoryCreated:
		return "DIRECTORY_CREATED"
	case DirectoryDeleted:
		return "DIRECTORY_DELETED"
	default:
		return "UNKNOWN"
	}
}

// IsDirectory reports whether the change concerns a directory.
func (t ChangeType) IsDirectory() bool {
	return t == DirectoryCreated || t == DirectoryDeleted
}

// ParseChangeType is the inverse of ChangeType.String.
func ParseChangeType(s string) (ChangeType, error) {
	for t := FileCreated; t <= DirectoryDeleted; t++ {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChangeType, s)
}

// Change is a classified filesystem change.
type Change struct {
	// Type is the classification decided at dispatch time.
	Type ChangeType

	// Path is the absolute, cleaned path of the changed entry.
	Path string
}

// String returns "TYPE path".
func (c Change) String() string {
	return c.Type.String() + " " + c.Path
}

// Listener receives classified changes.
//
// OnChange is called from the dispatcher goroutine only, never concurrently
// with itself. The same logical change may be reported more than once, so
// implementations must be idempotent. A returned error or a panic is logged
// and does not stop the batch.
type Listener interface {
	OnChange(c Change) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(c Change) error

// OnChange implements Listener.
func (f ListenerFunc) OnChange(c Change) error {
	return f(c)
}

// OverflowHandler is implemented by listeners that want to know when the
// kernel dropped notifications. It is only consulted with OverflowNotify and
// is called on the dispatcher goroutine after the cycle's changes.
type OverflowHandler interface {
	OnOverflow()
}

// OverflowPolicy decides what happens when notifications were lost.
type OverflowPolicy string

const (
	// OverflowLog only logs the loss.
	OverflowLog OverflowPolicy = "log"

	// OverflowNotify logs the loss and calls OverflowHandler.OnOverflow.
	OverflowNotify OverflowPolicy = "notify"
)

// ParseOverflowPolicy validates a policy name. Empty means OverflowLog.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(strings.ToLower(s)) {
	case "", OverflowLog:
		return OverflowLog, nil
	case OverflowNotify:
		return OverflowNotify, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOverflowPolicy, s)
	}
}

// Watcher watches directories and dispatches classified changes.
type Watcher interface {
	// Start registers the configured directories and begins delivering
	// changes to listener. A Watcher can be started once.
	//
	// Returns an error if the watch primitive cannot be created or a
	// configured directory cannot be registered. Nothing keeps running
	// after a failed Start.
	Start(listener Listener) error

	// Stop closes the watch primitive and waits for an in-flight dispatch
	// cycle to finish, unless called from inside a Listener callback.
	// No callback fires after Stop returns. A later Stop from another
	// goroutine waits for the callback that stopped the watcher to return.
	Stop() error

	// Dirs returns the currently registered directories, sorted.
	Dirs() []string

	// Stats returns a snapshot of the watcher counters.
	Stats() Stats
}

// Stats is a snapshot of watcher counters.
type Stats struct {
	// RawEvents counts raw notifications received (one per kind bit).
	RawEvents uint64 `json:"raw_events"`

	// Coalesced counts raw notifications absorbed by an existing buffer entry.
	Coalesced uint64 `json:"coalesced"`

	// Cycles counts dispatch cycles that drained a non-empty buffer.
	Cycles uint64 `json:"cycles"`

	// Dispatched counts changes handed to the listener.
	Dispatched uint64 `json:"dispatched"`

	// ListenerFailures counts callbacks that returned an error or panicked.
	ListenerFailures uint64 `json:"listener_failures"`

	// Overflows counts kernel queue overflows.
	Overflows uint64 `json:"overflows"`

	// Errors counts other errors reported by the watch primitive.
	Errors uint64 `json:"errors"`

	// Directories is the number of registered directories.
	Directories int `json:"directories"`
}

// Config contains watcher configuration.
type Config struct {
	// Dirs are the directories to register at Start. Each directory is
	// watched non-recursively unless Recursive is set.
	Dirs []string

	// QuietPeriod is how long the tree must be quiet before the buffered
	// notifications are dispatched.
	// Default: 500ms.
	QuietPeriod time.Duration

	// Recursive registers every subdirectory of Dirs at Start.
	// Directories created later are always registered when dispatched.
	Recursive bool

	// Overflow selects the overflow policy.
	// Default: OverflowLog.
	Overflow OverflowPolicy
}
