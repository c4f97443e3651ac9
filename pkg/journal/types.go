// Package journal records classified changes in persistent storage.
//
// Every watch run opens a session identified by a UUID; each change
// delivered during that run is appended as an Entry tagged with the
// session id. The bolt-backed journal survives restarts and is what the
// history command reads.
//
// Example usage:
//
//	j, err := journal.NewBolt(journal.Config{
//	    DBPath: "~/.config/dirwatch/journal.db",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer j.Close()
//
//	session, err := j.BeginSession([]string{"/srv/data"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = j.Append(journal.Entry{
//	    Session: session.ID,
//	    Type:    "FILE_CREATED",
//	    Path:    "reports/q3.csv",
//	})
package journal

import "time"

// Entry is one journaled change.
type Entry struct {
	// Seq is the storage sequence number, assigned by Append.
	Seq uint64 `json:"seq"`

	// Session is the id of the watch session that observed the change.
	Session string `json:"session"`

	// Type is the change type name (e.g. "FILE_MODIFIED").
	Type string `json:"type"`

	// Path is the changed path, relative to the collection base directory.
	Path string `json:"path"`

	// Time is when the change was delivered. Set by Append when zero.
	Time time.Time `json:"time"`
}

// Session describes one watch run.
type Session struct {
	// ID is a random UUID (36 chars, 8-4-4-4-12 format).
	ID string `json:"id"`

	// Roots are the watched base directories.
	Roots []string `json:"roots"`

	// StartedAt is the session creation timestamp.
	StartedAt time.Time `json:"started_at"`
}

// Journal stores change entries and watch sessions.
type Journal interface {
	// BeginSession creates a new session with a fresh UUID.
	//
	// Parameters:
	//   - roots: Directories watched during the session
	//
	// Returns:
	//   - The stored session
	//   - Error for storage failures
	BeginSession(roots []string) (*Session, error)

	// GetSession retrieves a session by id.
	//
	// Returns:
	//   - Session if found
	//   - ErrInvalidSessionID if id is not a UUID
	//   - ErrSessionNotFound if not found
	GetSession(id string) (*Session, error)

	// Sessions returns all sessions, oldest first.
	Sessions() ([]*Session, error)

	// Append stores an entry. Entries must be appended in time order.
	//
	// Returns error if:
	//   - Type or Path is empty
	//   - Storage operation fails
	Append(entry Entry) error

	// Recent returns the last n entries, oldest first.
	// n <= 0 returns every entry.
	Recent(n int) ([]Entry, error)

	// Since returns the entries recorded at or after t, oldest first.
	Since(t time.Time) ([]Entry, error)

	// Count returns the number of stored entries.
	Count() (int, error)

	// Close releases the storage.
	Close() error
}

// Config configures the bolt journal.
type Config struct {
	// DBPath is the path to the BoltDB file. "~" is expanded.
	DBPath string

	// Timeout is the maximum time to wait for the database lock.
	// Default: 1 second.
	Timeout time.Duration

	// MaxEntries bounds the journal; the oldest entries are dropped once
	// it is exceeded. Zero keeps everything.
	MaxEntries int
}
