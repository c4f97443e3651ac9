// Package display provides output formatting for dirwatch.
//
// It supports multiple output formats (table, JSON, simple text) for live
// changes, journal history, collection listings and statistics.
package display

import (
	"io"
	"time"

	"github.com/0xmhha/dirwatch/pkg/collection"
	"github.com/0xmhha/dirwatch/pkg/journal"
	"github.com/0xmhha/dirwatch/pkg/watcher"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays output in formatted tables.
	FormatTable Format = "table"

	// FormatJSON displays output as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays output as one line per item.
	FormatSimple Format = "simple"
)

// ChangeEvent is one change as shown by the live view.
type ChangeEvent struct {
	Time time.Time          `json:"time"`
	Type watcher.ChangeType `json:"-"`
	Name string             `json:"name"`
}

// Stats groups the counters shown by the stats views.
type Stats struct {
	// Collection describes the collection.
	Collection string `json:"collection"`

	// Files is the number of indexed files.
	Files int `json:"files"`

	// Bytes is the total size of the indexed files.
	Bytes int64 `json:"bytes"`

	// Counters are the collection callback counters.
	Counters collection.Counters `json:"counters"`

	// Watcher are the watcher counters.
	Watcher watcher.Stats `json:"watcher"`

	// Uptime is how long the watch has been running. Zero hides it.
	Uptime time.Duration `json:"uptime,omitempty"`
}

// Formatter formats dirwatch output.
type Formatter interface {
	// FormatChange formats one live change.
	//
	// Parameters:
	//   - w: Output writer
	//   - event: Change to format
	//
	// Returns error if writing fails.
	FormatChange(w io.Writer, event ChangeEvent) error

	// FormatEntries formats journal entries.
	//
	// Parameters:
	//   - w: Output writer
	//   - entries: Entries to format, oldest first
	//
	// Returns error if writing fails.
	FormatEntries(w io.Writer, entries []journal.Entry) error

	// FormatSummary formats a journal summary.
	FormatSummary(w io.Writer, summary journal.Summary) error

	// FormatFiles formats a collection listing.
	FormatFiles(w io.Writer, files []collection.File) error

	// FormatStats formats collection and watcher counters.
	FormatStats(w io.Writer, stats Stats) error

	// FormatSessions formats journal watch sessions.
	FormatSessions(w io.Writer, sessions []*journal.Session) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format `yaml:"format"`

	// Color enables coloured change types in the simple and table formats.
	// Default: false.
	Color bool `yaml:"color"`

	// ShowTimestamps enables timestamp display.
	// Default: true.
	ShowTimestamps bool `yaml:"show_timestamps"`

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool `yaml:"compact"`
}
