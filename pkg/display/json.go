package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/dirwatch/pkg/collection"
	"github.com/0xmhha/dirwatch/pkg/journal"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// jsonChange is the JSON form of a ChangeEvent, with the type spelled out.
type jsonChange struct {
	Time string `json:"time,omitempty"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// FormatChange implements Formatter.FormatChange.
// Changes are always written one object per line so a live stream stays
// line-delimited.
func (f *jsonFormatter) FormatChange(w io.Writer, event ChangeEvent) error {
	out := jsonChange{Type: event.Type.String(), Name: event.Name}
	if f.config.ShowTimestamps {
		out.Time = event.Time.Format("2006-01-02T15:04:05.000Z07:00")
	}
	return json.NewEncoder(w).Encode(out)
}

// FormatEntries implements Formatter.FormatEntries.
func (f *jsonFormatter) FormatEntries(w io.Writer, entries []journal.Entry) error {
	if entries == nil {
		entries = []journal.Entry{}
	}
	return f.encode(w, entries)
}

// FormatSummary implements Formatter.FormatSummary.
func (f *jsonFormatter) FormatSummary(w io.Writer, summary journal.Summary) error {
	return f.encode(w, summary)
}

// FormatFiles implements Formatter.FormatFiles.
func (f *jsonFormatter) FormatFiles(w io.Writer, files []collection.File) error {
	if files == nil {
		files = []collection.File{}
	}
	return f.encode(w, files)
}

// FormatStats implements Formatter.FormatStats.
func (f *jsonFormatter) FormatStats(w io.Writer, stats Stats) error {
	return f.encode(w, stats)
}

// FormatSessions implements Formatter.FormatSessions.
func (f *jsonFormatter) FormatSessions(w io.Writer, sessions []*journal.Session) error {
	if sessions == nil {
		sessions = []*journal.Session{}
	}
	return f.encode(w, sessions)
}

func (f *jsonFormatter) encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}
