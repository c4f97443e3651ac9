package display

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/0xmhha/dirwatch/pkg/collection"
	"github.com/0xmhha/dirwatch/pkg/journal"
	"github.com/0xmhha/dirwatch/pkg/watcher"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config  Config
	palette palette
}

// FormatChange implements Formatter.FormatChange.
func (f *simpleFormatter) FormatChange(w io.Writer, event ChangeEvent) error {
	if f.config.ShowTimestamps {
		if _, err := fmt.Fprintf(w, "[%s] ", event.Time.Format("15:04:05")); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s %s\n", f.palette.paint(event.Type, 0), event.Name)
	return err
}

// FormatEntries implements Formatter.FormatEntries.
func (f *simpleFormatter) FormatEntries(w io.Writer, entries []journal.Entry) error {
	for _, e := range entries {
		typ := e.Type
		if t, err := watcher.ParseChangeType(e.Type); err == nil {
			typ = f.palette.paint(t, 0)
		}

		if f.config.ShowTimestamps {
			if _, err := fmt.Fprintf(w, "%s ", e.Time.Local().Format(timeLayout)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", typ, e.Path); err != nil {
			return err
		}
	}

	return nil
}

// FormatSummary implements Formatter.FormatSummary.
func (f *simpleFormatter) FormatSummary(w io.Writer, summary journal.Summary) error {
	if _, err := fmt.Fprintf(w, "Changes: %s | Paths: %s",
		formatNumber(summary.Total),
		formatNumber(summary.Paths)); err != nil {
		return err
	}

	types := make([]string, 0, len(summary.ByType))
	for t := range summary.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		if _, err := fmt.Fprintf(w, " | %s: %d", t, summary.ByType[t]); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}

// FormatFiles implements Formatter.FormatFiles.
func (f *simpleFormatter) FormatFiles(w io.Writer, files []collection.File) error {
	for _, file := range files {
		if _, err := fmt.Fprintf(w, "%s (%s)\n", file.Name, formatBytes(file.Size)); err != nil {
			return err
		}
	}

	return nil
}

// FormatStats implements Formatter.FormatStats.
func (f *simpleFormatter) FormatStats(w io.Writer, stats Stats) error {
	_, err := fmt.Fprintf(w, "Files: %s (%s) | Created: %d | Modified: %d | Deleted: %d | Dirs +%d/-%d | Touched: %d | Cycles: %d | Raw: %d\n",
		formatNumber(stats.Files),
		formatBytes(stats.Bytes),
		stats.Counters.FilesCreated,
		stats.Counters.FilesModified,
		stats.Counters.FilesDeleted,
		stats.Counters.DirectoriesCreated,
		stats.Counters.DirectoriesDeleted,
		stats.Counters.Touched,
		stats.Watcher.Cycles,
		stats.Watcher.RawEvents)
	return err
}

// FormatSessions implements Formatter.FormatSessions.
func (f *simpleFormatter) FormatSessions(w io.Writer, sessions []*journal.Session) error {
	for _, s := range sessions {
		if _, err := fmt.Fprintf(w, "%s %s %s\n",
			s.ID,
			s.StartedAt.Local().Format(timeLayout),
			strings.Join(s.Roots, ",")); err != nil {
			return err
		}
	}

	return nil
}
