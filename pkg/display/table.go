package display

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/0xmhha/dirwatch/pkg/collection"
	"github.com/0xmhha/dirwatch/pkg/journal"
	"github.com/dustin/go-humanize"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config  Config
	palette palette
}

// FormatChange implements Formatter.FormatChange.
// A live change is a single row without a header.
func (f *tableFormatter) FormatChange(w io.Writer, event ChangeEvent) error {
	if f.config.ShowTimestamps {
		if _, err := fmt.Fprintf(w, "%s  ", event.Time.Format(timeLayout)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s  %s\n", f.palette.paint(event.Type, changeTypeWidth), event.Name)
	return err
}

// FormatEntries implements Formatter.FormatEntries.
func (f *tableFormatter) FormatEntries(w io.Writer, entries []journal.Entry) error {
	if err := writeHeader(w, "Change History", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Seq", "Type", "Path"}
	if f.config.ShowTimestamps {
		header = append([]string{"Time"}, header...)
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		row := []string{formatNumber(e.Seq), e.Type, e.Path}
		if f.config.ShowTimestamps {
			row = append([]string{e.Time.Local().Format(timeLayout)}, row...)
		}
		rows[i] = row
	}

	return f.writeTable(w, header, rows)
}

// FormatSummary implements Formatter.FormatSummary.
func (f *tableFormatter) FormatSummary(w io.Writer, summary journal.Summary) error {
	if err := writeHeader(w, "Change Summary", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Changes", formatNumber(summary.Total)},
		{"Distinct Paths", formatNumber(summary.Paths)},
	}

	types := make([]string, 0, len(summary.ByType))
	for t := range summary.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		rows = append(rows, []string{t, formatNumber(summary.ByType[t])})
	}

	if f.config.ShowTimestamps && !summary.First.IsZero() {
		rows = append(rows,
			[]string{"First Change", summary.First.Local().Format(timeLayout)},
			[]string{"Last Change", summary.Last.Local().Format(timeLayout)},
		)
	}

	return f.writeTable(w, []string{"Metric", "Value"}, rows)
}

// FormatFiles implements Formatter.FormatFiles.
func (f *tableFormatter) FormatFiles(w io.Writer, files []collection.File) error {
	if err := writeHeader(w, "Collection Files", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Name", "Size", "Digest"}
	if f.config.ShowTimestamps {
		header = append(header, "Modified")
	}

	rows := make([][]string, len(files))
	for i, file := range files {
		row := []string{file.Name, formatBytes(file.Size), fmt.Sprintf("%016x", file.Digest)}
		if f.config.ShowTimestamps {
			row = append(row, humanize.Time(file.ModTime))
		}
		rows[i] = row
	}

	return f.writeTable(w, header, rows)
}

// FormatStats implements Formatter.FormatStats.
func (f *tableFormatter) FormatStats(w io.Writer, stats Stats) error {
	if err := writeHeader(w, "Watch Statistics", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Collection", stats.Collection},
		{"Files", formatNumber(stats.Files)},
		{"Total Size", formatBytes(stats.Bytes)},
		{"Files Created", formatNumber(stats.Counters.FilesCreated)},
		{"Files Modified", formatNumber(stats.Counters.FilesModified)},
		{"Files Deleted", formatNumber(stats.Counters.FilesDeleted)},
		{"Directories Created", formatNumber(stats.Counters.DirectoriesCreated)},
		{"Directories Deleted", formatNumber(stats.Counters.DirectoriesDeleted)},
		{"Files Touched", formatNumber(stats.Counters.Touched)},
		{"Refreshes", formatNumber(stats.Counters.Refreshes)},
		{"Watched Directories", formatNumber(stats.Watcher.Directories)},
		{"Raw Events", formatNumber(stats.Watcher.RawEvents)},
		{"Coalesced Events", formatNumber(stats.Watcher.Coalesced)},
		{"Dispatch Cycles", formatNumber(stats.Watcher.Cycles)},
		{"Listener Failures", formatNumber(stats.Watcher.ListenerFailures)},
		{"Overflows", formatNumber(stats.Watcher.Overflows)},
	}

	if stats.Uptime > 0 {
		rows = append(rows, []string{"Uptime", stats.Uptime.Round(time.Second).String()})
	}

	return f.writeTable(w, []string{"Metric", "Value"}, rows)
}

// FormatSessions implements Formatter.FormatSessions.
func (f *tableFormatter) FormatSessions(w io.Writer, sessions []*journal.Session) error {
	if err := writeHeader(w, "Watch Sessions", f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, len(sessions))
	for i, s := range sessions {
		started := s.StartedAt.Local().Format(timeLayout)
		if !f.config.ShowTimestamps {
			started = humanize.Time(s.StartedAt)
		}
		rows[i] = []string{s.ID, started, strings.Join(s.Roots, ", ")}
	}

	return f.writeTable(w, []string{"Session", "Started", "Roots"}, rows)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	for i, cell := range cells {
		if i > 0 {
			if _, err := fmt.Fprint(w, gap); err != nil {
				return err
			}
		}

		// The last column is not padded.
		if i == len(cells)-1 {
			if _, err := fmt.Fprint(w, cell); err != nil {
				return err
			}
			continue
		}

		if _, err := fmt.Fprintf(w, "%-*s", widths[i], cell); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}
