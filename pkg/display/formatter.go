package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/dirwatch/pkg/watcher"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

const timeLayout = "2006-01-02 15:04:05"

// New creates a new formatter based on configuration.
//
// Parameters:
//   - cfg: Formatter configuration
//
// Returns a configured Formatter.
func New(cfg Config) Formatter {
	// Set defaults.
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatSimple:
		return &simpleFormatter{config: cfg, palette: newPalette(cfg.Color)}
	case FormatTable:
		fallthrough
	default:
		return &tableFormatter{config: cfg, palette: newPalette(cfg.Color)}
	}
}

// ValidFormat reports whether format names a known formatter.
func ValidFormat(format string) bool {
	switch Format(format) {
	case FormatTable, FormatJSON, FormatSimple:
		return true
	default:
		return false
	}
}

// palette colours change type names.
type palette struct {
	colors map[watcher.ChangeType]*color.Color
}

func newPalette(enabled bool) palette {
	colors := map[watcher.ChangeType]*color.Color{
		watcher.FileCreated:      color.New(color.FgGreen),
		watcher.FileModified:     color.New(color.FgYellow),
		watcher.FileDeleted:      color.New(color.FgRed),
		watcher.DirectoryCreated: color.New(color.FgCyan, color.Bold),
		watcher.DirectoryDeleted: color.New(color.FgMagenta, color.Bold),
	}

	// Per-instance switch, independent of the global NO_COLOR detection.
	for _, c := range colors {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return palette{colors: colors}
}

// paint returns the change type name, coloured when enabled.
func (p palette) paint(t watcher.ChangeType, width int) string {
	name := fmt.Sprintf("%-*s", width, t.String())
	if c, ok := p.colors[t]; ok {
		return c.Sprint(name)
	}
	return name
}

// formatNumber formats a number with thousand separators.
func formatNumber[T ~int | ~int64 | ~uint64](n T) string {
	return humanize.Comma(int64(n))
}

// formatBytes formats a size in bytes.
func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// writeHeader writes a section header.
func writeHeader(w io.Writer, title string, compact bool) error {
	if compact {
		_, err := fmt.Fprintf(w, "%s\n", title)
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	return err
}

// changeTypeWidth pads change type names to a common width.
const changeTypeWidth = len("DIRECTORY_CREATED")
