package main

import (
	"fmt"
	"io"
	"time"

	"github.com/0xmhha/dirwatch/pkg/journal"
	"github.com/0xmhha/dirwatch/pkg/watcher"
	"github.com/spf13/cobra"
)

// historyCommand shows journaled changes.
type historyCommand struct {
	opts       *globalOptions
	limit      int
	since      time.Duration
	session    string
	changeType string
	summary    bool
	sessions   bool
	out        io.Writer
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	c := &historyCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded changes",
		Long: `Shows the changes recorded in the journal by 'dirwatch watch', oldest first.

The journal is locked while a watch is running; history waits for the
configured storage timeout before giving up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.out = cmd.OutOrStdout()
			return c.Execute()
		},
	}

	cmd.Flags().IntVarP(&c.limit, "limit", "n", 50, "Show at most n entries (0 = all)")
	cmd.Flags().DurationVar(&c.since, "since", 0, "Only entries recorded within this duration (e.g. 1h)")
	cmd.Flags().StringVar(&c.session, "session", "", "Only entries recorded by this watch session")
	cmd.Flags().StringVar(&c.changeType, "type", "", "Only entries of this change type (e.g. FILE_MODIFIED)")
	cmd.Flags().BoolVar(&c.summary, "summary", false, "Summarize entries instead of listing them")
	cmd.Flags().BoolVar(&c.sessions, "sessions", false, "List watch sessions")

	return cmd
}

// Execute runs the history command.
func (c *historyCommand) Execute() error {
	cfg, err := c.opts.loadConfig()
	if err != nil {
		return err
	}

	var typeFilter string
	if c.changeType != "" {
		t, err := watcher.ParseChangeType(c.changeType)
		if err != nil {
			return err
		}
		typeFilter = t.String()
	}

	log := newLogger(cfg)

	j, err := openJournal(cfg, log)
	if err != nil {
		return err
	}
	defer closeJournal(j, log)

	formatter := newFormatter(cfg, c.out)

	if c.sessions {
		sessions, err := j.Sessions()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		return formatter.FormatSessions(c.out, sessions)
	}

	entries, err := c.query(j, typeFilter)
	if err != nil {
		return err
	}

	if c.summary {
		return formatter.FormatSummary(c.out, journal.Summarize(entries))
	}
	return formatter.FormatEntries(c.out, entries)
}

// query selects the entries to show. The limit applies after filtering.
func (c *historyCommand) query(j journal.Journal, typeFilter string) ([]journal.Entry, error) {
	if c.session != "" {
		if _, err := j.GetSession(c.session); err != nil {
			return nil, fmt.Errorf("failed to find session %s: %w", c.session, err)
		}
	}

	var (
		entries []journal.Entry
		err     error
	)
	switch {
	case c.since > 0:
		entries, err = j.Since(time.Now().Add(-c.since))
	case c.session != "" || typeFilter != "":
		entries, err = j.Recent(0)
	default:
		entries, err = j.Recent(c.limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	if c.session != "" {
		entries = journal.FilterSession(entries, c.session)
	}
	if typeFilter != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.Type == typeFilter {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	if c.limit > 0 && len(entries) > c.limit {
		entries = entries[len(entries)-c.limit:]
	}
	return entries, nil
}
