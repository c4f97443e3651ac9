package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/0xmhha/dirwatch/pkg/collection"
	"github.com/0xmhha/dirwatch/pkg/display"
	"github.com/0xmhha/dirwatch/pkg/journal"
	"github.com/0xmhha/dirwatch/pkg/logger"
	"github.com/0xmhha/dirwatch/pkg/watcher"
	"github.com/spf13/cobra"
)

// watchCommand watches directories and prints changes until interrupted.
type watchCommand struct {
	opts          *globalOptions
	dirs          []string
	quiet         time.Duration
	statsInterval time.Duration
	noJournal     bool
	out           io.Writer
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	c := &watchCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "watch [dirs...]",
		Short: "Watch directories and print changes",
		Long: `Watches the given directories (or the configured watch_dirs) recursively and
prints every classified change once the tree has been quiet for the quiet
period. Changes are recorded to the journal unless --no-journal is given.

Press Ctrl+C to stop; final statistics are printed on exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.dirs = args
			c.out = cmd.OutOrStdout()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return c.Execute(ctx)
		},
	}

	cmd.Flags().DurationVarP(&c.quiet, "quiet", "q", 0,
		"Quiet period before changes are reported (default from config)")
	cmd.Flags().DurationVar(&c.statsInterval, "stats-interval", 0,
		"Print statistics periodically (e.g. 30s)")
	cmd.Flags().BoolVar(&c.noJournal, "no-journal", false,
		"Do not record changes to the journal")

	return cmd
}

// Execute runs the watch command until ctx is done.
func (c *watchCommand) Execute(ctx context.Context) error {
	cfg, err := c.opts.loadConfig()
	if err != nil {
		return err
	}
	if len(c.dirs) > 0 {
		cfg.WatchDirs = c.dirs
	}
	if c.quiet > 0 {
		cfg.Watcher.QuietPeriod = c.quiet
	}
	if c.statsInterval > 0 {
		cfg.Display.StatsInterval = c.statsInterval
	}

	log := newLogger(cfg)

	rules, err := newFilter(cfg)
	if err != nil {
		return err
	}

	var j journal.Journal
	if cfg.Storage.Enabled && !c.noJournal {
		j, err = openJournal(cfg, log)
		if err != nil {
			return err
		}
		defer closeJournal(j, log)
	}

	formatter := newFormatter(cfg, c.out)
	printer := &changePrinter{
		formatter:    formatter,
		out:          c.out,
		absolutePath: len(cfg.WatchDirs) > 1,
		log:          log,
	}

	var collections []*collection.Collection
	defer func() {
		if stopErr := stopAll(collections); stopErr != nil {
			log.Error("failed to stop watching", "error", stopErr)
		}
	}()

	for _, dir := range cfg.WatchDirs {
		col, err := collection.New(collection.Config{
			BaseDir:     dir,
			Filter:      rules,
			QuietPeriod: cfg.Watcher.QuietPeriod,
			Overflow:    cfg.OverflowPolicy(),
			Journal:     j,
			Observer:    printer,
		}, log)
		if err != nil {
			return err
		}

		if err := col.StartWatching(); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		collections = append(collections, col)

		log.Info("watching",
			"dir", col.BaseDir(),
			"files", col.Len(),
			"quiet_period", cfg.Watcher.QuietPeriod)
	}

	started := time.Now()

	var tick <-chan time.Time
	if cfg.Display.StatsInterval > 0 {
		ticker := time.NewTicker(cfg.Display.StatsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			stopErr := stopAll(collections)
			final := collectStats(collections, started)
			collections = nil

			printer.mu.Lock()
			err := c.printStats(formatter, final)
			printer.mu.Unlock()
			return errors.Join(stopErr, err)

		case <-tick:
			printer.mu.Lock()
			err := c.printStats(formatter, collectStats(collections, started))
			printer.mu.Unlock()
			if err != nil {
				log.Warn("failed to print statistics", "error", err)
			}
		}
	}
}

// printStats writes one statistics block per collection.
func (c *watchCommand) printStats(formatter display.Formatter, stats []display.Stats) error {
	for _, s := range stats {
		if err := formatter.FormatStats(c.out, s); err != nil {
			return err
		}
	}
	return nil
}

// stopAll stops every collection, returning the joined errors.
func stopAll(collections []*collection.Collection) error {
	var errs []error
	for _, col := range collections {
		if err := col.StopWatching(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", col.BaseDir(), err))
		}
	}
	return errors.Join(errs...)
}

// collectStats snapshots display statistics for each collection.
func collectStats(collections []*collection.Collection, started time.Time) []display.Stats {
	stats := make([]display.Stats, 0, len(collections))
	for _, col := range collections {
		stats = append(stats, statsOf(col, time.Since(started)))
	}
	return stats
}

// statsOf snapshots the statistics of one collection.
func statsOf(col *collection.Collection, uptime time.Duration) display.Stats {
	files := col.Files()

	var size int64
	for _, f := range files {
		size += f.Size
	}

	return display.Stats{
		Collection: col.Description(),
		Files:      len(files),
		Bytes:      size,
		Counters:   col.Counters(),
		Watcher:    col.WatcherStats(),
		Uptime:     uptime,
	}
}

// changePrinter writes every change it observes. Collections dispatch
// from their own goroutines, so writes are serialized.
type changePrinter struct {
	mu           sync.Mutex
	formatter    display.Formatter
	out          io.Writer
	absolutePath bool
	log          logger.Logger
}

// OnCollectionChange implements collection.ChangeObserver.
func (p *changePrinter) OnCollectionChange(c watcher.Change, name string) {
	if p.absolutePath {
		name = c.Path
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.formatter.FormatChange(p.out, display.ChangeEvent{
		Time: time.Now(),
		Type: c.Type,
		Name: name,
	})
	if err != nil {
		p.log.Warn("failed to print change", "path", c.Path, "error", err)
	}
}

// OnFileTouched implements collection.Observer.
func (p *changePrinter) OnFileTouched(name string) {
	p.log.Debug("file touched", "name", name)
}

// OnCollectionRefreshed implements collection.Observer.
func (p *changePrinter) OnCollectionRefreshed(files int) {
	p.log.Debug("collection refreshed", "files", files)
}
