package main

import (
	"fmt"
	"io"
	"os"

	"github.com/0xmhha/dirwatch/pkg/config"
	"github.com/0xmhha/dirwatch/pkg/display"
	"github.com/0xmhha/dirwatch/pkg/filter"
	"github.com/0xmhha/dirwatch/pkg/journal"
	"github.com/0xmhha/dirwatch/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// globalOptions holds persistent flags that apply to all commands.
type globalOptions struct {
	configPath string
	logLevel   string
	format     string
}

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state out of package variables.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "dirwatch",
		Short: "Watch directory trees and report file changes",
		Long: `Dirwatch watches directory trees and reports debounced, classified changes:
files created, modified or deleted, and directories created or deleted.

Bursts of filesystem activity are collapsed until the tree has been quiet
for the configured period, then reported once. Changes can be recorded to a
journal and reviewed with 'dirwatch history'.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.SetVersionTemplate("dirwatch {{.Version}}\n")

	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to configuration file (default: $DIRWATCH_CONFIG, ./dirwatch.yaml, ~/.config/dirwatch/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "",
		"Output format (table, json, simple)")

	root.AddCommand(
		newWatchCmd(opts),
		newListCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	return root
}

// newVersionCmd shows version information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dirwatch %s\n", version)
		},
	}
}

// loadConfig loads the configuration and applies the global flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(o.configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if o.logLevel != "" {
		if !logger.ValidLevel(o.logLevel) {
			return nil, fmt.Errorf("%w: %s", config.ErrInvalidLogLevel, o.logLevel)
		}
		cfg.Logging.Level = o.logLevel
	}

	if o.format != "" {
		if !display.ValidFormat(o.format) {
			return nil, fmt.Errorf("%w: %s", config.ErrInvalidDisplayFormat, o.format)
		}
		cfg.Display.Format = o.format
	}

	return cfg, nil
}

// newLogger creates the application logger from configuration.
func newLogger(cfg *config.Config) logger.Logger {
	return logger.New(cfg.LoggerConfig())
}

// newFormatter creates the output formatter. Colour is only used when
// enabled and out is a terminal.
func newFormatter(cfg *config.Config, out io.Writer) display.Formatter {
	return display.New(display.Config{
		Format:         display.Format(cfg.Display.Format),
		Color:          cfg.Display.ColorEnabled && isTerminal(out),
		ShowTimestamps: cfg.Display.ShowTimestamps,
	})
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newFilter compiles the configured filter rules.
func newFilter(cfg *config.Config) (*filter.RuleSet, error) {
	rules, err := filter.New(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter: %w", err)
	}
	return rules, nil
}

// openJournal opens the configured bolt journal.
func openJournal(cfg *config.Config, log logger.Logger) (journal.Journal, error) {
	j, err := journal.NewBolt(journal.Config{
		DBPath:     cfg.Storage.DBPath,
		Timeout:    cfg.Storage.Timeout,
		MaxEntries: cfg.Storage.MaxEntries,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, nil
}

// closeJournal closes j, logging failures.
func closeJournal(j journal.Journal, log logger.Logger) {
	if err := j.Close(); err != nil {
		log.Error("failed to close journal", "error", err)
	}
}
