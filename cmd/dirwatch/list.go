package main

import (
	"fmt"
	"io"

	"github.com/0xmhha/dirwatch/pkg/collection"
	"github.com/spf13/cobra"
)

// listCommand scans directories once and lists the indexed files.
type listCommand struct {
	opts  *globalOptions
	dirs  []string
	stats bool
	out   io.Writer
}

func newListCmd(opts *globalOptions) *cobra.Command {
	c := &listCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "list [dirs...]",
		Short: "List the files matched by the filter",
		Long: `Scans the given directories (or the configured watch_dirs) once and lists
every regular file accepted by the configured filter, with its size and
content digest.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.dirs = args
			c.out = cmd.OutOrStdout()
			return c.Execute()
		},
	}

	cmd.Flags().BoolVar(&c.stats, "stats", false, "Print collection statistics instead of files")

	return cmd
}

// Execute runs the list command.
func (c *listCommand) Execute() error {
	cfg, err := c.opts.loadConfig()
	if err != nil {
		return err
	}
	if len(c.dirs) > 0 {
		cfg.WatchDirs = c.dirs
	}

	log := newLogger(cfg)

	rules, err := newFilter(cfg)
	if err != nil {
		return err
	}

	formatter := newFormatter(cfg, c.out)
	absolute := len(cfg.WatchDirs) > 1

	var files []collection.File
	for _, dir := range cfg.WatchDirs {
		col, err := collection.New(collection.Config{
			BaseDir: dir,
			Filter:  rules,
		}, log)
		if err != nil {
			return err
		}

		if err := col.Refresh(); err != nil {
			return fmt.Errorf("failed to scan %s: %w", dir, err)
		}

		if c.stats {
			if err := formatter.FormatStats(c.out, statsOf(col, 0)); err != nil {
				return err
			}
			continue
		}

		for _, f := range col.Files() {
			if absolute {
				f.Name = f.Path
			}
			files = append(files, f)
		}
	}

	if c.stats {
		return nil
	}
	return formatter.FormatFiles(c.out, files)
}
