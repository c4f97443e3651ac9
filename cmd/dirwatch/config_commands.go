package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/0xmhha/dirwatch/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	opts *globalOptions
	out  io.Writer
	in   io.Reader
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	c := &configCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management (show, path, reset)",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.out = cmd.OutOrStdout()
			c.in = cmd.InOrStdin()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	var showFormat string
	show := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.runShow(showFormat)
		},
	}
	show.Flags().StringVarP(&showFormat, "output", "o", "yaml", "Output format (yaml, json)")

	path := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.runPath()
		},
	}

	var (
		force  bool
		output string
	)
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.runReset(output, force)
		},
	}
	reset.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	reset.Flags().StringVar(&output, "path", "", "Output path for config file (default: ~/.config/dirwatch/config.yaml)")

	cmd.AddCommand(show, path, reset)
	return cmd
}

// runShow displays the effective configuration.
func (c *configCommand) runShow(format string) error {
	cfg, err := c.opts.loadConfig()
	if err != nil {
		return err
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintln(c.out, string(data))
		return err

	case "yaml", "":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintf(c.out, "# Current Configuration\n# Source: %s\n\n%s", c.source(), data)
		return err

	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// runPath shows the configuration file search paths.
func (c *configCommand) runPath() error {
	paths := []string{}
	if env := os.Getenv(config.EnvConfig); env != "" {
		paths = append(paths, env)
	}
	paths = append(paths, "./dirwatch.yaml", config.DefaultPath())

	fmt.Fprintln(c.out, "Configuration file search paths (in order of precedence):")
	fmt.Fprintln(c.out)

	for i, p := range paths {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Fprintf(c.out, "  %d. %s [%s]\n", i+1, p, exists)
	}

	fmt.Fprintln(c.out)
	_, err := fmt.Fprintln(c.out, "Active configuration:", c.source())
	return err
}

// runReset writes the default configuration to path.
func (c *configCommand) runReset(path string, force bool) error {
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(c.out, "Configuration file already exists at: %s\n", path)
		fmt.Fprint(c.out, "Overwrite? [y/N]: ")

		response, _ := bufio.NewReader(c.in).ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			_, err := fmt.Fprintln(c.out, "Reset cancelled.")
			return err
		}
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}

	_, err := fmt.Fprintf(c.out, "Configuration reset to defaults at: %s\n", path)
	return err
}

// source returns the path of the active configuration file.
func (c *configCommand) source() string {
	if p := config.NewLoader(c.opts.configPath).Path(); p != "" {
		return p
	}
	return "defaults (no config file found)"
}
