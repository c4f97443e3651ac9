package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0xmhha/dirwatch/pkg/display"
	"github.com/0xmhha/dirwatch/pkg/filter"
	"github.com/0xmhha/dirwatch/pkg/logger"
	"github.com/0xmhha/dirwatch/pkg/watcher"
)

// Config represents the complete application configuration.
type Config struct {
	// WatchDirs are the directories watched by default.
	WatchDirs []string `yaml:"watch_dirs"`

	// Watcher configures change debouncing.
	Watcher WatcherConfig `yaml:"watcher"`

	// Filter selects which files are indexed and reported.
	Filter filter.Rules `yaml:"filter"`

	// Display configures output formatting.
	Display DisplayConfig `yaml:"display"`

	// Storage configures the change journal.
	Storage StorageConfig `yaml:"storage"`

	// Logging configures logging behavior.
	Logging LoggingConfig `yaml:"logging"`
}

// WatcherConfig contains watcher settings.
type WatcherConfig struct {
	// QuietPeriod is how long a tree must be quiet before changes are
	// dispatched.
	QuietPeriod time.Duration `yaml:"quiet_period"`

	// Overflow is the policy for lost notifications (log, notify).
	Overflow string `yaml:"overflow"`
}

// DisplayConfig contains display settings.
type DisplayConfig struct {
	// Format is the output format (table, json, simple).
	Format string `yaml:"format"`

	// ColorEnabled enables coloured change types on a terminal.
	ColorEnabled bool `yaml:"color_enabled"`

	// ShowTimestamps prefixes changes with their time.
	ShowTimestamps bool `yaml:"show_timestamps"`

	// StatsInterval prints statistics periodically while watching.
	// Zero disables it.
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// StorageConfig contains journal settings.
type StorageConfig struct {
	// Enabled records changes to the journal while watching.
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the BoltDB database.
	DBPath string `yaml:"db_path"`

	// MaxEntries bounds the journal. Zero keeps everything.
	MaxEntries int `yaml:"max_entries"`

	// Timeout is the maximum wait for the database lock.
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is the log file path (empty = stderr).
	File string `yaml:"file"`

	// Format is the log format (text, json).
	Format string `yaml:"format"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.WatchDirs) == 0 {
		return ErrNoWatchDirs
	}
	for _, dir := range c.WatchDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%w: empty directory", ErrNoWatchDirs)
		}
	}

	if c.Watcher.QuietPeriod <= 0 {
		return ErrInvalidQuietPeriod
	}
	if _, err := watcher.ParseOverflowPolicy(c.Watcher.Overflow); err != nil {
		return errors.Join(ErrInvalidOverflowPolicy, err)
	}

	if _, err := filter.New(c.Filter); err != nil {
		return errors.Join(ErrInvalidFilter, err)
	}

	if !display.ValidFormat(c.Display.Format) {
		return ErrInvalidDisplayFormat
	}
	if c.Display.StatsInterval < 0 {
		return ErrInvalidStatsInterval
	}

	if c.Storage.Enabled && c.Storage.DBPath == "" {
		return ErrEmptyDBPath
	}
	if c.Storage.MaxEntries < 0 {
		return ErrInvalidMaxEntries
	}

	if !logger.ValidLevel(c.Logging.Level) {
		return ErrInvalidLogLevel
	}
	if !logger.ValidFormat(c.Logging.Format) {
		return ErrInvalidLogFormat
	}

	return nil
}

// OverflowPolicy returns the parsed overflow policy, OverflowNotify when invalid.
func (c *Config) OverflowPolicy() watcher.OverflowPolicy {
	policy, err := watcher.ParseOverflowPolicy(c.Watcher.Overflow)
	if err != nil {
		return watcher.OverflowNotify
	}
	return policy
}

// LoggerConfig converts the logging section for the logger package.
func (c *Config) LoggerConfig() logger.Config {
	output := c.Logging.File
	if output == "" {
		output = "stderr"
	}
	return logger.Config{
		Level:  c.Logging.Level,
		Output: output,
		Format: c.Logging.Format,
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		WatchDirs: []string{"."},
		Watcher: WatcherConfig{
			QuietPeriod: watcher.DefaultQuietPeriod,
			Overflow:    string(watcher.OverflowNotify),
		},
		Filter: filter.Rules{
			CacheSize: filter.DefaultCacheSize,
		},
		Display: DisplayConfig{
			Format:         string(display.FormatTable),
			ColorEnabled:   true,
			ShowTimestamps: true,
		},
		Storage: StorageConfig{
			Enabled:    true,
			DBPath:     defaultDBPath(),
			MaxEntries: 100000,
			Timeout:    time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
