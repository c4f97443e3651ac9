package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoWatchDirs is returned when no watch directories are specified.
	ErrNoWatchDirs = errors.New("no watch directories specified")

	// ErrInvalidQuietPeriod is returned when the quiet period is <= 0.
	ErrInvalidQuietPeriod = errors.New("invalid quiet period: must be > 0")

	// ErrInvalidOverflowPolicy is returned when the overflow policy is not recognized.
	ErrInvalidOverflowPolicy = errors.New("invalid overflow policy: must be log or notify")

	// ErrInvalidFilter is returned when a filter pattern does not compile.
	ErrInvalidFilter = errors.New("invalid filter rules")

	// ErrInvalidDisplayFormat is returned when the display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, json, or simple")

	// ErrInvalidStatsInterval is returned when the stats interval is < 0.
	ErrInvalidStatsInterval = errors.New("invalid stats interval: must be >= 0")

	// ErrEmptyDBPath is returned when the journal is enabled without a database path.
	ErrEmptyDBPath = errors.New("journal enabled without a database path")

	// ErrInvalidMaxEntries is returned when max entries is < 0.
	ErrInvalidMaxEntries = errors.New("invalid max entries: must be >= 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidEnvValue is returned when an environment override cannot be parsed.
	ErrInvalidEnvValue = errors.New("invalid environment variable value")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
