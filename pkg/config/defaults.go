package config

import (
	"os"
	"path/filepath"
)

// appDir returns ~/.config/dirwatch, or "." when the home directory is unknown.
func appDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(homeDir, ".config", "dirwatch")
}

// defaultDBPath returns the default journal database path.
//
// Returns: ~/.config/dirwatch/journal.db.
func defaultDBPath() string {
	return filepath.Join(appDir(), "journal.db")
}

// DefaultPath returns the default configuration file path.
//
// Returns: ~/.config/dirwatch/config.yaml.
func DefaultPath() string {
	return filepath.Join(appDir(), "config.yaml")
}
