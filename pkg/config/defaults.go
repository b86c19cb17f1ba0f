package config

import (
	"os"
	"path/filepath"
)

// defaultDataDir returns the default data directory.
//
// Returns: ~/.config/onlinetime.
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(homeDir, ".config", "onlinetime")
}

// DefaultPath returns the default configuration file path.
//
// Returns: ~/.config/onlinetime/config.yaml.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "onlinetime", "config.yaml")
}
