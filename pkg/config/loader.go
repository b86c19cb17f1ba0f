package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads configuration from a specific file.
	LoadFromFile(path string) (*Config, error)

	// Path returns the configuration file Load reads, or "" if none exists.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, ONLINETIME_CONFIG is used; if that is unset too,
// searches for config file in:
// 1. ./config.yaml (current directory)
// 2. ~/.config/onlinetime/config.yaml.
func NewLoader(configPath string) Loader {
	if configPath == "" {
		configPath = os.Getenv("ONLINETIME_CONFIG")
	}
	return &loader{
		configPath: configPath,
	}
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	return l.findConfigFile()
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	// Start with default configuration
	cfg := Default()

	// Find config file path
	configPath := l.configPath
	if configPath == "" {
		configPath = l.findConfigFile()
	}

	// Load from file if it exists
	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// If file is specified but can't be loaded, return error
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
			// Otherwise, just use defaults
		} else {
			cfg = l.mergeConfigs(cfg, fileCfg)
		}
	}

	// Apply environment variable overrides
	cfg = l.applyEnvVars(cfg)

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &cfg, nil
}

// findConfigFile searches for a config file in standard locations.
//
// Searches in order:
// 1. ./config.yaml
// 2. ~/.config/onlinetime/config.yaml
//
// Returns empty string if no config file is found.
func (l *loader) findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		DefaultPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// mergeConfigs merges file configuration into default configuration.
//
// File values override defaults, but only if they are non-zero.
func (l *loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	// Merge storage config
	if override.Storage.Backend != "" {
		result.Storage.Backend = strings.ToLower(override.Storage.Backend)
	}
	if override.Storage.DataDir != "" {
		result.Storage.DataDir = override.Storage.DataDir
	}
	if override.Storage.YAML.FlushInterval != 0 {
		result.Storage.YAML.FlushInterval = override.Storage.YAML.FlushInterval
	}
	// WatchExternal is a bool, so we always take the override value
	result.Storage.YAML.WatchExternal = override.Storage.YAML.WatchExternal
	if override.Storage.Bolt.Path != "" {
		result.Storage.Bolt.Path = override.Storage.Bolt.Path
	}
	if override.Storage.Bolt.Timeout != 0 {
		result.Storage.Bolt.Timeout = override.Storage.Bolt.Timeout
	}

	pg := override.Storage.Postgres
	if pg.URL != "" {
		result.Storage.Postgres.URL = pg.URL
	}
	if pg.MaxOpenConns != 0 {
		result.Storage.Postgres.MaxOpenConns = pg.MaxOpenConns
	}
	if pg.MaxIdleConns != 0 {
		result.Storage.Postgres.MaxIdleConns = pg.MaxIdleConns
	}
	if pg.ConnMaxLifetime != 0 {
		result.Storage.Postgres.ConnMaxLifetime = pg.ConnMaxLifetime
	}
	if pg.ConnectTimeout != 0 {
		result.Storage.Postgres.ConnectTimeout = pg.ConnectTimeout
	}

	// Merge tracking config
	if override.Tracking.SaveInterval != 0 {
		result.Tracking.SaveInterval = override.Tracking.SaveInterval
	}

	if override.Language.File != "" {
		result.Language.File = override.Language.File
	}

	if override.Display.DefaultFormat != "" {
		result.Display.DefaultFormat = override.Display.DefaultFormat
	}

	// Merge logging config
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}
	if override.Logging.MaxSizeMB != 0 {
		result.Logging.MaxSizeMB = override.Logging.MaxSizeMB
	}
	if override.Logging.MaxBackups != 0 {
		result.Logging.MaxBackups = override.Logging.MaxBackups
	}

	if override.Metrics.Addr != "" {
		result.Metrics.Addr = override.Metrics.Addr
	}

	return &result
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - ONLINETIME_STORAGE: Storage backend
//   - ONLINETIME_DATABASE_URL: Postgres connection URL
//   - ONLINETIME_DATA_DIR: Data directory
//   - ONLINETIME_LOG_LEVEL: Log level
//   - ONLINETIME_METRICS_ADDR: Metrics listen address
func (l *loader) applyEnvVars(cfg *Config) *Config {
	result := *cfg

	if backend := os.Getenv("ONLINETIME_STORAGE"); backend != "" {
		result.Storage.Backend = strings.ToLower(strings.TrimSpace(backend))
	}

	if url := os.Getenv("ONLINETIME_DATABASE_URL"); url != "" {
		result.Storage.Postgres.URL = url
	}

	if dir := os.Getenv("ONLINETIME_DATA_DIR"); dir != "" {
		result.Storage.DataDir = dir
	}

	if logLevel := os.Getenv("ONLINETIME_LOG_LEVEL"); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	if addr := os.Getenv("ONLINETIME_METRICS_ADDR"); addr != "" {
		result.Metrics.Addr = addr
	}

	return &result
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file; a new file gets 0600 from the temp file
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
