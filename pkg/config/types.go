// Package config provides configuration management for onlinetime.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Storage backend: %s\n", cfg.Storage.Backend)
package config

import (
	"path/filepath"
	"time"
)

// Storage backends.
const (
	BackendYAML     = "yaml"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// File names inside the data directory.
const (
	TimesFile = "time.yaml"
	NamesFile = "names.yaml"
	BoltFile  = "onlinetime.db"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Storage.Backend is one of yaml, bolt, postgres, memory
// - Storage.Postgres.URL is set when the backend is postgres
// - Tracking.SaveInterval must be > 0
// - durations and pool sizes must not be negative.
type Config struct {
	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Session tracking settings
	Tracking TrackingConfig `yaml:"tracking"`

	// Unit vocabulary settings
	Language LanguageConfig `yaml:"language"`

	// Display settings
	Display DisplayConfig `yaml:"display"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`

	// Metrics settings
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is yaml, bolt, postgres or memory.
	Backend string `yaml:"backend"`

	// Directory holding the yaml documents and the default bolt file
	DataDir string `yaml:"data_dir"`

	YAML     YAMLConfig     `yaml:"yaml"`
	Bolt     BoltConfig     `yaml:"bolt"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// YAMLConfig configures the flat-file backend.
type YAMLConfig struct {
	// Zero writes every change through; otherwise changes are written at
	// most this often and on close.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Reload the documents when another program edits them
	WatchExternal bool `yaml:"watch_external"`
}

// BoltConfig configures the embedded key-value backend.
type BoltConfig struct {
	// Database file. Empty means <data_dir>/onlinetime.db.
	Path string `yaml:"path"`

	// How long to wait for the file lock
	Timeout time.Duration `yaml:"timeout"`
}

// PostgresConfig configures the relational backend.
type PostgresConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// TrackingConfig contains session tracking settings.
type TrackingConfig struct {
	// How often open sessions are committed to storage
	SaveInterval time.Duration `yaml:"save_interval"`
}

// LanguageConfig selects the unit vocabulary.
type LanguageConfig struct {
	// Vocabulary file. Empty means the built-in English units.
	File string `yaml:"file"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Default output format (table, simple, json)
	DefaultFormat string `yaml:"default_format"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`

	// Rotation settings for file outputs
	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	// Listen address for /metrics. Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// BoltPath returns the bolt database file, defaulting into the data directory.
func (s StorageConfig) BoltPath() string {
	if s.Bolt.Path != "" {
		return s.Bolt.Path
	}
	return filepath.Join(s.DataDir, BoltFile)
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendYAML, BackendBolt, BackendMemory:
	case BackendPostgres:
		if c.Storage.Postgres.URL == "" {
			return ErrNoDatabaseURL
		}
	default:
		return ErrInvalidBackend
	}

	if (c.Storage.Backend == BackendYAML || c.Storage.Backend == BackendBolt) &&
		c.Storage.DataDir == "" && c.Storage.Bolt.Path == "" {
		return ErrNoDataDir
	}

	if c.Storage.YAML.FlushInterval < 0 {
		return ErrInvalidFlushInterval
	}
	if c.Storage.Bolt.Timeout < 0 {
		return ErrInvalidBoltTimeout
	}

	pg := c.Storage.Postgres
	if pg.MaxOpenConns < 0 || pg.MaxIdleConns < 0 || pg.ConnMaxLifetime < 0 || pg.ConnectTimeout < 0 {
		return ErrInvalidPoolSettings
	}

	if c.Tracking.SaveInterval <= 0 {
		return ErrInvalidSaveInterval
	}

	validFormats := map[string]bool{
		"table":  true,
		"simple": true,
		"json":   true,
	}
	if !validFormats[c.Display.DefaultFormat] {
		return ErrInvalidDisplayFormat
	}

	// Validate logging config
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return ErrInvalidLogRotation
	}

	return nil
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendYAML,
			DataDir: defaultDataDir(),
			Bolt: BoltConfig{
				Timeout: time.Second,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 30 * time.Minute,
				ConnectTimeout:  10 * time.Second,
			},
		},
		Tracking: TrackingConfig{
			SaveInterval: 30 * time.Second,
		},
		Display: DisplayConfig{
			DefaultFormat: "table",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     "stderr",
			Format:     "text",
			MaxSizeMB:  5,
			MaxBackups: 1,
		},
	}
}
