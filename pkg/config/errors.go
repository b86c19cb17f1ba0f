package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidBackend is returned when the storage backend is not recognized.
	ErrInvalidBackend = errors.New("invalid storage backend: must be yaml, bolt, postgres, or memory")

	// ErrNoDatabaseURL is returned when the postgres backend has no connection URL.
	ErrNoDatabaseURL = errors.New("postgres backend requires storage.postgres.url")

	// ErrNoDataDir is returned when a file backend has no data directory.
	ErrNoDataDir = errors.New("file backends require storage.data_dir")

	// ErrInvalidFlushInterval is returned when the yaml flush interval is < 0.
	ErrInvalidFlushInterval = errors.New("invalid flush interval: must be >= 0")

	// ErrInvalidBoltTimeout is returned when the bolt lock timeout is < 0.
	ErrInvalidBoltTimeout = errors.New("invalid bolt timeout: must be >= 0")

	// ErrInvalidPoolSettings is returned when a postgres pool setting is < 0.
	ErrInvalidPoolSettings = errors.New("invalid postgres pool settings: must be >= 0")

	// ErrInvalidSaveInterval is returned when the save interval is <= 0.
	ErrInvalidSaveInterval = errors.New("invalid save interval: must be > 0")

	// ErrInvalidDisplayFormat is returned when display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, simple, or json")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidLogRotation is returned when a log rotation setting is < 0.
	ErrInvalidLogRotation = errors.New("invalid log rotation: must be >= 0")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
