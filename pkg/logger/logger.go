// Package logger provides structured logging for onlinetime.
//
// The logger supports text and JSON output, configurable log levels, and
// context fields. File outputs are rotated by size.
//
// Example usage:
//
//	log := logger.New(logger.Config{
//	    Level:  "info",
//	    Output: "/var/log/onlinetime.log",
//	    Format: "json",
//	})
//	defer logger.Close(log)
//	log.Info("session started", "id", id, "name", name)
//	log.Error("flush failed", "error", err)
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 5
	defaultMaxBackups = 1
)

// Logger provides structured logging with levels and fields.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an informational message with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})

	// With returns a new logger with additional context fields.
	With(keysAndValues ...interface{}) Logger
}

// Config contains logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string

	// Output is the destination (stdout, stderr, or file path).
	Output string

	// Format is the output format (text, json).
	Format string

	// MaxSizeMB is the size at which a log file is rotated. Zero means 5.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept. Zero means 1.
	MaxBackups int
}

// logger implements the Logger interface using slog.
type logger struct {
	slogger *slog.Logger
	closer  io.Closer
}

// New creates a new logger with the given configuration.
//
// Parameters:
//   - cfg: Logger configuration
//
// Returns a configured logger instance.
//
// If configuration is invalid, returns a logger with default settings
// (info level, stderr, text format).
func New(cfg Config) Logger {
	// Parse log level
	level := parseLevel(cfg.Level)

	// Get output writer
	writer := getWriter(cfg)

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default: // "text" or anything else
		handler = slog.NewTextHandler(writer, opts)
	}

	l := &logger{
		slogger: slog.New(handler),
	}
	if rotated, ok := writer.(*lumberjack.Logger); ok {
		l.closer = rotated
	}
	return l
}

// Debug implements Logger.Debug.
func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.slogger.Debug(msg, keysAndValues...)
}

// Info implements Logger.Info.
func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.slogger.Info(msg, keysAndValues...)
}

// Warn implements Logger.Warn.
func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.slogger.Warn(msg, keysAndValues...)
}

// Error implements Logger.Error.
func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.slogger.Error(msg, keysAndValues...)
}

// With implements Logger.With.
func (l *logger) With(keysAndValues ...interface{}) Logger {
	return &logger{
		slogger: l.slogger.With(keysAndValues...),
		closer:  l.closer,
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error.
// Defaults to info for unrecognized levels.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getWriter returns an io.Writer for the configured output destination.
//
// Supported destinations:
//   - "stdout": Standard output
//   - "stderr": Standard error (default)
//   - file path: Size-rotated file, created on first write
func getWriter(cfg Config) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		return os.Stdout
	case "stderr", "":
		return os.Stderr
	default:
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = defaultMaxSizeMB
		}
		backups := cfg.MaxBackups
		if backups <= 0 {
			backups = defaultMaxBackups
		}
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    maxSize,
			MaxBackups: backups,
		}
	}
}

// Close releases the file behind a logger created by New. Loggers writing to
// stdout or stderr need no closing.
func Close(l Logger) error {
	impl, ok := l.(*logger)
	if !ok || impl.closer == nil {
		return nil
	}
	return impl.closer.Close()
}

// Default returns a logger with default configuration.
//
// Default settings:
//   - Level: info
//   - Output: stderr
//   - Format: text
func Default() Logger {
	return New(Config{
		Level:  "info",
		Output: "stderr",
		Format: "text",
	})
}

// Noop returns a logger that discards all log messages.
//
// Useful for testing or when logging should be disabled.
func Noop() Logger {
	return &logger{
		slogger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}
