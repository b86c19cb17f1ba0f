package logger

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func readLog(t *testing.T, log Logger, path string) string {
	t.Helper()
	require.NoError(t, Close(log))
	data, err := os.ReadFile(path) // nolint:gosec
	require.NoError(t, err)
	return string(data)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "default config", config: Config{Level: "info", Output: "stderr", Format: "text"}},
		{name: "debug level", config: Config{Level: "debug", Output: "stderr", Format: "text"}},
		{name: "json format", config: Config{Level: "info", Output: "stderr", Format: "json"}},
		{name: "stdout output", config: Config{Level: "info", Output: "stdout", Format: "text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.config)
			require.NotNil(t, log)
			assert.NoError(t, Close(log))
		})
	}
}

func TestLogLevelFiltering(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "onlinetime.log")

	log := New(Config{Level: "warn", Output: logFile, Format: "text"})
	log.Debug("marker swapped")
	log.Info("session started")
	log.Warn("flush skipped")
	log.Error("flush failed")

	content := readLog(t, log, logFile)
	assert.NotContains(t, content, "marker swapped")
	assert.NotContains(t, content, "session started")
	assert.Contains(t, content, "flush skipped")
	assert.Contains(t, content, "flush failed")
}

func TestLogWith(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "onlinetime.log")

	base := New(Config{Level: "info", Output: logFile, Format: "text"})
	base.With("component", "accumulator").Info("session committed", "seconds", 42)

	content := readLog(t, base, logFile)
	assert.Contains(t, content, "component=accumulator")
	assert.Contains(t, content, "seconds=42")
	assert.Contains(t, content, "session committed")
}

func TestJSONOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "onlinetime.json")

	log := New(Config{Level: "info", Output: logFile, Format: "json"})
	log.Info("flush complete", "identities", 3, "backend", "yaml")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(readLog(t, log, logFile)), &entry))
	assert.Equal(t, "flush complete", entry["msg"])
	assert.Equal(t, "yaml", entry["backend"])
	assert.Equal(t, float64(3), entry["identities"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
		{"WaRn", "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.level).String())
		})
	}
}

func TestGetWriter(t *testing.T) {
	assert.Equal(t, io.Writer(os.Stdout), getWriter(Config{Output: "STDOUT"}))
	assert.Equal(t, io.Writer(os.Stderr), getWriter(Config{Output: ""}))
	assert.Equal(t, io.Writer(os.Stderr), getWriter(Config{Output: "stderr"}))

	path := filepath.Join(t.TempDir(), "rotated.log")
	w, ok := getWriter(Config{Output: path}).(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, w.Filename)
	assert.Equal(t, defaultMaxSizeMB, w.MaxSize)
	assert.Equal(t, defaultMaxBackups, w.MaxBackups)

	w, ok = getWriter(Config{Output: path, MaxSizeMB: 20, MaxBackups: 4}).(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, 20, w.MaxSize)
	assert.Equal(t, 4, w.MaxBackups)
}

func TestCloseLeavesStandardStreamsOpen(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", ""} {
		t.Run(output, func(t *testing.T) {
			log := New(Config{Level: "info", Output: output, Format: "text"})
			require.NoError(t, Close(log))
			require.NoError(t, Close(log.With("component", "admin")))

			_, err := os.Stderr.WriteString("")
			assert.NoError(t, err)
			_, err = os.Stdout.WriteString("")
			assert.NoError(t, err)
		})
	}
}

func TestNoop(t *testing.T) {
	log := Noop()
	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")
	assert.NoError(t, Close(log))
}

func BenchmarkLogWithFields(b *testing.B) {
	log := Noop().With("component", "accumulator")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Info("session committed", "seconds", 42, "backend", "yaml")
	}
}
