package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/onlinetime/pkg/admin"
	"github.com/0xmhha/onlinetime/pkg/config"
	"github.com/0xmhha/onlinetime/pkg/lang"
	"github.com/0xmhha/onlinetime/pkg/logger"
	"github.com/0xmhha/onlinetime/pkg/storage"
)

const (
	aliceID = "069a79f4-44e9-4726-a5be-fca90e38aaf5"
	bobID   = "61699b2e-d327-4a01-9f1e-0ea8c3f06bc6"
)

// setupEnv isolates the configuration and selects backend in a temp dir.
func setupEnv(t *testing.T, backend string) string {
	t.Helper()
	home := t.TempDir()
	dataDir := filepath.Join(home, "data")
	t.Setenv("HOME", home)
	t.Setenv("ONLINETIME_CONFIG", "")
	t.Setenv("ONLINETIME_STORAGE", backend)
	t.Setenv("ONLINETIME_DATA_DIR", dataDir)
	t.Setenv("ONLINETIME_DATABASE_URL", "")
	t.Setenv("ONLINETIME_LOG_LEVEL", "error")
	t.Setenv("ONLINETIME_METRICS_ADDR", "")
	return dataDir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestRunBasics(t *testing.T) {
	setupEnv(t, config.BackendMemory)

	out, err := execute(t, "", "-version")
	require.NoError(t, err)
	assert.Equal(t, "onlinetime dev\n", out)

	out, err = execute(t, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")

	_, err = execute(t, "", "frobnicate")
	assert.ErrorContains(t, err, "unknown command")

	_, err = execute(t, "", "show")
	assert.ErrorContains(t, err, "usage")

	_, err = execute(t, "", "admin", "set", "alice")
	assert.ErrorContains(t, err, "usage")

	_, err = execute(t, "", "admin", "promote", "alice")
	assert.ErrorContains(t, err, "unknown admin subcommand")

	out, err = execute(t, "", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Subcommands:")
}

func TestTrackAndAdminCommands(t *testing.T) {
	for _, backend := range []string{config.BackendYAML, config.BackendBolt} {
		t.Run(backend, func(t *testing.T) {
			dataDir := setupEnv(t, backend)

			events := strings.Join([]string{
				"connect " + aliceID + " alice",
				"connect " + bobID + " bob",
				"not an event",
				"disconnect " + aliceID,
				"disconnect " + bobID,
			}, "\n")
			_, err := execute(t, events, "track")
			require.NoError(t, err)

			switch backend {
			case config.BackendYAML:
				assert.FileExists(t, filepath.Join(dataDir, config.TimesFile))
				assert.FileExists(t, filepath.Join(dataDir, config.NamesFile))
			case config.BackendBolt:
				assert.FileExists(t, filepath.Join(dataDir, config.BoltFile))
			}

			out, err := execute(t, "", "admin", "set", "alice", "2h")
			require.NoError(t, err)
			assert.Equal(t, "Set online time of alice to 2 hours.\n", out)

			out, err = execute(t, "", "admin", "add", "alice", "-30min")
			require.NoError(t, err)
			assert.Equal(t, "Added -30 minutes to the online time of alice.\n", out)

			out, err = execute(t, "", "show", "-format", "simple", "alice")
			require.NoError(t, err)
			assert.Equal(t, "alice: 1 hour 30 minutes (offline)\n", out)

			out, err = execute(t, "", "top", "-format", "json", "-compact")
			require.NoError(t, err)
			var top []map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(out), &top))
			require.Len(t, top, 2)
			assert.Equal(t, "alice", top[0]["name"])
			assert.Equal(t, float64(5400), top[0]["seconds"])
			assert.Equal(t, "bob", top[1]["name"])

			_, err = execute(t, "", "admin", "add", "bob", "-1h")
			assert.ErrorIs(t, err, admin.ErrNegativeTime)

			_, err = execute(t, "", "admin", "set", "bob", "whenever")
			assert.ErrorIs(t, err, admin.ErrInvalidDuration)
			assert.ErrorContains(t, err, "units:")

			out, err = execute(t, "", "admin", "reset", bobID)
			require.NoError(t, err)
			assert.Equal(t, "Reset online time of bob.\n", out)

			_, err = execute(t, "", "show", "mallory")
			assert.ErrorIs(t, err, admin.ErrUnknownIdentity)
		})
	}
}

func TestTrackRunsCommandsOnOpenSessions(t *testing.T) {
	for _, backend := range []string{config.BackendYAML, config.BackendBolt} {
		t.Run(backend, func(t *testing.T) {
			setupEnv(t, backend)

			events := strings.Join([]string{
				"connect " + aliceID + " alice",
				"set alice 1h",
				"show alice",
				"add alice whenever",
				"show mallory",
				"top 5",
				"disconnect " + aliceID,
			}, "\n")
			out, err := execute(t, events, "track")
			require.NoError(t, err)

			assert.Contains(t, out, "Set online time of alice to 1 hour.\n")
			assert.Contains(t, out, "online")
			assert.Contains(t, out, "Error: "+admin.ErrInvalidDuration.Error())
			assert.Contains(t, out, "Error: "+admin.ErrUnknownIdentity.Error()+": mallory")
			assert.Contains(t, out, "#1")

			out, err = execute(t, "", "show", "-format", "simple", "alice")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, "alice: 1 hour"), out)
			assert.Contains(t, out, "(offline)")
		})
	}
}

func TestErrorsReachStderr(t *testing.T) {
	setupEnv(t, config.BackendYAML)

	_, err := execute(t, "", "admin", "set", "nobody", "1h")
	assert.ErrorIs(t, err, admin.ErrUnknownIdentity)

	_, err = os.Stderr.WriteString("")
	assert.NoError(t, err)
}

func TestExplainHidesStorageFaults(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "onlinetime.log")
	log := logger.New(logger.Config{Level: "info", Output: logFile, Format: "text"})
	a := &app{log: log, vocab: lang.Default()}

	fault := storage.Wrap("get", "alice", errors.New("disk on fire"))
	err := explain(a, fmt.Errorf("failed to look up %q: %w", "alice", fault))
	assert.ErrorIs(t, err, errStorage)
	assert.NotContains(t, err.Error(), "disk on fire")

	err = explain(a, fmt.Errorf("%w: %q", admin.ErrInvalidDuration, "soon"))
	assert.ErrorIs(t, err, admin.ErrInvalidDuration)
	assert.ErrorContains(t, err, "units: years, months")

	require.NoError(t, logger.Close(log))
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk on fire")
}

func TestConfigCommands(t *testing.T) {
	setupEnv(t, config.BackendYAML)

	out, err := execute(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "defaults (no config file found)")
	assert.Contains(t, out, "backend: yaml")

	out, err = execute(t, "", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, config.DefaultPath())
	assert.FileExists(t, config.DefaultPath())

	_, err = execute(t, "", "config", "init")
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "", "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, config.DefaultPath()+" [found]")

	_, err = execute(t, "", "config", "bogus")
	assert.ErrorContains(t, err, "unknown config subcommand")
}

func TestConfigShowRedactsPassword(t *testing.T) {
	setupEnv(t, config.BackendPostgres)
	t.Setenv("ONLINETIME_DATABASE_URL", "postgres://tracker:hunter2@db:5432/onlinetime")

	out, err := execute(t, "", "config", "show", "-format", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "tracker:xxxxx@db:5432")
}

func TestExplicitConfigFile(t *testing.T) {
	dataDir := setupEnv(t, "")
	t.Setenv("ONLINETIME_DATA_DIR", "")

	path := filepath.Join(t.TempDir(), "onlinetime.yaml")
	content := "storage:\n  backend: bolt\n  data_dir: " + dataDir + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := execute(t, "connect "+aliceID+" alice\n", "-config", path, "track")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dataDir, config.BoltFile))
}
