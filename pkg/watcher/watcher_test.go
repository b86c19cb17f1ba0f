package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/0xmhha/onlinetime/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestWatcher(t *testing.T) Watcher {
	t.Helper()
	w, err := New(Config{DebounceInterval: 20 * time.Millisecond}, logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func waitEvent(t *testing.T, w Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "ledger.yml")
	require.NoError(t, os.WriteFile(target, []byte("a: 1\n"), 0600))

	w := newTestWatcher(t)
	require.NoError(t, w.Start(context.Background(), []string{target}))

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yml"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(target, []byte("a: 2\n"), 0600))

	ev := waitEvent(t, w)
	assert.Equal(t, target, ev.Path)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestWatchFileReplacedByRename(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "names.yml")
	require.NoError(t, os.WriteFile(target, []byte("a: b\n"), 0600))

	w := newTestWatcher(t)
	require.NoError(t, w.Start(context.Background(), []string{target}))

	tmp := filepath.Join(dir, "names.yml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("a: c\n"), 0600))
	require.NoError(t, os.Rename(tmp, target))

	ev := waitEvent(t, w)
	assert.Equal(t, target, ev.Path)
	assert.Equal(t, OpCreate, ev.Op)
}

func TestStartErrors(t *testing.T) {
	w := newTestWatcher(t)
	err := w.Start(context.Background(), []string{filepath.Join(t.TempDir(), "missing", "ledger.yml")})
	assert.ErrorIs(t, err, ErrInvalidPath)

	target := filepath.Join(t.TempDir(), "ledger.yml")
	require.NoError(t, w.Start(context.Background(), []string{target}))
	assert.ErrorIs(t, w.Start(context.Background(), []string{target}), ErrAlreadyStarted)

	require.NoError(t, w.Stop())
	assert.ErrorIs(t, w.Stop(), ErrNotStarted)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Start(context.Background(), []string{target}), ErrWatcherClosed)
	assert.ErrorIs(t, w.Stop(), ErrWatcherClosed)

	_, open := <-w.Events()
	assert.False(t, open)
}

func TestStopOnContextCancel(t *testing.T) {
	w := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, []string{filepath.Join(t.TempDir(), "ledger.yml")}))
	cancel()
	require.NoError(t, w.Stop())
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "WRITE", OpWrite.String())
	assert.Equal(t, "REMOVE", OpRemove.String())
	assert.Equal(t, "UNKNOWN", Op(0).String())
}
