// Package yamlfile implements storage.Backend over a single YAML document.
//
// The document's top level is a mapping from key to value. It is held in
// memory and rewritten as a whole through a temporary file and rename, so a
// crash never leaves a truncated document behind. A lock file next to the
// document keeps a second process from opening it.
//
// Write policy:
//
//   - FlushInterval == 0 (default): write-through. Put, PutMany and Delete
//     return only after the document is on disk. Nothing acknowledged is lost
//     on a crash.
//   - FlushInterval > 0: writes mark the document dirty and a background loop
//     persists it every FlushInterval. Close persists any remaining change.
//     Up to one interval of acknowledged writes is lost on a crash.
//
// When a write-through persist fails the change stays in memory, the
// document stays dirty and the error is returned; the next successful
// persist writes it out.
//
// With WatchExternal set, edits made to the file by other tools are loaded
// back in. A reload is skipped while the document has unsaved changes.
package yamlfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/0xmhha/onlinetime/pkg/logger"
	"github.com/0xmhha/onlinetime/pkg/storage"
	"github.com/0xmhha/onlinetime/pkg/watcher"
)

// Options configures a Store.
type Options struct {
	// FlushInterval selects batched writes when > 0.
	FlushInterval time.Duration

	// WatchExternal reloads the document after out-of-process edits.
	WatchExternal bool

	// Clock drives the batched flush loop. Default: real clock.
	Clock quartz.Clock

	// Logger receives flush and reload messages. Default: no-op.
	Logger logger.Logger
}

// Store is a YAML document backed storage.Backend.
type Store[V any] struct {
	path   string
	opts   Options
	logger logger.Logger

	mu          sync.RWMutex
	data        map[string]V
	dirty       bool
	closed      bool
	lastWritten []byte

	lock    *flock.Flock
	watcher watcher.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ storage.Backend[string] = (*Store[string])(nil)

// Open loads the document at path, creating its directory if needed. A
// missing document is treated as empty and created on the first write.
func Open[V any](path string, opts Options) (*Store[V], error) {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, storage.Wrap("open", path, fmt.Errorf("failed to create data directory: %w", err))
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, storage.Wrap("open", path, fmt.Errorf("failed to lock document: %w", err))
	}
	if !locked {
		return nil, storage.Wrap("open", path, ErrLocked)
	}

	s := &Store[V]{
		path:   path,
		opts:   opts,
		logger: opts.Logger.With("document", filepath.Base(path)),
		lock:   lock,
	}

	raw, err := os.ReadFile(path) // nolint:gosec
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.data = make(map[string]V)
	case err != nil:
		_ = lock.Unlock()
		return nil, storage.Wrap("open", path, fmt.Errorf("failed to read document: %w", err))
	default:
		data, decodeErr := decode[V](raw)
		if decodeErr != nil {
			_ = lock.Unlock()
			return nil, storage.Wrap("open", path, decodeErr)
		}
		s.data = data
		s.lastWritten = raw
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if opts.FlushInterval > 0 {
		s.wg.Add(1)
		go s.flushLoop(ctx)
	}

	if opts.WatchExternal {
		if err := s.startWatch(ctx); err != nil {
			cancel()
			s.wg.Wait()
			_ = lock.Unlock()
			return nil, storage.Wrap("open", path, err)
		}
	}

	s.logger.Debug("document opened", "entries", len(s.data), "flush_interval", opts.FlushInterval)
	return s, nil
}

// Path returns the document path.
func (s *Store[V]) Path() string {
	return s.path
}

// Get implements storage.Backend.Get.
func (s *Store[V]) Get(_ context.Context, key string) (V, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero V
	if s.closed {
		return zero, false, storage.Closed("get")
	}
	v, ok := s.data[key]
	return v, ok, nil
}

// GetMany implements storage.Backend.GetMany.
func (s *Store[V]) GetMany(_ context.Context, keys []string) (map[string]V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.Closed("get_many")
	}
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// All implements storage.Backend.All.
func (s *Store[V]) All(_ context.Context) (map[string]V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.Closed("get_all")
	}
	return maps.Clone(s.data), nil
}

// Put implements storage.Backend.Put.
func (s *Store[V]) Put(_ context.Context, key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.Closed("put")
	}
	s.data[key] = value
	return storage.Wrap("put", key, s.written())
}

// PutMany implements storage.Backend.PutMany.
func (s *Store[V]) PutMany(_ context.Context, entries map[string]V) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.Closed("put_many")
	}
	maps.Copy(s.data, entries)
	return storage.Wrap("put_many", "", s.written())
}

// Delete implements storage.Backend.Delete.
func (s *Store[V]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.Closed("delete")
	}
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return storage.Wrap("delete", key, s.written())
}

// Flush persists unsaved changes. It is a no-op for a clean document.
func (s *Store[V]) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.Closed("flush")
	}
	return storage.Wrap("flush", "", s.persistIfDirty())
}

// Close persists unsaved changes, stops background work and releases the
// document lock. Later calls return nil.
func (s *Store[V]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var result *multierror.Error
	if err := s.persistIfDirty(); err != nil {
		result = multierror.Append(result, storage.Wrap("close", "", err))
	}
	s.data = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := s.lock.Unlock(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to release document lock: %w", err))
	}

	return result.ErrorOrNil()
}

// written records a change and applies the write policy. Callers hold s.mu.
func (s *Store[V]) written() error {
	s.dirty = true
	if s.opts.FlushInterval > 0 {
		return nil
	}
	return s.persist()
}

// persistIfDirty writes the document when it has unsaved changes. Callers
// hold s.mu.
func (s *Store[V]) persistIfDirty() error {
	if !s.dirty {
		return nil
	}
	return s.persist()
}

// persist writes the whole document. Callers hold s.mu.
func (s *Store[V]) persist() error {
	out, err := yaml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(out)); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	s.lastWritten = out
	s.dirty = false
	return nil
}

func (s *Store[V]) flushLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.opts.Clock.NewTicker(s.opts.FlushInterval, "yamlfile", "flush")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := s.Flush(); err != nil && !storage.IsClosed(err) {
			s.logger.Error("failed to flush document", "error", err)
		}
	}
}

func (s *Store[V]) startWatch(ctx context.Context) error {
	w, err := watcher.New(watcher.Config{}, s.logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx, []string{s.path}); err != nil {
		_ = w.Close()
		return err
	}
	s.watcher = w

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events():
				if !ok {
					return
				}
				if ev.Op == watcher.OpRemove {
					s.logger.Warn("document removed externally; keeping in-memory copy")
					continue
				}
				if err := s.reload(); err != nil {
					s.logger.Error("failed to reload document", "error", err)
				}
			}
		}
	}()
	return nil
}

// reload replaces the in-memory document with the file contents unless the
// file holds what this store wrote last.
func (s *Store[V]) reload() error {
	raw, err := os.ReadFile(s.path) // nolint:gosec
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || bytes.Equal(raw, s.lastWritten) {
		return nil
	}
	if s.dirty {
		s.logger.Warn("document changed externally while unsaved changes are pending; skipping reload")
		return nil
	}
	data, err := decode[V](raw)
	if err != nil {
		return err
	}
	s.data = data
	s.lastWritten = raw
	s.logger.Info("document reloaded", "entries", len(data))
	return nil
}

func decode[V any](raw []byte) (map[string]V, error) {
	data := make(map[string]V)
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if data == nil {
		data = make(map[string]V)
	}
	return data, nil
}
