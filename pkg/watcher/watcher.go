package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/onlinetime/pkg/logger"
)

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config

	events chan Event
	errors chan error

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}
	done     chan struct{}
	files    map[string]bool

	// Debouncing state.
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex
}

// New creates a new file watcher.
func New(cfg Config, log logger.Logger) (Watcher, error) {
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 16
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &watcher{
		fsw:            fsw,
		logger:         log,
		config:         cfg,
		events:         make(chan Event, cfg.BufferSize),
		errors:         make(chan error, 10),
		files:          make(map[string]bool),
		debounceTimers: make(map[string]*time.Timer),
	}, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context, files []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.running {
		return ErrAlreadyStarted
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", f, err)
		}
		dir := filepath.Dir(abs)
		if _, err := os.Stat(dir); err != nil {
			w.logger.Warn("watch directory does not exist, skipping", "path", dir)
			continue
		}
		w.files[abs] = true
		dirs[dir] = true
	}
	if len(dirs) == 0 {
		return ErrInvalidPath
	}

	for dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to add path %s: %w", dir, err)
		}
	}

	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	go w.processEvents(ctx, w.stopChan, w.done)

	w.logger.Debug("watcher started", "files", len(w.files))
	return nil
}

// Stop implements Watcher.Stop.
func (w *watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if !w.running {
		w.mu.Unlock()
		return ErrNotStarted
	}
	done := w.halt()
	w.mu.Unlock()

	<-done
	return nil
}

// halt signals the processing loop. Callers hold w.mu.
func (w *watcher) halt() chan struct{} {
	close(w.stopChan)
	w.running = false
	return w.done
}

// Events implements Watcher.Events.
func (w *watcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	var done chan struct{}
	if w.running {
		done = w.halt()
	}
	w.mu.Unlock()

	if done != nil {
		<-done
	}

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = nil
	w.debounceMu.Unlock()

	w.mu.Lock()
	w.closed = true
	close(w.events)
	close(w.errors)
	w.mu.Unlock()

	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// processEvents handles events from fsnotify.
func (w *watcher) processEvents(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
			w.send(func() bool {
				select {
				case w.errors <- err:
					return true
				default:
					return false
				}
			})
		}
	}
}

// handleEvent filters an fsnotify event down to the watched files.
func (w *watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	w.mu.RLock()
	watched := w.files[path]
	w.mu.RUnlock()
	if !watched {
		return
	}

	var op Op
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		op = OpCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		op = OpWrite
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpRemove
	default:
		return
	}

	w.debounceEvent(Event{Path: path, Op: op})
}

// debounceEvent emits event after the debounce interval unless another event
// for the same path arrives first.
func (w *watcher) debounceEvent(event Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimers == nil {
		return
	}
	if timer, exists := w.debounceTimers[event.Path]; exists {
		timer.Stop()
	}

	w.debounceTimers[event.Path] = time.AfterFunc(w.config.DebounceInterval, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, event.Path)
		w.debounceMu.Unlock()

		event.Timestamp = time.Now()
		if !w.send(func() bool {
			select {
			case w.events <- event:
				return true
			default:
				return false
			}
		}) {
			w.logger.Warn("event channel full, dropping event", "path", event.Path)
		}
	})
}

// send runs a non-blocking channel send unless the watcher is closed.
func (w *watcher) send(try func() bool) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return true
	}
	return try()
}
