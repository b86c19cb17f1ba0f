// Package watcher reports changes to individual files.
//
// Files replaced through a rename (as atomic writers do) keep being tracked
// because the watch is placed on the parent directory and events are
// filtered by file name. Bursts of events for one file are coalesced.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{
//	    DebounceInterval: 100 * time.Millisecond,
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, []string{"/var/lib/onlinetime/ledger.yml"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range w.Events() {
//	    fmt.Printf("File %s: %s\n", event.Path, event.Op)
//	}
package watcher

import (
	"context"
	"time"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota // File created or renamed into place
	OpWrite                 // File modified
	OpRemove                // File deleted or renamed away
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Event represents a change to a watched file.
type Event struct {
	// Path is the cleaned absolute path of the file.
	Path string

	// Op is the last operation seen in the debounce window.
	Op Op

	// Timestamp is when the event was emitted.
	Timestamp time.Time
}

// Watcher provides file change monitoring.
type Watcher interface {
	// Start begins watching files. It returns once the watches are in place;
	// events are delivered until ctx is cancelled, Stop, or Close.
	Start(ctx context.Context, files []string) error

	// Stop halts event processing and waits for it to finish.
	Stop() error

	// Events returns the debounced event channel. It is closed by Close.
	Events() <-chan Event

	// Errors returns non-fatal watcher errors. It is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// DebounceInterval is the quiet period before an event is emitted.
	// Default: 100ms.
	DebounceInterval time.Duration

	// BufferSize is the capacity of the event channel. Events that do not
	// fit are dropped with a warning. Default: 16.
	BufferSize int
}
