// Package storage defines the key-value contract shared by every persistence
// backend.
//
// A Backend maps string keys to values of one type. Backends are safe for
// concurrent use. Once Close returns, every operation fails with an error
// matching ErrClosed.
//
// Backends may additionally implement the capability interfaces in this
// package (Incrementer, NameBinder, ReverseLookup) when they can perform the
// corresponding operation atomically on their own. Callers type-assert for
// them and fall back to the plain contract otherwise.
package storage

import "context"

// Backend is a keyed store of values of type V.
type Backend[V any] interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (V, bool, error)

	// GetMany returns the values for keys. Absent keys are omitted.
	GetMany(ctx context.Context, keys []string) (map[string]V, error)

	// Put stores value under key.
	Put(ctx context.Context, key string, value V) error

	// PutMany stores every entry. It may be partially applied on failure.
	PutMany(ctx context.Context, entries map[string]V) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// All returns a snapshot of every entry.
	All(ctx context.Context) (map[string]V, error)

	// Close releases the backend. It is safe to call more than once.
	Close() error
}

// Incrementer is implemented by counter backends that can add to a stored
// value in a single atomic step. A missing key is created with
// InitialValue(delta).
type Incrementer interface {
	Increment(ctx context.Context, key string, delta int64) error
	IncrementMany(ctx context.Context, deltas map[string]int64) error
}

// InitialValue is the value of a counter created by adding delta to a missing
// key. A new counter never starts below zero; existing counters take the
// unchecked sum.
func InitialValue(delta int64) int64 {
	return max(delta, 0)
}

// NameBinder is implemented by name backends that can move a name to a new
// owner atomically, clearing any previous owner of the name.
type NameBinder interface {
	Bind(ctx context.Context, name, key string) error
}

// ReverseLookup is implemented by backends that can find the key currently
// mapped to a value without a full scan.
type ReverseLookup interface {
	KeyFor(ctx context.Context, value string) (string, bool, error)
}
