// Package memory provides an in-memory storage.Backend.
//
// Useful for testing or when persistence is not needed.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/0xmhha/onlinetime/pkg/storage"
)

// Store implements storage.Backend using an in-memory map.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
	closed  bool
}

var _ storage.Backend[int64] = (*Store[int64])(nil)

// New creates an empty in-memory store.
func New[V any]() *Store[V] {
	return &Store[V]{
		entries: make(map[string]V),
	}
}

// Get implements storage.Backend.Get.
func (s *Store[V]) Get(_ context.Context, key string) (V, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero V
	if s.closed {
		return zero, false, storage.Closed("get")
	}
	v, ok := s.entries[key]
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
		if v, ok := s.entries[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Put implements storage.Backend.Put.
func (s *Store[V]) Put(_ context.Context, key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.Closed("put")
	}
	s.entries[key] = value
	return nil
}

// PutMany implements storage.Backend.PutMany.
func (s *Store[V]) PutMany(_ context.Context, entries map[string]V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.Closed("put_many")
	}
	maps.Copy(s.entries, entries)
	return nil
}

// Delete implements storage.Backend.Delete.
func (s *Store[V]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.Closed("delete")
	}
	delete(s.entries, key)
	return nil
}

// All implements storage.Backend.All.
func (s *Store[V]) All(_ context.Context) (map[string]V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.Closed("get_all")
	}
	return maps.Clone(s.entries), nil
}

// Close implements storage.Backend.Close.
func (s *Store[V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	return nil
}
