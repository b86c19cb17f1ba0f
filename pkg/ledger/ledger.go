// Package ledger is the durable map from identity to accumulated seconds.
//
// Adds go through the backend's atomic increment when it has one. Otherwise
// the store reads, adds and writes back while holding its own lock, which
// keeps concurrent adders in this process from losing updates; the backend
// must then not be shared with other writers.
package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/0xmhha/onlinetime/pkg/identity"
	"github.com/0xmhha/onlinetime/pkg/storage"
)

// Store records accumulated seconds per identity.
type Store struct {
	backend storage.Backend[int64]
	inc     storage.Incrementer

	// mu serializes read-modify-write adds when the backend has no
	// Incrementer.
	mu sync.Mutex
}

// New wraps backend. The Store owns backend and closes it in Close.
func New(backend storage.Backend[int64]) *Store {
	s := &Store{backend: backend}
	if inc, ok := backend.(storage.Incrementer); ok {
		s.inc = inc
	}
	return s
}

// Get returns the recorded seconds for id and whether an entry exists.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (int64, bool, error) {
	return s.backend.Get(ctx, identity.Key(id))
}

// GetMany returns the recorded seconds for ids that have an entry.
func (s *Store) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = identity.Key(id)
	}
	raw, err := s.backend.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	return fromKeys(raw)
}

// All returns every recorded entry.
func (s *Store) All(ctx context.Context) (map[uuid.UUID]int64, error) {
	raw, err := s.backend.All(ctx)
	if err != nil {
		return nil, err
	}
	return fromKeys(raw)
}

// Add adds delta (which may be negative) to id's entry. A missing entry is
// created with storage.InitialValue(delta).
func (s *Store) Add(ctx context.Context, id uuid.UUID, delta int64) error {
	key := identity.Key(id)
	if s.inc != nil {
		return s.inc.Increment(ctx, key, delta)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return s.backend.Put(ctx, key, storage.InitialValue(delta))
	}
	return s.backend.Put(ctx, key, current+delta)
}

// AddMany applies every delta. Zero deltas are skipped and an empty batch
// does no I/O. A failure may leave the batch partially applied.
func (s *Store) AddMany(ctx context.Context, deltas map[uuid.UUID]int64) error {
	keyed := make(map[string]int64, len(deltas))
	for id, d := range deltas {
		if d != 0 {
			keyed[identity.Key(id)] = d
		}
	}
	if len(keyed) == 0 {
		return nil
	}
	if s.inc != nil {
		return s.inc.IncrementMany(ctx, keyed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	current, err := s.backend.GetMany(ctx, keys)
	if err != nil {
		return err
	}
	for k, d := range keyed {
		if v, ok := current[k]; ok {
			keyed[k] = v + d
		} else {
			keyed[k] = storage.InitialValue(d)
		}
	}
	return s.backend.PutMany(ctx, keyed)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func fromKeys(raw map[string]int64) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(raw))
	for k, v := range raw {
		id, err := identity.FromKey(k)
		if err != nil {
			return nil, storage.Wrap("decode", k, err)
		}
		out[id] = v
	}
	return out, nil
}
