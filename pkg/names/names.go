// Package names maintains the bidirectional index between identities and
// their current display names.
//
// A name belongs to at most one identity and an identity holds at most one
// name. Binding a name to a new identity clears it from the previous owner.
package names

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/0xmhha/onlinetime/pkg/identity"
	"github.com/0xmhha/onlinetime/pkg/storage"
)

// Store is the name index over a backend mapping name to identity key.
type Store struct {
	backend storage.Backend[string]
	binder  storage.NameBinder
	reverse storage.ReverseLookup

	// mu serializes check-and-write updates for backends without a
	// NameBinder.
	mu sync.Mutex
}

// New wraps backend. The Store owns backend and closes it in Close.
func New(backend storage.Backend[string]) *Store {
	s := &Store{backend: backend}
	if b, ok := backend.(storage.NameBinder); ok {
		s.binder = b
	}
	if r, ok := backend.(storage.ReverseLookup); ok {
		s.reverse = r
	}
	return s
}

// GetID returns the identity currently holding name.
func (s *Store) GetID(ctx context.Context, name string) (uuid.UUID, bool, error) {
	key, ok, err := s.backend.Get(ctx, name)
	if err != nil || !ok {
		return uuid.Nil, false, err
	}
	id, err := identity.FromKey(key)
	if err != nil {
		return uuid.Nil, false, storage.Wrap("decode", name, err)
	}
	return id, true, nil
}

// GetName returns the name currently held by id.
func (s *Store) GetName(ctx context.Context, id uuid.UUID) (string, bool, error) {
	key := identity.Key(id)
	if s.reverse != nil {
		return s.reverse.KeyFor(ctx, key)
	}

	all, err := s.backend.All(ctx)
	if err != nil {
		return "", false, err
	}
	held := namesOf(all, key)
	if len(held) == 0 {
		return "", false, nil
	}
	return held[0], true, nil
}

// SetEntry binds name to id, clearing it from any previous owner and
// dropping any other name id held.
func (s *Store) SetEntry(ctx context.Context, id uuid.UUID, name string) error {
	return s.SetEntries(ctx, map[uuid.UUID]string{id: name})
}

// SetEntries applies SetEntry for every pair. A batch naming the same name
// twice is rejected before anything is written. Entries are applied
// independently and a failure may leave the batch partially applied.
func (s *Store) SetEntries(ctx context.Context, entries map[uuid.UUID]string) error {
	byName := make(map[string]string, len(entries))
	for id, name := range entries {
		if name == "" {
			return fmt.Errorf("%w: %s", ErrEmptyName, id)
		}
		if _, dup := byName[name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		byName[name] = identity.Key(id)
	}
	if len(byName) == 0 {
		return nil
	}

	if s.binder != nil {
		for name, key := range byName {
			if err := s.binder.Bind(ctx, name, key); err != nil {
				return err
			}
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.backend.All(ctx)
	if err != nil {
		return err
	}

	var stale []string
	for name, key := range byName {
		for _, held := range namesOf(all, key) {
			if _, rebound := byName[held]; !rebound && held != name {
				stale = append(stale, held)
			}
		}
	}

	// The put replaces the previous owner of each name.
	if err := s.backend.PutMany(ctx, byName); err != nil {
		return err
	}
	for _, name := range stale {
		if err := s.backend.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// All returns every binding from name to identity.
func (s *Store) All(ctx context.Context) (map[string]uuid.UUID, error) {
	raw, err := s.backend.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]uuid.UUID, len(raw))
	for name, key := range raw {
		id, err := identity.FromKey(key)
		if err != nil {
			return nil, storage.Wrap("decode", name, err)
		}
		out[name] = id
	}
	return out, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// namesOf returns the names mapped to key in sorted order.
func namesOf(all map[string]string, key string) []string {
	var out []string
	for name, k := range all {
		if canonical(k) == key {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// canonical normalizes hand-edited keys such as undashed or upper-case ids.
func canonical(key string) string {
	id, err := identity.FromKey(key)
	if err != nil {
		return key
	}
	return identity.Key(id)
}
