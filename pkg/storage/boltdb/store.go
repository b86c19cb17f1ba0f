package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/onlinetime/pkg/storage"
)

// Store implements storage.Backend on one bucket.
type Store[V any] struct {
	db     *DB
	bucket []byte

	mu     sync.RWMutex
	closed bool
}

var _ storage.Backend[string] = (*Store[string])(nil)

// NewStore returns a store on bucket, creating the bucket if needed.
func NewStore[V any](db *DB, bucket string) (*Store[V], error) {
	if bucket == "" {
		return nil, ErrEmptyBucketName
	}
	if err := db.acquire(); err != nil {
		return nil, err
	}

	name := []byte(bucket)
	if err := db.bolt.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(name)
		return createErr
	}); err != nil {
		_ = db.release()
		return nil, storage.Wrap("open", bucket, fmt.Errorf("failed to create bucket: %w", err))
	}

	return &Store[V]{db: db, bucket: name}, nil
}

// Get implements storage.Backend.Get.
func (s *Store[V]) Get(_ context.Context, key string) (V, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value V
	if s.closed {
		return value, false, storage.Closed("get")
	}

	var found bool
	err := s.db.bolt.View(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return unmarshal(data, &value)
	})
	if err != nil {
		var zero V
		return zero, false, storage.Wrap("get", key, err)
	}
	return value, found, nil
}

// GetMany implements storage.Backend.GetMany.
func (s *Store[V]) GetMany(_ context.Context, keys []string) (map[string]V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.Closed("get_many")
	}

	out := make(map[string]V, len(keys))
	err := s.db.bolt.View(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}
		for _, k := range keys {
			data := b.Get([]byte(k))
			if data == nil {
				continue
			}
			var v V
			if err := unmarshal(data, &v); err != nil {
				return err
			}
			out[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, storage.Wrap("get_many", "", err)
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

	out := make(map[string]V)
	err := s.db.bolt.View(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, data []byte) error {
			var v V
			if err := unmarshal(data, &v); err != nil {
				return err
			}
			out[string(k)] = v
			return nil
		})
	})
	if err != nil {
		return nil, storage.Wrap("get_all", "", err)
	}
	return out, nil
}

// Put implements storage.Backend.Put.
func (s *Store[V]) Put(_ context.Context, key string, value V) error {
	return s.update("put", key, func(b *bolt.Bucket) error {
		return put(b, key, value)
	})
}

// PutMany implements storage.Backend.PutMany. All entries are written in
// one transaction.
func (s *Store[V]) PutMany(_ context.Context, entries map[string]V) error {
	if len(entries) == 0 {
		return nil
	}
	return s.update("put_many", "", func(b *bolt.Bucket) error {
		for k, v := range entries {
			if err := put(b, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete implements storage.Backend.Delete.
func (s *Store[V]) Delete(_ context.Context, key string) error {
	return s.update("delete", key, func(b *bolt.Bucket) error {
		return b.Delete([]byte(key))
	})
}

// Close implements storage.Backend.Close.
func (s *Store[V]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.release()
}

// update runs fn in a write transaction on the store's bucket.
func (s *Store[V]) update(op, key string, fn func(b *bolt.Bucket) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.Closed(op)
	}
	err := s.db.bolt.Update(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}
		return fn(b)
	})
	return storage.Wrap(op, key, err)
}

func (s *Store[V]) bucketOf(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket(s.bucket)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, s.bucket)
	}
	return b, nil
}

func put[V any](b *bolt.Bucket, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := b.Put([]byte(key), data); err != nil {
		return fmt.Errorf("failed to store value: %w", err)
	}
	return nil
}

func unmarshal[V any](data []byte, v *V) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}
