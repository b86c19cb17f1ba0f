package boltdb

import (
	"context"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/onlinetime/pkg/storage"
)

// Counter is an int64 store whose increments are applied inside a single
// write transaction. BoltDB serializes writers, so concurrent increments
// never lose an update.
type Counter struct {
	*Store[int64]
}

var (
	_ storage.Backend[int64] = (*Counter)(nil)
	_ storage.Incrementer    = (*Counter)(nil)
)

// NewCounter returns a counter store on bucket.
func NewCounter(db *DB, bucket string) (*Counter, error) {
	s, err := NewStore[int64](db, bucket)
	if err != nil {
		return nil, err
	}
	return &Counter{Store: s}, nil
}

// Increment implements storage.Incrementer.
func (c *Counter) Increment(_ context.Context, key string, delta int64) error {
	return c.update("increment", key, func(b *bolt.Bucket) error {
		return increment(b, key, delta)
	})
}

// IncrementMany implements storage.Incrementer. The batch is one transaction.
func (c *Counter) IncrementMany(_ context.Context, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	return c.update("increment_many", "", func(b *bolt.Bucket) error {
		for k, d := range deltas {
			if err := increment(b, k, d); err != nil {
				return err
			}
		}
		return nil
	})
}

func increment(b *bolt.Bucket, key string, delta int64) error {
	data := b.Get([]byte(key))
	if data == nil {
		return put(b, key, storage.InitialValue(delta))
	}
	var current int64
	if err := unmarshal(data, &current); err != nil {
		return err
	}
	return put(b, key, current+delta)
}
