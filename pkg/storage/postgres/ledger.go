package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/0xmhha/onlinetime/pkg/identity"
	"github.com/0xmhha/onlinetime/pkg/storage"
)

// Ledger is the seconds column viewed as a storage.Backend keyed by identity
// id.
type Ledger struct {
	view
}

var (
	_ storage.Backend[int64] = (*Ledger)(nil)
	_ storage.Incrementer    = (*Ledger)(nil)
)

type secondsRow struct {
	UUID    []byte `db:"uuid"`
	Seconds int64  `db:"seconds"`
}

// Get implements storage.Backend.Get.
func (l *Ledger) Get(ctx context.Context, key string) (int64, bool, error) {
	var (
		seconds int64
		found   bool
	)
	err := l.use("get", key, func(d *DB) error {
		id, err := keyBytes(key)
		if err != nil {
			return err
		}
		err = d.stmts.ledgerGet.GetContext(ctx, &seconds, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil
		case err != nil:
			return err
		}
		found = true
		return nil
	})
	return seconds, found, err
}

// GetMany implements storage.Backend.GetMany.
func (l *Ledger) GetMany(ctx context.Context, keys []string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return out, l.use("get_many", "", func(*DB) error { return nil })
	}
	err := l.use("get_many", "", func(d *DB) error {
		ids := make(pq.ByteaArray, 0, len(keys))
		for _, k := range keys {
			id, err := keyBytes(k)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		var rows []secondsRow
		if err := d.db.SelectContext(ctx, &rows,
			`SELECT uuid, seconds FROM online_time WHERE uuid = ANY($1)`, ids); err != nil {
			return err
		}
		return collectSeconds(rows, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// All implements storage.Backend.All.
func (l *Ledger) All(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	err := l.use("get_all", "", func(d *DB) error {
		var rows []secondsRow
		if err := d.db.SelectContext(ctx, &rows, `SELECT uuid, seconds FROM online_time`); err != nil {
			return err
		}
		return collectSeconds(rows, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put implements storage.Backend.Put.
func (l *Ledger) Put(ctx context.Context, key string, value int64) error {
	return l.use("put", key, func(d *DB) error {
		id, err := keyBytes(key)
		if err != nil {
			return err
		}
		_, err = d.stmts.ledgerPut.ExecContext(ctx, id, value)
		return err
	})
}

// PutMany implements storage.Backend.PutMany. The batch is one transaction.
func (l *Ledger) PutMany(ctx context.Context, entries map[string]int64) error {
	if len(entries) == 0 {
		return nil
	}
	return l.use("put_many", "", func(d *DB) error {
		return d.inTx(ctx, func(tx *txStmts) error {
			for k, v := range entries {
				id, err := keyBytes(k)
				if err != nil {
					return err
				}
				if _, err := tx.ledgerPut.ExecContext(ctx, id, v); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Delete implements storage.Backend.Delete. The identity's row is removed,
// name included.
func (l *Ledger) Delete(ctx context.Context, key string) error {
	return l.use("delete", key, func(d *DB) error {
		id, err := keyBytes(key)
		if err != nil {
			return err
		}
		_, err = d.stmts.ledgerDelete.ExecContext(ctx, id)
		return err
	})
}

// Increment implements storage.Incrementer. A new row starts at
// max(0, delta).
func (l *Ledger) Increment(ctx context.Context, key string, delta int64) error {
	return l.use("increment", key, func(d *DB) error {
		id, err := keyBytes(key)
		if err != nil {
			return err
		}
		_, err = d.stmts.ledgerIncrement.ExecContext(ctx, id, delta)
		return err
	})
}

// IncrementMany implements storage.Incrementer. The batch is one transaction.
func (l *Ledger) IncrementMany(ctx context.Context, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	return l.use("increment_many", "", func(d *DB) error {
		return d.inTx(ctx, func(tx *txStmts) error {
			for k, delta := range deltas {
				id, err := keyBytes(k)
				if err != nil {
					return err
				}
				if _, err := tx.ledgerIncrement.ExecContext(ctx, id, delta); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func collectSeconds(rows []secondsRow, out map[string]int64) error {
	for _, r := range rows {
		id, err := uuid.FromBytes(r.UUID)
		if err != nil {
			return fmt.Errorf("failed to decode identity id: %w", err)
		}
		out[identity.Key(id)] = r.Seconds
	}
	return nil
}

func keyBytes(key string) ([]byte, error) {
	id, err := identity.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return id[:], nil
}
