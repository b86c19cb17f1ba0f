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

// Names is the name column viewed as a storage.Backend from name to identity
// id. Unbinding a name clears the column; the identity's seconds are kept.
type Names struct {
	view
}

var (
	_ storage.Backend[string] = (*Names)(nil)
	_ storage.NameBinder      = (*Names)(nil)
	_ storage.ReverseLookup   = (*Names)(nil)
)

type nameRow struct {
	Name string `db:"name"`
	UUID []byte `db:"uuid"`
}

// Get implements storage.Backend.Get.
func (n *Names) Get(ctx context.Context, name string) (string, bool, error) {
	var key string
	err := n.use("get", name, func(d *DB) error {
		var raw []byte
		err := d.stmts.nameGet.GetContext(ctx, &raw, name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil
		case err != nil:
			return err
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return fmt.Errorf("failed to decode identity id: %w", err)
		}
		key = identity.Key(id)
		return nil
	})
	return key, key != "", err
}

// GetMany implements storage.Backend.GetMany.
func (n *Names) GetMany(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	if len(names) == 0 {
		return out, n.use("get_many", "", func(*DB) error { return nil })
	}
	err := n.use("get_many", "", func(d *DB) error {
		var rows []nameRow
		if err := d.db.SelectContext(ctx, &rows,
			`SELECT name, uuid FROM online_time WHERE name = ANY($1)`, pq.Array(names)); err != nil {
			return err
		}
		return collectNames(rows, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// All implements storage.Backend.All.
func (n *Names) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	err := n.use("get_all", "", func(d *DB) error {
		var rows []nameRow
		if err := d.db.SelectContext(ctx, &rows,
			`SELECT name, uuid FROM online_time WHERE name IS NOT NULL`); err != nil {
			return err
		}
		return collectNames(rows, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put implements storage.Backend.Put as Bind.
func (n *Names) Put(ctx context.Context, name, key string) error {
	return n.Bind(ctx, name, key)
}

// PutMany implements storage.Backend.PutMany. The batch is one transaction.
func (n *Names) PutMany(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	return n.use("put_many", "", func(d *DB) error {
		return d.inTx(ctx, func(tx *txStmts) error {
			for name, key := range entries {
				if err := tx.bind(ctx, name, key); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Delete implements storage.Backend.Delete.
func (n *Names) Delete(ctx context.Context, name string) error {
	return n.use("delete", name, func(d *DB) error {
		_, err := d.stmts.nameDelete.ExecContext(ctx, name)
		return err
	})
}

// Bind implements storage.NameBinder. Clearing the previous owner and binding
// the new one happen in one transaction.
func (n *Names) Bind(ctx context.Context, name, key string) error {
	return n.use("bind", name, func(d *DB) error {
		return d.inTx(ctx, func(tx *txStmts) error {
			return tx.bind(ctx, name, key)
		})
	})
}

// KeyFor implements storage.ReverseLookup: the name bound to an identity.
func (n *Names) KeyFor(ctx context.Context, key string) (string, bool, error) {
	var name string
	err := n.use("name_of", key, func(d *DB) error {
		id, err := keyBytes(key)
		if err != nil {
			return err
		}
		err = d.stmts.nameOf.GetContext(ctx, &name, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	return name, name != "", err
}

func collectNames(rows []nameRow, out map[string]string) error {
	for _, r := range rows {
		id, err := uuid.FromBytes(r.UUID)
		if err != nil {
			return fmt.Errorf("failed to decode identity id: %w", err)
		}
		out[r.Name] = identity.Key(id)
	}
	return nil
}
