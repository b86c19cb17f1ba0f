package postgres

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
)

// txStmts are the prepared statements bound to one transaction.
type txStmts struct {
	ledgerPut       *sqlx.Stmt
	ledgerIncrement *sqlx.Stmt
	nameUnset       *sqlx.Stmt
	nameBind        *sqlx.Stmt
}

// bind moves name to the identity with key.
func (t *txStmts) bind(ctx context.Context, name, key string) error {
	id, err := keyBytes(key)
	if err != nil {
		return err
	}
	if _, err := t.nameUnset.ExecContext(ctx, name, id); err != nil {
		return fmt.Errorf("failed to unset previous owner: %w", err)
	}
	if _, err := t.nameBind.ExecContext(ctx, id, name); err != nil {
		return fmt.Errorf("failed to bind name: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func (d *DB) inTx(ctx context.Context, fn func(tx *txStmts) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmts := &txStmts{
		ledgerPut:       tx.StmtxContext(ctx, d.stmts.ledgerPut),
		ledgerIncrement: tx.StmtxContext(ctx, d.stmts.ledgerIncrement),
		nameUnset:       tx.StmtxContext(ctx, d.stmts.nameUnset),
		nameBind:        tx.StmtxContext(ctx, d.stmts.nameBind),
	}

	if err := fn(stmts); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return multierror.Append(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
