package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type archiveTxKey struct{}

// TransactionManager groups the events upsert and the sync_state update of
// one run so the archive never records a run without its events.
type TransactionManager struct {
	db *sqlx.DB
}

func NewTransactionManager(db *sqlx.DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// WithTransaction runs fn inside one transaction. EventStore and
// SyncStateStore calls made with the context passed to fn join it.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if archiveTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, archiveTxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback archive transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive transaction: %w", err)
	}
	return nil
}

func archiveTx(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(archiveTxKey{}).(*sqlx.Tx)
	return tx
}

// executor picks the run's open transaction over the pool.
func executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx := archiveTx(ctx); tx != nil {
		return tx
	}
	return db
}
