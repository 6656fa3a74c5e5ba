package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phrazzld/gitsong/internal/platform/logger"
)

// TxFn runs inside a transaction opened by RunInTransaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction commits when fn returns nil and rolls back otherwise.
// A panic inside fn rolls back before it propagates.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) (err error) {
	log := logger.FromContext(ctx).With("component", "store_tx")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		p := recover()
		if p == nil && err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.ErrorContext(ctx, "rollback failed", "error", rbErr, "cause", err, "panic", p)
			if p == nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
		if p != nil {
			// ALLOW-PANIC: re-raised after rollback
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
