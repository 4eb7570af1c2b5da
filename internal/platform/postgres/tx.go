package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dErrors "dadcircles/pkg/domain-errors"
	"dadcircles/pkg/platform/tx"
)

// txTimeout bounds a transaction when the caller brought no deadline of its
// own. HTTP requests arrive with the router's timeout already set; scheduler
// work does not.
const txTimeout = 5 * time.Second

// TxRunner executes a function inside one database transaction. The handle
// travels in the context, so every store built on tx.Within joins the same
// transaction without knowing about the others.
type TxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, txTimeout)
		defer cancel()
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, dbTx)); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
