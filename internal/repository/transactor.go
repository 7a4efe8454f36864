package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"
)

// Transactor runs units of work inside a single database transaction.
type Transactor struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTransactor builds a Transactor. A positive timeout bounds every transaction.
func NewTransactor(db *sqlx.DB, timeout time.Duration) *Transactor {
	return &Transactor{db: db, timeout: timeout}
}

// WithinTx begins a transaction, hands it to fn and commits when fn succeeds.
// Any error or panic rolls the transaction back.
func (t *Transactor) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) (err error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func orDB(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}
