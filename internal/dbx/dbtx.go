// Package dbx holds the small database/sql abstractions shared by the
// Postgres repositories: the DBTX handle implemented by both *sql.DB and
// *sql.Tx, and helpers that scope a unit of work to one transaction.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by the repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Beginner opens transactions. *sql.DB and *sql.Conn implement it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx runs fn inside a new transaction on db. It commits when fn returns
// nil and rolls back otherwise. A panic in fn rolls back and is rethrown.
func WithTx(ctx context.Context, db Beginner, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// InTx runs fn in a transaction when db can open one. A handle that cannot,
// such as an *sql.Tx a repository was built on, is passed to fn as is so the
// work joins the caller's transaction.
//
//	err := dbx.InTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func InTx(ctx context.Context, db DBTX, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	if b, ok := db.(Beginner); ok {
		return WithTx(ctx, b, opts, fn)
	}
	return fn(ctx, db)
}
