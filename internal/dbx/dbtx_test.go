package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS contact (id INTEGER PRIMARY KEY, name TEXT);`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM contact`).Scan(&n))
	return n
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO contact(name) VALUES ('john')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db), "must commit on success")
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO contact(name) VALUES ('jane')`)
		require.NoError(t, e)
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, countRows(t, db), "must roll back when fn fails")
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countRows(t, db), "must roll back on panic")
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO contact(name) VALUES ('panic')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTxBeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err, "begin should fail when DB is closed")
}

func TestInTxOpensTransactionOnDB(t *testing.T) {
	db := setupDB(t)

	err := InTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, isTx := tx.(*sql.Tx)
		require.True(t, isTx, "fn must receive a transaction")
		_, err := tx.ExecContext(ctx, `INSERT INTO contact(name) VALUES ('ann')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db))
}

func TestInTxJoinsCallerTransaction(t *testing.T) {
	db := setupDB(t)
	outer, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	err = InTx(context.Background(), outer, nil, func(ctx context.Context, tx DBTX) error {
		require.Same(t, outer, tx)
		_, err := tx.ExecContext(ctx, `INSERT INTO contact(name) VALUES ('bob')`)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, outer.Rollback())
	require.Equal(t, 0, countRows(t, db), "caller owns commit and rollback")
}
