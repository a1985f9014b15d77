// Package store holds helpers shared by the sqlite and postgres backends.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"seatshare/internal/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run inside
// or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Wrap annotates err with the failing operation. Domain sentinels pass through,
// connection-level failures are tagged with domain.ErrStoreUnavailable.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) && !errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsTransient reports whether err looks like an I/O failure rather than a
// query or constraint error.
func IsTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// RunInTx begins a transaction on db, runs fn and commits. Any error from fn or
// a panic rolls the transaction back.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Wrap("begin tx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return Wrap("commit", err)
	}
	return nil
}

// RowsAffected returns n or wraps the driver error.
func RowsAffected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, Wrap(op, err)
	}
	return n, nil
}
