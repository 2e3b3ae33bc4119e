package conn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// DB is a live handle to one logical database.
//
// Thread-safety: DB is safe for concurrent use. Transactions are serialized
// by the single pooled connection.
type DB struct {
	name    string
	version int
	path    string
	db      *sql.DB

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	onClose   func(*DB)
}

// Name returns the logical database name.
func (d *DB) Name() string { return d.name }

// Version returns the schema version the handle was opened at.
func (d *DB) Version() int { return d.version }

// Path returns the SQLite file backing the handle.
func (d *DB) Path() string { return d.path }

// SQL returns the underlying sql.DB for direct queries.
// Use with caution - prefer Tx for anything that writes.
func (d *DB) SQL() *sql.DB { return d.db }

// Tx runs fn inside one transaction. The transaction commits only if fn
// returns nil; any error rolls back every write fn made.
func (d *DB) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if d.closed.Load() {
		return fmt.Errorf("%s: %w", d.name, ErrClosed)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		if isBlocked(err) {
			return fmt.Errorf("%s: begin tx: %w: %w", d.name, ErrBlocked, err)
		}
		return fmt.Errorf("%s: begin tx: %w", d.name, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", d.name, err)
	}
	return nil
}

// Querier is the read side shared by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Read runs fn inside a deferred transaction. It never takes the write lock,
// so a writer in another process does not block it, and in WAL mode every
// query fn makes sees the same snapshot. Writes made by fn are discarded.
func (d *DB) Read(ctx context.Context, fn func(q Querier) error) error {
	if d.closed.Load() {
		return fmt.Errorf("%s: %w", d.name, ErrClosed)
	}

	c, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%s: acquire conn: %w", d.name, err)
	}
	defer c.Close()

	// BEGIN is issued as a statement because the DSN makes BeginTx IMMEDIATE.
	if _, err := c.ExecContext(ctx, `BEGIN DEFERRED`); err != nil {
		return fmt.Errorf("%s: begin read: %w", d.name, err)
	}

	fnErr := fn(c)
	if _, err := c.ExecContext(context.WithoutCancel(ctx), `ROLLBACK`); err != nil {
		return errors.Join(fnErr, fmt.Errorf("%s: end read: %w", d.name, err))
	}
	return fnErr
}

// Close closes the handle. A handle closed outside Manager.CloseAll is
// evicted from the manager's cache so the next caller re-opens.
// Safe to call multiple times.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.closeErr = d.db.Close()
		if d.onClose != nil {
			d.onClose(d)
		}
	})
	return d.closeErr
}

// Closed reports whether Close has been called.
func (d *DB) Closed() bool { return d.closed.Load() }
