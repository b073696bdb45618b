// Package executor runs the contents of an update file against the CRM
// database.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the executor needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// Executor runs update scripts. Scripts are sent with the simple protocol
// (no arguments), so a file may hold any number of statements.
type Executor struct {
	db               DB
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithLockTimeout sets the per-transaction lock_timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Executor) { e.lockTimeout = d }
}

// WithStatementTimeout sets the per-transaction statement_timeout.
func WithStatementTimeout(d time.Duration) Option {
	return func(e *Executor) { e.statementTimeout = d }
}

// New creates an Executor on db.
func New(db DB, opts ...Option) *Executor {
	e := &Executor{db: db}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ExecScript runs a whole script. Scripts are applied in one transaction
// unless they contain a statement that cannot run in one, in which case
// each statement is sent on its own and commits independently; a failure
// stops the script and leaves the earlier statements applied. Every
// failure wraps ErrScriptFailed.
func (e *Executor) ExecScript(ctx context.Context, sql string) error {
	plan, err := Inspect(sql)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScriptFailed, err)
	}

	if plan.Statements == 0 {
		return nil
	}

	if plan.Autocommit {
		for i, part := range plan.Parts {
			if _, err := e.db.Exec(ctx, part); err != nil {
				return fmt.Errorf("%w: executing outside transaction (statement %d of %d): %w",
					ErrScriptFailed, i+1, len(plan.Parts), err)
			}
		}

		return nil
	}

	if err := e.inTransaction(ctx, func(tx pgx.Tx) error {
		if err := e.setTimeouts(ctx, tx); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}

		return nil
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrScriptFailed, err)
	}

	return nil
}

// inTransaction runs fn inside a transaction, committing on success.
func (e *Executor) inTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback on committed tx returns ErrTxClosed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// setTimeouts scopes lock_timeout and statement_timeout to the transaction
// so pooled connections are returned unchanged.
func (e *Executor) setTimeouts(ctx context.Context, tx pgx.Tx) error {
	if e.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", e.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("setting lock_timeout: %w", err)
		}
	}

	if e.statementTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", e.statementTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("setting statement_timeout: %w", err)
		}
	}

	return nil
}
