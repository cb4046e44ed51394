package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Role is the acting user's role as seen by the row-level security policies.
// The role model is deliberately closed: two values, no hierarchy.
type Role string

const (
	RoleProvider Role = "provider"
	RoleStaff    Role = "staff"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleProvider || r == RoleStaff
}

// SessionContext identifies the actor for the lifetime of one database
// transaction. It is bound as transaction-local settings that the row-level
// security policies read, and is never persisted or shared across
// transactions.
type SessionContext struct {
	UserID uuid.UUID
	Role   Role
}

type contextKey string

const txKey contextKey = "db_tx"

// WithTx returns a context carrying the given transaction. Repositories pick
// it up through TxFromContext so all statements inside a unit of work share
// the bound session context.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// TxFromContext retrieves the transaction from context, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// Begin opens a transaction and binds the session context as its first
// statement. set_config with local=true scopes the settings to the
// transaction, so nothing leaks to later users of the pooled connection.
// The values travel as bound parameters, never interpolated into SQL.
//
// If the bind fails the transaction is rolled back and an error returned: no
// protected-table statement may run with an unbound identity.
func Begin(ctx context.Context, pool *pgxpool.Pool, sc SessionContext) (pgx.Tx, error) {
	if sc.UserID == uuid.Nil {
		return nil, fmt.Errorf("db: session context requires a user id")
	}
	if !sc.Role.Valid() {
		return nil, fmt.Errorf("db: unknown role %q", sc.Role)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("db: begin transaction: %w", err)
	}

	_, err = tx.Exec(ctx,
		`SELECT set_config('app.user_id', $1, true), set_config('app.user_role', $2, true)`,
		sc.UserID.String(), string(sc.Role),
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("db: bind session context: %w", err)
	}

	return tx, nil
}

// Runner executes units of work in identity-bound transactions against a
// concrete pool. Services depend on the interface shape (a RunInTx method)
// rather than on Runner itself, so tests can substitute a pass-through.
type Runner struct {
	pool *pgxpool.Pool
}

// NewRunner creates a Runner over the given pool.
func NewRunner(pool *pgxpool.Pool) *Runner {
	return &Runner{pool: pool}
}

// RunInTx opens a transaction bound to sc, runs fn with the transaction on
// the context, and commits. Any error (including context cancellation inside
// fn) rolls the whole unit back: the bind, any duplicate-scan reads, and any
// writes are discarded together.
func (r *Runner) RunInTx(ctx context.Context, sc SessionContext, fn func(ctx context.Context) error) error {
	tx, err := Begin(ctx, r.pool, sc)
	if err != nil {
		return err
	}

	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit transaction: %w", err)
	}
	return nil
}
