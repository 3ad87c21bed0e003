package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the narrow query contract shared by pools and transactions.
// Both *pgxpool.Pool and pgx.Tx satisfy it, so repositories run unchanged
// inside and outside explicit transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config holds connection pool settings.
type Config struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
}

// Pool wraps a pgx connection pool with role-scoped transaction helpers.
type Pool struct {
	pool *pgxpool.Pool
}

// Connect creates a connection pool and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, &Error{Op: OpConnect, Err: err}
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, &Error{Op: OpConnect, Err: err}
	}
	return &Pool{pool: pool}, nil
}

// Ping checks database connectivity.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return &Error{Op: OpPing, Err: err}
	}
	return nil
}

// WaitForReady polls the database until it responds or the timeout elapses.
func (p *Pool) WaitForReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := p.Ping(ctx); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not ready after %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // context cancellation passes through
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// CheckPostGIS verifies the PostGIS extension responds.
func (p *Pool) CheckPostGIS(ctx context.Context) error {
	var version string
	if err := p.pool.QueryRow(ctx, "SELECT PostGIS_Version()").Scan(&version); err != nil {
		return &Error{Op: OpQuery, Err: err}
	}
	return nil
}

// Close releases the pool.
func (p *Pool) Close() {
	p.pool.Close()
}

// Querier returns the raw pool for statements that must not run inside a
// transaction (role DDL, privilege introspection as the service role).
func (p *Pool) Querier() Querier {
	return p.pool
}

// InTx runs fn inside a transaction as the service role. The transaction
// commits when fn returns nil and rolls back otherwise.
func (p *Pool) InTx(ctx context.Context, fn func(q Querier) error) error {
	return p.run(ctx, "", fn)
}

// AsRole runs fn inside a transaction executing under the native privileges
// of role. One connection is acquired for the whole call, the role is set
// local to that connection's transaction, and every statement goes through
// the same transaction handle, so the backend's own grant system enforces
// access for the full request. The role resets when the transaction ends.
func (p *Pool) AsRole(ctx context.Context, role string, fn func(q Querier) error) error {
	if !IsValidIdentifier(role) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, role)
	}
	return p.run(ctx, role, fn)
}

func (p *Pool) run(ctx context.Context, role string, fn func(q Querier) error) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return &Error{Op: OpBegin, Err: err}
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return &Error{Op: OpBegin, Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if role != "" {
		if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+QuoteIdentifier(role)); err != nil {
			return &Error{Op: OpSetRole, Err: err}
		}
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &Error{Op: OpCommit, Err: err}
	}
	return nil
}
