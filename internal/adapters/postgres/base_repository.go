// Package postgres implements the Repository port (C6) against a pgx/v5
// connection pool, storing speaker embeddings as pgvector columns and
// authentication attempts as a plain append-only table.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BaseRepository gives every repository transaction-aware connection
// handling without each one reimplementing the context plumbing.
type BaseRepository struct {
	pool *pgxpool.Pool
}

func NewBaseRepository(pool *pgxpool.Pool) BaseRepository {
	return BaseRepository{pool: pool}
}

// Pool returns the underlying connection pool for callers that need direct
// access (health checks); repository methods should use conn() instead.
func (r *BaseRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// conn returns the transaction in ctx if one was stashed there, otherwise
// the pool itself.
func (r *BaseRepository) conn(ctx context.Context) interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
} {
	return GetConn(ctx, r.pool)
}

// contextKey namespaces values this package stores on context.Context.
type contextKey string

const txKey contextKey = "pgx_tx"

// GetTx retrieves a transaction from ctx, if one was set.
func GetTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// GetConn returns either the context's transaction or the pool.
func GetConn(ctx context.Context, pool *pgxpool.Pool) interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
} {
	if tx := GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
