package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const DefaultQueryTimeout = 30 * time.Second

// withTimeout wraps ctx with DefaultQueryTimeout unless it already has a
// deadline of its own.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultQueryTimeout)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func getString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// checkNoRows reports whether err is pgx.ErrNoRows.
func checkNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
