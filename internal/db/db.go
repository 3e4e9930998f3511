// Package db provides PostgreSQL-backed repositories for letters, friend
// requests, transit records, user profiles and job bookkeeping. All
// repositories accept a DBTX, which is satisfied by both *pgxpool.Pool and
// pgx.Tx, so the same code runs inside or outside a transaction.
package db

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"penpal/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// psql builds PostgreSQL statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// wrapNotFound maps pgx.ErrNoRows to a NotFoundError with code and any other
// failure to an internal database error.
func wrapNotFound(err error, code types.ErrorCode, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return types.NewAppError(code, what+" not found", err)
	}
	return types.NewAppError(types.ErrCodeInternalDB, "failed to load "+what, err)
}
