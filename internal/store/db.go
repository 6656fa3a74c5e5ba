package store

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so Postgres stores can run the
// same queries inside or outside RunInTransaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}
