package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/phrazzld/gitsong/internal/store"
)

// constraintErrors maps integrity violations onto store sentinels.
var constraintErrors = map[string]error{
	pgerrcode.UniqueViolation:     store.ErrDuplicate,
	pgerrcode.ForeignKeyViolation: store.ErrInvalidEntity,
	pgerrcode.CheckViolation:      store.ErrInvalidEntity,
	pgerrcode.NotNullViolation:    store.ErrInvalidEntity,
}

// MapError translates driver errors into store sentinels while keeping the
// driver error in the chain.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	pgErr, ok := asPgError(err)
	if !ok {
		return err
	}
	if sentinel, ok := constraintErrors[pgErr.Code]; ok {
		name := pgErr.ConstraintName
		if name == "" {
			name = pgErr.ColumnName
		}
		return fmt.Errorf("%w (%s): %w", sentinel, name, err)
	}
	if pgerrcode.IsConnectionException(pgErr.Code) {
		return fmt.Errorf("%w: %w", store.ErrTransactionFailed, err)
	}
	return err
}

// IsUniqueViolation reports whether err carries a unique_violation.
func IsUniqueViolation(err error) bool {
	pgErr, ok := asPgError(err)
	return ok && pgErr.Code == pgerrcode.UniqueViolation
}

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// CheckRowsAffected returns notFound when a write matched zero rows.
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return errors.New("postgres: nil sql.Result")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
