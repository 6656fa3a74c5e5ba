package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/gitsong/internal/platform/postgres"
	"github.com/phrazzld/gitsong/internal/store"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "songs",
		ColumnName:     "status",
		ConstraintName: "songs_window_check",
	}
}

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, r.err }
func (r fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

func TestMapError(t *testing.T) {
	t.Parallel()

	other := errors.New("something else")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "no rows", err: sql.ErrNoRows, want: store.ErrNotFound},
		{name: "unique", err: newPgError(pgerrcode.UniqueViolation), want: store.ErrDuplicate},
		{name: "wrapped unique", err: fmt.Errorf("insert: %w", newPgError(pgerrcode.UniqueViolation)), want: store.ErrDuplicate},
		{name: "foreign key", err: newPgError(pgerrcode.ForeignKeyViolation), want: store.ErrInvalidEntity},
		{name: "check", err: newPgError(pgerrcode.CheckViolation), want: store.ErrInvalidEntity},
		{name: "not null", err: newPgError(pgerrcode.NotNullViolation), want: store.ErrInvalidEntity},
		{name: "connection", err: newPgError(pgerrcode.ConnectionFailure), want: store.ErrTransactionFailed},
		{name: "unmapped", err: other, want: other},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := postgres.MapError(tc.err)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
			if tc.err != nil {
				assert.ErrorIs(t, got, tc.err)
			}
		})
	}
}

func TestMapError_KeepsConstraintName(t *testing.T) {
	t.Parallel()
	err := postgres.MapError(newPgError(pgerrcode.CheckViolation))
	assert.Contains(t, err.Error(), "songs_window_check")
}

func TestViolationPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(newPgError(pgerrcode.UniqueViolation)))
	assert.False(t, postgres.IsUniqueViolation(newPgError(pgerrcode.CheckViolation)))
	assert.False(t, postgres.IsUniqueViolation(errors.New("plain")))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, postgres.CheckRowsAffected(fakeResult{rowsAffected: 1}, store.ErrSongNotFound))
	assert.ErrorIs(t, postgres.CheckRowsAffected(fakeResult{}, store.ErrSongNotFound), store.ErrSongNotFound)
	assert.Error(t, postgres.CheckRowsAffected(nil, store.ErrSongNotFound))
	assert.ErrorContains(t, postgres.CheckRowsAffected(fakeResult{err: errors.New("boom")}, store.ErrSongNotFound), "boom")
}
