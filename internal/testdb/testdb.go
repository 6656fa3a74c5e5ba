//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/gitsong/internal/platform/logger"
	"github.com/phrazzld/gitsong/internal/platform/postgres"
)

// Environment variables checked for the test database, in order.
const (
	EnvTestDatabaseURL = "GITSONG_TEST_DATABASE_URL"
	EnvDatabaseURL     = "DATABASE_URL"
)

// Timeout bounds connection setup and schema migration.
const Timeout = 30 * time.Second

var (
	migrateOnce sync.Once
	migrateErr  error
)

// DatabaseURL returns the test database URL, or "" when none is configured.
func DatabaseURL() string {
	if u := os.Getenv(EnvTestDatabaseURL); u != "" {
		return u
	}
	return os.Getenv(EnvDatabaseURL)
}

// ShouldSkipDatabaseTest reports whether no test database is configured.
func ShouldSkipDatabaseTest() bool {
	return DatabaseURL() == ""
}

// GetTestDBWithT opens the test database with the schema migrated. The
// test is skipped when no database is configured and the connection is
// closed on cleanup.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := DatabaseURL()
	if dbURL == "" {
		t.Skipf("%s or %s not set - skipping integration test", EnvTestDatabaseURL, EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	db, err := postgres.Open(ctx, dbURL, postgres.PoolConfig{}, logger.Discard())
	if err != nil {
		t.Fatalf("failed to open test database %s: %v", postgres.MaskURL(dbURL), err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close database connection: %v", err)
		}
	})

	migrateOnce.Do(func() {
		migrateErr = postgres.Migrate(ctx, db, "up", logger.Discard())
	})
	if migrateErr != nil {
		t.Fatalf("failed to migrate test database: %v", migrateErr)
	}
	return db
}

// WithTx runs fn in a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("warning: failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}
