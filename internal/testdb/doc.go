//go:build integration

// Package testdb provides database helpers for integration tests.
//
// Tests run against the database named by GITSONG_TEST_DATABASE_URL (or
// DATABASE_URL) and are skipped when neither is set. The embedded
// migrations are applied once per process, and each test runs in its own
// transaction that is rolled back afterwards:
//
//	func TestSongStore(t *testing.T) {
//	    t.Parallel()
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        songs := postgres.NewSongStore(tx)
//	        // ...
//	    })
//	}
package testdb
