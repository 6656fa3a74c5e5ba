// Package postgres implements the store and vector store interfaces on
// PostgreSQL through database/sql and the pgx driver.
//
// Every store takes a store.DBTX so it can run against a *sql.DB or inside a
// *sql.Tx. Schema changes live in the embedded migrations directory and are
// applied with Migrate.
package postgres
