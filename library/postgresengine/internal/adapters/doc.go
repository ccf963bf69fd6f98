// Package adapters provide database adapter implementations for the SQL library store.
//
// This package implements the adapter pattern to support multiple database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, including transactions for the unit of work commit.
package adapters
