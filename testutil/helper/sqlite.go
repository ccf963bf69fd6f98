package helper

import (
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-history-go/library/postgresengine"
)

const sqliteDSN = ":memory:?_foreign_keys=on"

// NewSQLiteDB opens a private in-memory database with the schema applied.
// The pool is limited to one connection because every sqlite :memory: connection is its own database.
func NewSQLiteDB(t testing.TB) *sql.DB {
	db, err := sql.Open("sqlite3", sqliteDSN)
	require.NoError(t, err, "error in arranging test data")

	db.SetMaxOpenConns(1)

	_, err = db.Exec(postgresengine.SQLiteSchema)
	require.NoError(t, err, "error in arranging test data")

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// NewSQLiteSQLX wraps NewSQLiteDB for the sqlx adapter.
func NewSQLiteSQLX(t testing.TB) *sqlx.DB {
	return sqlx.NewDb(NewSQLiteDB(t), "sqlite3")
}

// NewSQLiteStore creates a Store on a fresh in-memory database.
func NewSQLiteStore(t testing.TB, options ...postgresengine.Option) postgresengine.Store {
	allOptions := append([]postgresengine.Option{postgresengine.WithDialect("sqlite3")}, options...)

	store, err := postgresengine.NewStoreFromSQLDB(NewSQLiteDB(t), allOptions...)
	require.NoError(t, err, "error in arranging test data")

	return store
}
