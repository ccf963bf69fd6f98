// Package postgreswrapper runs store tests against a real PostgreSQL database.
//
// The database is taken from LIBRARY_TEST_DSN; without it the tests are skipped.
// ADAPTER_TYPE selects the driver adapter: pgxpool (default), sqldb or sqlx.
package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/library-history-go/library/postgresengine" //nolint:revive
	"github.com/AntonStoeckl/library-history-go/shell/config"
)

const (
	envDSN         = "LIBRARY_TEST_DSN"
	envAdapterType = "ADAPTER_TYPE"

	typePGXPool = "pgxpool"
	typeSQLDB   = "sqldb"
	typeSQLX    = "sqlx"

	truncateAll = `TRUNCATE TABLE histories, cards, reader_profiles, readers, books RESTART IDENTITY CASCADE`
)

// Wrapper abstracts over the different driver adapters.
type Wrapper interface {
	GetStore() Store
	Exec(ctx context.Context, query string) error
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool  *pgxpool.Pool
	store Store
}

func (w *PGXPoolWrapper) GetStore() Store {
	return w.store
}

func (w *PGXPoolWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.pool.Exec(ctx, query)
	return err
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db    *sql.DB
	store Store
}

func (w *SQLDBWrapper) GetStore() Store {
	return w.store
}

func (w *SQLDBWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close()
}

// SQLXWrapper wraps sqlx-based testing.
type SQLXWrapper struct {
	db    *sqlx.DB
	store Store
}

func (w *SQLXWrapper) GetStore() Store {
	return w.store
}

func (w *SQLXWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close()
}

// CreateWrapperWithTestConfig connects to the test database with the adapter named by ADAPTER_TYPE,
// creates the schema and empties all tables. The wrapper is closed when the test ends.
func CreateWrapperWithTestConfig(t testing.TB, options ...Option) Wrapper {
	dsn := os.Getenv(envDSN)
	if dsn == "" {
		t.Skipf("%s is not set", envDSN)
	}

	ctx := context.Background()
	cfg := config.DatabaseConfig{DSN: dsn, MaxConns: 4, MinConns: 1}

	var wrapper Wrapper

	switch adapterType := strings.ToLower(os.Getenv(envAdapterType)); adapterType {
	case typePGXPool, "":
		pool, err := config.NewPGXPool(ctx, cfg)
		require.NoError(t, err, "error connecting to DB pool in test setup")
		store, err := NewStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating the store in test setup")
		wrapper = &PGXPoolWrapper{pool: pool, store: store}

	case typeSQLDB:
		db, err := config.NewSQLDB(ctx, cfg)
		require.NoError(t, err, "error connecting to DB in test setup")
		store, err := NewStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating the store in test setup")
		wrapper = &SQLDBWrapper{db: db, store: store}

	case typeSQLX:
		db, err := config.NewSQLX(ctx, cfg)
		require.NoError(t, err, "error connecting to DB in test setup")
		store, err := NewStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating the store in test setup")
		wrapper = &SQLXWrapper{db: db, store: store}

	default:
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	t.Cleanup(wrapper.Close)

	require.NoError(t, wrapper.Exec(ctx, PostgresSchema), "error creating the schema")
	CleanUp(t, wrapper)

	return wrapper
}

// CleanUp empties all tables and resets their identities.
func CleanUp(t testing.TB, wrapper Wrapper) {
	require.NoError(t, wrapper.Exec(context.Background(), truncateAll), "error cleaning up the tables")
}
