// Package postgresengine provides a PostgreSQL implementation of the library Repository and UnitOfWork contracts.
//
// Queries are built with goqu and executed through one of the supported database adapters
// (pgxpool.Pool, sql.DB, sqlx.DB). Mutations are staged per unit of work and committed in one
// transaction; a failed commit is rolled back and leaves the staged changes in place.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX), optional read replica for eventual consistency
//   - Lazy, streaming reads with conditions compiled to SQL
//   - The joined history read (histories, books, cards, readers) the statistics engine depends on
//   - Driver error mapping onto the library sentinel errors
//   - Optional logging, metrics, and tracing
//
// Usage examples:
//
//	pool, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewStoreFromPGXPool(pool, postgresengine.WithLogger(logger))
//
//	uow := store.NewUnitOfWork()
//	uow.Books().Add(&library.Book{Title: "Dune", Author: "Frank Herbert", Year: 1965})
//	affected, err := uow.SaveChanges(ctx)
//
// The sqlite3 dialect (WithDialect) exists for in-process tests against mattn/go-sqlite3.
package postgresengine
