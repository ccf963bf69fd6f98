package library

import "errors"

var (
	// ErrNoData is returned when a report has no rows to aggregate over.
	ErrNoData = errors.New("no data to aggregate")

	// ErrInvalidRange is returned for a malformed date window or count.
	ErrInvalidRange = errors.New("invalid range")

	// ErrNotFound is returned when a requested entity or an active loan does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPersistence is returned when the underlying store failed to fetch or commit.
	ErrPersistence = errors.New("persistence error")

	// ErrConcurrencyConflict is returned when a guarded update did not find its row in the expected state.
	ErrConcurrencyConflict = errors.New("concurrency conflict, no rows were affected")

	// ErrInvalidEntity is returned when an entity violates its invariants.
	ErrInvalidEntity = errors.New("invalid entity")

	ErrDuplicateKey        = errors.New("duplicate key")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrCheckViolation      = errors.New("check constraint violation")

	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrUnsupportedDialect    = errors.New("unsupported sql dialect")
	ErrEmptyTableName        = errors.New("empty table name supplied")

	// ErrBookAlreadyLent is returned when checking out a book that has an active loan.
	ErrBookAlreadyLent = errors.New("book is already lent out")

	// ErrLoanAlreadyReturned is returned when returning a loan a second time.
	ErrLoanAlreadyReturned = errors.New("loan was already returned")
)
