package postgresengine

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/library-history-go/library"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
)

// mapDriverError wraps a driver error into ErrPersistence, adding the constraint sentinel when one applies.
// The original error stays in the chain.
func mapDriverError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return withConstraint(constraintBySQLState(pgErr.Code), err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return withConstraint(constraintBySQLState(string(pqErr.Code)), err)
	}

	return withConstraint(constraintByMessage(err.Error()), err)
}

func withConstraint(constraint error, err error) error {
	if constraint == nil {
		return errors.Join(library.ErrPersistence, err)
	}

	return errors.Join(library.ErrPersistence, constraint, err)
}

func constraintBySQLState(code string) error {
	switch code {
	case sqlStateUniqueViolation:
		return library.ErrDuplicateKey
	case sqlStateForeignKeyViolation:
		return library.ErrForeignKeyViolation
	case sqlStateCheckViolation:
		return library.ErrCheckViolation
	default:
		return nil
	}
}

// constraintByMessage covers sqlite3, which has no SQLSTATE codes.
func constraintByMessage(message string) error {
	switch {
	case strings.Contains(message, "UNIQUE constraint failed"):
		return library.ErrDuplicateKey
	case strings.Contains(message, "FOREIGN KEY constraint failed"):
		return library.ErrForeignKeyViolation
	case strings.Contains(message, "CHECK constraint failed"):
		return library.ErrCheckViolation
	default:
		return nil
	}
}
