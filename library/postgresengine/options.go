package postgresengine

import (
	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-history-go/library"
)

type (
	Logger                     = library.Logger
	ContextualLogger           = library.ContextualLogger
	MetricsCollector           = library.MetricsCollector
	ContextualMetricsCollector = library.ContextualMetricsCollector
	TracingCollector           = library.TracingCollector
	SpanContext                = library.SpanContext
)

// TableNames configures the table of each entity type.
type TableNames struct {
	Books          string
	Readers        string
	ReaderProfiles string
	Cards          string
	Histories      string
}

// DefaultTableNames returns the table names used by PostgresSchema.
func DefaultTableNames() TableNames {
	return TableNames{
		Books:          defaultBooksTable,
		Readers:        defaultReadersTable,
		ReaderProfiles: defaultReaderProfilesTable,
		Cards:          defaultCardsTable,
		Histories:      defaultHistoriesTable,
	}
}

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithTableNames overrides the table names. Every name must be non-empty.
func WithTableNames(tables TableNames) Option {
	return func(s *Store) error {
		for _, name := range []string{tables.Books, tables.Readers, tables.ReaderProfiles, tables.Cards, tables.Histories} {
			if name == "" {
				return library.ErrEmptyTableName
			}
		}

		s.tables = tables

		return nil
	}
}

// WithDialect selects the goqu SQL dialect: "postgres" (default) or "sqlite3".
func WithDialect(name string) Option {
	return func(s *Store) error {
		switch name {
		case dialectPostgres, dialectSQLite3:
			s.dialectName = name
			s.dialect = goqu.Dialect(name)
			return nil
		default:
			return library.ErrUnsupportedDialect
		}
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: row counts, durations, concurrency conflicts (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the context-aware logger, which allows trace correlation of log records.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for query and commit durations, row counts, and errors.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector, which receives a span per query and per commit.
func WithTracing(collector TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}
