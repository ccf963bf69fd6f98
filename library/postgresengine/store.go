package postgresengine

import (
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // postgres SQL dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // sqlite3 SQL dialect
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine/internal/adapters"
)

const (
	defaultBooksTable          = "books"
	defaultReadersTable        = "readers"
	defaultReaderProfilesTable = "reader_profiles"
	defaultCardsTable          = "cards"
	defaultHistoriesTable      = "histories"

	dialectPostgres = "postgres"
	dialectSQLite3  = "sqlite3"

	colID = "id"
)

// Log messages.
const (
	logMsgBuildQueryFailed    = "failed to build sql query"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgBeginTxFailed       = "failed to begin transaction"
	logMsgDBExecFailed        = "database statement failed during commit"
	logMsgRollbackFailed      = "failed to roll back transaction"
	logMsgCommitFailed        = "failed to commit transaction"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "library store operation: "

	logActionQuery  = "query"
	logActionCommit = "commit"
	logActionInsert = "insert"
	logActionUpdate = "update"
	logActionDelete = "delete"

	logAttrError        = "error"
	logAttrQuery        = "query"
	logAttrTable        = "table"
	logAttrRowCount     = "row_count"
	logAttrDurationMS   = "duration_ms"
	logAttrRowsAffected = "rows_affected"
	logAttrChangeCount  = "change_count"
	logAttrUnitOfWork   = "unit_of_work_id"
)

// Metrics, spans, and their attributes.
const (
	metricQueryDuration        = "librarystore_query_duration_seconds"
	metricCommitDuration       = "librarystore_commit_duration_seconds"
	metricRowsQueried          = "librarystore_rows_queried"
	metricRowsAffected         = "librarystore_rows_affected"
	metricDatabaseErrors       = "librarystore_database_errors_total"
	metricConcurrencyConflicts = "librarystore_concurrency_conflicts_total"

	spanNameQuery  = "librarystore.query"
	spanNameCommit = "librarystore.commit"

	spanAttrOperation    = "operation"
	spanAttrTable        = "table"
	spanAttrRowCount     = "row_count"
	spanAttrRowsAffected = "rows_affected"
	spanAttrChangeCount  = "change_count"
	spanAttrErrorType    = "error_type"
	spanAttrDurationMS   = "duration_ms"
	spanAttrUnitOfWork   = "unit_of_work_id"

	operationQuery  = "query"
	operationCommit = "commit"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeBuildQuery          = "build_query"
	errorTypeDatabaseQuery       = "database_query"
	errorTypeRowScan             = "row_scan"
	errorTypeBeginTx             = "begin_tx"
	errorTypeDatabaseExec        = "database_exec"
	errorTypeCommit              = "commit"
	errorTypeConcurrencyConflict = "concurrency_conflict"
)

// Store is the database-backed unit of work factory. It is safe for concurrent use;
// the units of work it creates are not.
type Store struct {
	db               adapters.DBAdapter
	dialect          goqu.DialectWrapper
	dialectName      string
	tables           TableNames
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, library.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolWithReplica creates a Store that routes eventually consistent reads to the replica.
func NewStoreFromPGXPoolWithReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Store, error) {
	if primary == nil || replica == nil {
		return Store{}, library.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(primary, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, library.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, library.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	store := Store{
		db:          db,
		dialect:     goqu.Dialect(dialectPostgres),
		dialectName: dialectPostgres,
		tables:      DefaultTableNames(),
	}

	for _, option := range options {
		if err := option(&store); err != nil {
			return Store{}, err
		}
	}

	return store, nil
}

// NewUnitOfWork starts an empty unit of work bound to this store.
func (s Store) NewUnitOfWork() library.UnitOfWork {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return &UnitOfWork{id: id, store: s}
}

// Tables returns the configured table names.
func (s Store) Tables() TableNames {
	return s.tables
}

func (s Store) supportsReturning() bool {
	return s.dialectName == dialectPostgres
}
