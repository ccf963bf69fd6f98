package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine/internal/adapters"
)

const errorTypeInvalidEntity = "invalid_entity"

var errInsertReturnedNoID = errors.New("insert returned no id")

// UnitOfWork collects inserts, updates, and deletes across all repositories and commits them
// in staging order inside one transaction. It is not safe for concurrent use.
type UnitOfWork struct {
	id     uuid.UUID
	store  Store
	staged []stagedChange

	books     *repository[library.Book]
	cards     *repository[library.Card]
	histories *historyRepository
	readers   *repository[library.Reader]
	profiles  *repository[library.ReaderProfile]
}

type stagedChange interface {
	apply(ctx context.Context, store Store, tx adapters.DBTx) (int64, error)
	reset()
}

// ID identifies the unit of work in logs and spans.
func (u *UnitOfWork) ID() string {
	return u.id.String()
}

func (u *UnitOfWork) Books() library.Repository[library.Book] {
	if u.books == nil {
		u.books = newRepository(u, bookMapping(u.store.tables.Books))
	}

	return u.books
}

func (u *UnitOfWork) Cards() library.Repository[library.Card] {
	if u.cards == nil {
		u.cards = newRepository(u, cardMapping(u.store.tables.Cards))
	}

	return u.cards
}

func (u *UnitOfWork) Histories() library.HistoryRepository {
	if u.histories == nil {
		u.histories = &historyRepository{repository: newRepository(u, historyMapping(u.store.tables.Histories))}
	}

	return u.histories
}

func (u *UnitOfWork) Readers() library.Repository[library.Reader] {
	if u.readers == nil {
		u.readers = newRepository(u, readerMapping(u.store.tables.Readers))
	}

	return u.readers
}

func (u *UnitOfWork) ReaderProfiles() library.Repository[library.ReaderProfile] {
	if u.profiles == nil {
		u.profiles = newRepository(u, readerProfileMapping(u.store.tables.ReaderProfiles))
	}

	return u.profiles
}

// Pending returns the number of staged changes.
func (u *UnitOfWork) Pending() int {
	return len(u.staged)
}

// Discard drops all staged changes.
func (u *UnitOfWork) Discard() {
	u.staged = nil
}

// SaveChanges applies the staged changes in one transaction and returns the total affected row count.
// On failure the transaction is rolled back, ids assigned during the attempt are reset to zero,
// and the staged changes are kept so the caller may retry or Discard.
func (u *UnitOfWork) SaveChanges(ctx context.Context) (int64, error) {
	if len(u.staged) == 0 {
		return 0, nil
	}

	observer, ctx := u.store.startCommitObservation(ctx, u.ID(), len(u.staged))

	tx, err := u.store.db.Begin(ctx)
	if err != nil {
		u.store.logError(ctx, logMsgBeginTxFailed, err, logAttrUnitOfWork, u.ID())
		observer.finishError(errorTypeBeginTx)

		return 0, mapDriverError(err)
	}

	var rowsAffected int64

	for i, change := range u.staged {
		affected, applyErr := change.apply(ctx, u.store, tx)
		if applyErr != nil {
			u.rollback(ctx, tx)
			u.resetApplied(i + 1)
			observer.finishError(commitErrorType(applyErr))

			return 0, applyErr
		}

		rowsAffected += affected
	}

	if err = tx.Commit(ctx); err != nil {
		u.store.logError(ctx, logMsgCommitFailed, err, logAttrUnitOfWork, u.ID())
		u.resetApplied(len(u.staged))
		observer.finishError(errorTypeCommit)

		return 0, mapDriverError(err)
	}

	u.staged = nil
	observer.finishSuccess(rowsAffected)

	return rowsAffected, nil
}

func (u *UnitOfWork) stage(change stagedChange) {
	u.staged = append(u.staged, change)
}

func (u *UnitOfWork) rollback(ctx context.Context, tx adapters.DBTx) {
	if err := tx.Rollback(ctx); err != nil {
		u.store.logWarning(ctx, logMsgRollbackFailed, err, logAttrUnitOfWork, u.ID())
	}
}

func (u *UnitOfWork) resetApplied(count int) {
	for _, change := range u.staged[:count] {
		change.reset()
	}
}

func commitErrorType(err error) string {
	switch {
	case errors.Is(err, library.ErrConcurrencyConflict):
		return errorTypeConcurrencyConflict
	case errors.Is(err, library.ErrInvalidEntity):
		return errorTypeInvalidEntity
	default:
		return errorTypeDatabaseExec
	}
}

// === Staged changes ===

type insertChange[T any] struct {
	mapping  mapping[T]
	entity   *T
	assigned bool
}

func (c *insertChange[T]) apply(ctx context.Context, store Store, tx adapters.DBTx) (int64, error) {
	if err := validateEntity(*c.entity); err != nil {
		return 0, err
	}

	record := store.sqlRecord(c.mapping.record(*c.entity))

	if id := c.mapping.id(*c.entity); id != 0 {
		record[colID] = id
		if _, err := store.execInTx(ctx, tx, store.dialect.Insert(c.mapping.table).Rows(record), logActionInsert); err != nil {
			return 0, err
		}

		return 1, nil
	}

	if store.supportsReturning() {
		id, err := store.insertReturningID(ctx, tx, store.dialect.Insert(c.mapping.table).Rows(record).Returning(goqu.C(colID)))
		if err != nil {
			return 0, err
		}

		c.assignID(id)

		return 1, nil
	}

	result, err := store.execInTx(ctx, tx, store.dialect.Insert(c.mapping.table).Rows(record), logActionInsert)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Join(library.ErrPersistence, err)
	}

	c.assignID(id)

	return 1, nil
}

func (c *insertChange[T]) assignID(id int64) {
	c.mapping.setID(c.entity, id)
	c.assigned = true
}

func (c *insertChange[T]) reset() {
	if c.assigned {
		c.mapping.setID(c.entity, 0)
		c.assigned = false
	}
}

type updateChange[T any] struct {
	mapping mapping[T]
	entity  T
	guard   library.Condition
}

func (c *updateChange[T]) apply(ctx context.Context, store Store, tx adapters.DBTx) (int64, error) {
	if err := validateEntity(c.entity); err != nil {
		return 0, err
	}

	id := c.mapping.id(c.entity)

	guard, err := store.compileCondition(c.mapping.table, c.mapping.hasColumn, c.guard)
	if err != nil {
		return 0, errors.Join(library.ErrPersistence, err)
	}

	where := []exp.Expression{goqu.T(c.mapping.table).Col(colID).Eq(id)}
	if guard != nil {
		where = append(where, guard)
	}

	builder := store.dialect.Update(c.mapping.table).Set(store.sqlRecord(c.mapping.record(c.entity))).Where(where...)

	result, err := store.execInTx(ctx, tx, builder, logActionUpdate)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(library.ErrPersistence, err)
	}

	if affected != 1 {
		store.logOperation(ctx, logMsgConcurrencyConflict, logAttrTable, c.mapping.table, logAttrRowsAffected, affected)
		store.recordConcurrencyConflictMetrics(ctx, c.mapping.table)

		return 0, errors.Join(
			library.ErrPersistence,
			library.ErrConcurrencyConflict,
			fmt.Errorf("update of %s with id %d affected %d rows", c.mapping.table, id, affected),
		)
	}

	return affected, nil
}

func (c *updateChange[T]) reset() {}

type deleteChange struct {
	table string
	id    int64
}

func (c *deleteChange) apply(ctx context.Context, store Store, tx adapters.DBTx) (int64, error) {
	builder := store.dialect.Delete(c.table).Where(goqu.T(c.table).Col(colID).Eq(c.id))

	result, err := store.execInTx(ctx, tx, builder, logActionDelete)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(library.ErrPersistence, err)
	}

	return affected, nil
}

func (c *deleteChange) reset() {}

// === Statement execution ===

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func (s Store) execInTx(
	ctx context.Context,
	tx adapters.DBTx,
	builder sqlBuilder,
	action string,
) (adapters.DBResult, error) {
	sqlQuery, _, err := builder.ToSQL()
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err, logAttrQuery, action)
		return nil, errors.Join(library.ErrPersistence, err)
	}

	start := time.Now()

	result, err := tx.Exec(ctx, sqlQuery)
	if err != nil {
		s.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		return nil, mapDriverError(err)
	}

	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	return result, nil
}

func (s Store) insertReturningID(ctx context.Context, tx adapters.DBTx, builder sqlBuilder) (int64, error) {
	sqlQuery, _, err := builder.ToSQL()
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err, logAttrQuery, logActionInsert)
		return 0, errors.Join(library.ErrPersistence, err)
	}

	start := time.Now()

	rows, err := tx.Query(ctx, sqlQuery)
	if err != nil {
		s.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		return 0, mapDriverError(err)
	}

	var id int64

	if rows.Next() {
		err = rows.Scan(&id)
	}

	closeErr := rows.Close()

	if err == nil {
		err = rows.Err()
	}

	if err == nil {
		err = closeErr
	}

	if err == nil && id == 0 {
		err = errInsertReturnedNoID
	}

	if err != nil {
		s.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		return 0, mapDriverError(err)
	}

	s.logQueryWithDuration(ctx, sqlQuery, logActionInsert, time.Since(start))

	return id, nil
}

func validateEntity(entity any) error {
	if v, ok := entity.(interface{ Validate() error }); ok {
		return v.Validate()
	}

	return nil
}
