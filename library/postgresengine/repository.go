package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine/internal/adapters"
)

// repository is the SQL implementation of library.Repository for one entity type.
// Reads go straight to the database; writes are staged on the owning unit of work.
type repository[T any] struct {
	uow     *UnitOfWork
	mapping mapping[T]
}

func newRepository[T any](uow *UnitOfWork, m mapping[T]) *repository[T] {
	return &repository[T]{uow: uow, mapping: m}
}

// FindAll streams every row of the table ordered by id.
func (r *repository[T]) FindAll(ctx context.Context) iter.Seq2[T, error] {
	return r.FindByCondition(ctx, library.MatchAll())
}

// FindByCondition streams the rows matching condition ordered by id.
func (r *repository[T]) FindByCondition(ctx context.Context, condition library.Condition) iter.Seq2[T, error] {
	store := r.uow.store
	table := r.mapping.table

	where, err := store.compileCondition(table, r.mapping.hasColumn, condition)
	if err != nil {
		return failedSeq[T](errors.Join(library.ErrPersistence, err))
	}

	builder := store.dialect.
		From(table).
		Select(r.mapping.selectColumns()...).
		Order(goqu.T(table).Col(colID).Asc())

	if where != nil {
		builder = builder.Where(where)
	}

	return streamQuery(ctx, store, table, builder, r.mapping.scan)
}

// FindByID returns library.ErrNotFound when no row has the id.
func (r *repository[T]) FindByID(ctx context.Context, id int64) (T, error) {
	for entity, err := range r.FindByCondition(ctx, library.AllOf(library.Eq(library.FieldID, id))) {
		return entity, err
	}

	var zero T

	return zero, fmt.Errorf("%w: %s with id %d", library.ErrNotFound, r.mapping.table, id)
}

// Add stages an insert. A zero id is assigned by the database and written back on SaveChanges.
func (r *repository[T]) Add(entity *T) {
	r.uow.stage(&insertChange[T]{mapping: r.mapping, entity: entity})
}

func (r *repository[T]) AddRange(entities ...*T) {
	for _, entity := range entities {
		r.Add(entity)
	}
}

// Update stages an update by id; SaveChanges fails with library.ErrConcurrencyConflict if the row is gone.
func (r *repository[T]) Update(entity T) {
	r.uow.stage(&updateChange[T]{mapping: r.mapping, entity: entity, guard: library.MatchAll()})
}

// UpdateIf stages an update that only applies while the stored row also satisfies guard.
func (r *repository[T]) UpdateIf(entity T, guard library.Condition) {
	r.uow.stage(&updateChange[T]{mapping: r.mapping, entity: entity, guard: guard})
}

// DeleteByID stages a delete. Deleting a missing row is not an error.
func (r *repository[T]) DeleteByID(id int64) {
	r.uow.stage(&deleteChange{table: r.mapping.table, id: id})
}

// streamQuery executes the select lazily when the sequence is ranged over and yields one scanned entity per row.
// Rows are closed when the loop ends, including on early break.
func streamQuery[T any](
	ctx context.Context,
	store Store,
	table string,
	builder *goqu.SelectDataset,
	scan func(rows adapters.DBRows) (T, error),
) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		observer, ctx := store.startQueryObservation(ctx, table)

		sqlQuery, _, err := builder.ToSQL()
		if err != nil {
			store.logError(ctx, logMsgBuildQueryFailed, err, logAttrTable, table)
			observer.finishError(errorTypeBuildQuery)
			yield(zero, errors.Join(library.ErrPersistence, err))

			return
		}

		start := time.Now()

		rows, err := store.db.Query(ctx, sqlQuery)
		if err != nil {
			store.logError(ctx, logMsgDBQueryFailed, err, logAttrQuery, sqlQuery)
			observer.finishError(errorTypeDatabaseQuery)
			yield(zero, mapDriverError(err))

			return
		}

		store.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

		defer func() {
			if closeErr := rows.Close(); closeErr != nil {
				store.logWarning(ctx, logMsgCloseRowsFailed, closeErr, logAttrTable, table)
			}
		}()

		rowCount := 0

		for rows.Next() {
			entity, scanErr := scan(rows)
			if scanErr != nil {
				store.logError(ctx, logMsgScanRowFailed, scanErr, logAttrTable, table)
				observer.finishError(errorTypeRowScan)
				yield(zero, errors.Join(library.ErrPersistence, scanErr))

				return
			}

			rowCount++

			if !yield(entity, nil) {
				observer.finishSuccess(rowCount)
				return
			}
		}

		if rowsErr := rows.Err(); rowsErr != nil {
			store.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
			observer.finishError(errorTypeDatabaseQuery)
			yield(zero, mapDriverError(rowsErr))

			return
		}

		observer.finishSuccess(rowCount)
	}
}

func failedSeq[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
