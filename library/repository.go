package library

import (
	"context"
	"iter"
)

// Repository is the uniform CRUD and query surface for one entity type.
//
// Reads are lazy: rows are fetched while the sequence is iterated and released when iteration stops.
// Mutations are staged and become durable only when the owning UnitOfWork saves its changes.
type Repository[T any] interface {
	// FindAll yields every entity, unfiltered.
	FindAll(ctx context.Context) iter.Seq2[T, error]

	// FindByCondition yields the entities matching the condition, evaluated by the store.
	FindByCondition(ctx context.Context, condition Condition) iter.Seq2[T, error]

	// FindByID returns ErrNotFound if there is no entity with this id.
	FindByID(ctx context.Context, id int64) (T, error)

	// Add stages an insert. An entity with ID 0 receives its generated ID on commit.
	Add(entity *T)

	// AddRange stages inserts in the given order.
	AddRange(entities ...*T)

	// Update stages an update by ID. The commit fails with ErrConcurrencyConflict if the row is gone.
	Update(entity T)

	// UpdateIf stages an update by ID that only applies while the stored row still matches the guard.
	// The commit fails with ErrConcurrencyConflict otherwise.
	UpdateIf(entity T, guard Condition)

	// DeleteByID stages a delete. Deleting an absent ID is a silent no-op.
	DeleteByID(id int64)
}

// HistoryRepository adds the joined read the statistics engine depends on.
type HistoryRepository interface {
	Repository[History]

	// FindWithDetails yields History rows, filtered by a condition on History fields,
	// joined with their Book, Card, and Reader.
	FindWithDetails(ctx context.Context, condition Condition) iter.Seq2[HistoryDetails, error]
}

// UnitOfWork aggregates one lazily constructed repository per entity type for one logical operation.
// It is not safe for concurrent use.
type UnitOfWork interface {
	Books() Repository[Book]
	Cards() Repository[Card]
	Histories() HistoryRepository
	Readers() Repository[Reader]
	ReaderProfiles() Repository[ReaderProfile]

	// SaveChanges commits all staged changes atomically and returns the number of affected rows.
	// On failure nothing is committed, the staged changes are kept, and the error wraps ErrPersistence.
	SaveChanges(ctx context.Context) (int64, error)

	// Discard drops all staged changes.
	Discard()

	// Pending returns the number of staged changes.
	Pending() int
}

// UnitOfWorkFactory opens a fresh UnitOfWork per request.
type UnitOfWorkFactory interface {
	NewUnitOfWork() UnitOfWork
}

// Collect materializes a lazy sequence, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	result := make([]T, 0)

	for item, err := range seq {
		if err != nil {
			return nil, err
		}

		result = append(result, item)
	}

	return result, nil
}
