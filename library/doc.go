// Package library provides the core abstractions and types of the library borrowing history backend.
//
// This package defines the entities, the loan state, the declarative Condition used to filter
// entities, the Repository and UnitOfWork contracts every store implementation fulfills, and the
// common error definitions.
//
// Key types:
//   - Book, Reader, ReaderProfile, Card, History: plain records
//   - Loan: either an ActiveLoan or a ReturnedLoan, never a nullable return date
//   - Condition: declarative predicate, compiled by stores and evaluable in memory
//   - Repository / HistoryRepository / UnitOfWork: staged CRUD, committed atomically
//
// Common usage pattern:
//
//	uow := store.NewUnitOfWork()
//	defer uow.Discard()
//
//	books, err := library.Collect(uow.Books().FindByCondition(ctx,
//		library.AllOf(library.Eq(library.FieldBookAuthor, "Jon Snow"))))
//	if err != nil {
//		// handle error
//	}
//
//	uow.Books().Add(&library.Book{Title: "A song of ice and fire", Author: "Jon Snow", Year: 1996})
//	affected, err := uow.SaveChanges(ctx)
package library
