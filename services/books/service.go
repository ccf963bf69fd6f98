// Package books maintains the library's catalog.
package books

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/statistics"
)

// PopularityReporter is the part of the statistics engine the books service needs.
type PopularityReporter interface {
	MostPopularBooks(ctx context.Context, count int) ([]statistics.PopularBook, error)
}

// BookFilter selects books by author and/or year. A zero Year means "any year".
type BookFilter struct {
	Author string
	Year   int
}

// Service is a thin CRUD layer over the Book repository.
type Service struct {
	uowFactory library.UnitOfWorkFactory
	reporter   PopularityReporter
}

// NewService creates a books Service.
func NewService(uowFactory library.UnitOfWorkFactory, reporter PopularityReporter) Service {
	return Service{uowFactory: uowFactory, reporter: reporter}
}

// Create stores a new book and returns it with its assigned id.
func (s Service) Create(ctx context.Context, book library.Book) (library.Book, error) {
	if err := book.Validate(); err != nil {
		return library.Book{}, err
	}

	uow := s.uowFactory.NewUnitOfWork()
	uow.Books().Add(&book)

	if _, err := uow.SaveChanges(ctx); err != nil {
		return library.Book{}, err
	}

	return book, nil
}

// Get returns ErrNotFound for an unknown id.
func (s Service) Get(ctx context.Context, id library.BookID) (library.Book, error) {
	return s.uowFactory.NewUnitOfWork().Books().FindByID(ctx, id)
}

// List returns the whole catalog ordered by id.
func (s Service) List(ctx context.Context) ([]library.Book, error) {
	return library.Collect(s.uowFactory.NewUnitOfWork().Books().FindAll(ctx))
}

// Update replaces the stored book. It returns ErrNotFound if the book does not exist.
func (s Service) Update(ctx context.Context, book library.Book) error {
	if err := book.Validate(); err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork()
	uow.Books().Update(book)

	_, err := uow.SaveChanges(ctx)
	if errors.Is(err, library.ErrConcurrencyConflict) {
		return errors.Join(library.ErrNotFound, fmt.Errorf("book %d", book.ID))
	}

	return err
}

// Delete removes the book. Deleting an unknown book is a no-op;
// a book with borrowing history cannot be deleted (ErrForeignKeyViolation).
func (s Service) Delete(ctx context.Context, id library.BookID) error {
	uow := s.uowFactory.NewUnitOfWork()
	uow.Books().DeleteByID(id)

	_, err := uow.SaveChanges(ctx)

	return err
}

// Filter returns the books matching every given criterion. At least one criterion is required.
func (s Service) Filter(ctx context.Context, filter BookFilter) ([]library.Book, error) {
	var predicates []library.Predicate

	if filter.Author != "" {
		predicates = append(predicates, library.Eq(library.FieldBookAuthor, filter.Author))
	}

	if filter.Year != 0 {
		predicates = append(predicates, library.Eq(library.FieldBookYear, filter.Year))
	}

	if len(predicates) == 0 {
		return nil, errors.Join(library.ErrInvalidRange, errors.New("book filter needs an author or a year"))
	}

	condition := library.AllOf(predicates[0], predicates[1:]...)

	return library.Collect(s.uowFactory.NewUnitOfWork().Books().FindByCondition(ctx, condition))
}

// MostPopular returns at most count books ranked by how often they were borrowed.
func (s Service) MostPopular(ctx context.Context, count int) ([]statistics.PopularBook, error) {
	return s.reporter.MostPopularBooks(ctx, count)
}
