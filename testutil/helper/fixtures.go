package helper

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-history-go/library"
)

// FixedTime is the reference instant of the fixtures. Whole seconds in UTC survive every driver unchanged.
var FixedTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// Day returns FixedTime shifted by n days.
func Day(n int) time.Time {
	return FixedTime.AddDate(0, 0, n)
}

// GivenBook stores a book and returns it with its assigned id.
func GivenBook(t testing.TB, factory library.UnitOfWorkFactory, title string) library.Book {
	book := library.Book{Title: title, Author: "Jon Snow", Year: 1996}

	uow := factory.NewUnitOfWork()
	uow.Books().Add(&book)
	_, err := uow.SaveChanges(context.Background())
	require.NoError(t, err, "error in arranging test data")

	return book
}

// GivenBooks stores count books titled "Book 1" to "Book <count>".
func GivenBooks(t testing.TB, factory library.UnitOfWorkFactory, count int) []library.Book {
	books := make([]library.Book, 0, count)
	for i := 1; i <= count; i++ {
		books = append(books, GivenBook(t, factory, fmt.Sprintf("Book %d", i)))
	}

	return books
}

// GivenReaderWithCard stores a reader and one card issued at FixedTime.
func GivenReaderWithCard(t testing.TB, factory library.UnitOfWorkFactory, name string) (library.Reader, library.Card) {
	reader := library.Reader{
		Name:  name,
		Email: strings.ToLower(strings.ReplaceAll(name, " ", "_")) + "@epam.com",
	}

	uow := factory.NewUnitOfWork()
	uow.Readers().Add(&reader)
	_, err := uow.SaveChanges(context.Background())
	require.NoError(t, err, "error in arranging test data")

	card := library.Card{ReaderID: reader.ID, Created: FixedTime}
	uow.Cards().Add(&card)
	_, err = uow.SaveChanges(context.Background())
	require.NoError(t, err, "error in arranging test data")

	return reader, card
}

// GivenActiveLoan stores a history row for a book that was not returned yet.
func GivenActiveLoan(
	t testing.TB,
	factory library.UnitOfWorkFactory,
	bookID library.BookID,
	cardID library.CardID,
	taken time.Time,
) library.History {
	return givenHistory(t, factory, library.History{BookID: bookID, CardID: cardID, Loan: library.NewActiveLoan(taken)})
}

// GivenReturnedLoan stores a history row for a completed loan.
func GivenReturnedLoan(
	t testing.TB,
	factory library.UnitOfWorkFactory,
	bookID library.BookID,
	cardID library.CardID,
	taken time.Time,
	returned time.Time,
) library.History {
	loan, err := library.NewReturnedLoan(taken, returned)
	require.NoError(t, err, "error in arranging test data")

	return givenHistory(t, factory, library.History{BookID: bookID, CardID: cardID, Loan: loan})
}

func givenHistory(t testing.TB, factory library.UnitOfWorkFactory, history library.History) library.History {
	uow := factory.NewUnitOfWork()
	uow.Histories().Add(&history)
	_, err := uow.SaveChanges(context.Background())
	require.NoError(t, err, "error in arranging test data")

	return history
}
