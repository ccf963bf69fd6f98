package books_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine"
	"github.com/AntonStoeckl/library-history-go/services/books"
	"github.com/AntonStoeckl/library-history-go/statistics"
	. "github.com/AntonStoeckl/library-history-go/testutil/helper" //nolint:revive
)

func newService(t *testing.T) (books.Service, postgresengine.Store) {
	store := NewSQLiteStore(t)

	engine, err := statistics.NewEngine(store)
	require.NoError(t, err, "error in arranging test data")

	return books.NewService(store, engine), store
}

func Test_Service_CreateAndGet(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, _ := newService(t)

	// act
	created, err := service.Create(ctx, library.Book{Title: "A song of ice and fire", Author: "Jon Snow", Year: 1996})

	// assert
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	found, err := service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, found)
}

func Test_Service_Create_RejectsInvalidBook(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Create(context.Background(), library.Book{Author: "Jon Snow", Year: 1996})

	assert.ErrorIs(t, err, library.ErrInvalidEntity)
}

func Test_Service_Get_UnknownBookIsNotFound(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Get(context.Background(), 42)

	assert.ErrorIs(t, err, library.ErrNotFound)
}

func Test_Service_List(t *testing.T) {
	// arrange
	service, store := newService(t)
	given := GivenBooks(t, store, 3)

	// act
	all, err := service.List(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, given, all)
}

func Test_Service_Update(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, store := newService(t)
	book := GivenBook(t, store, "A song of ice and fire")
	book.Year = 2011

	// act
	err := service.Update(ctx, book)

	// assert
	require.NoError(t, err)

	found, err := service.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2011, found.Year)
}

func Test_Service_Update_UnknownBookIsNotFound(t *testing.T) {
	service, _ := newService(t)

	err := service.Update(context.Background(), library.Book{ID: 42, Title: "Dune", Author: "Frank Herbert", Year: 1965})

	assert.ErrorIs(t, err, library.ErrNotFound)
}

func Test_Service_Delete(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, store := newService(t)
	book := GivenBook(t, store, "A song of ice and fire")

	// act
	err := service.Delete(ctx, book.ID)

	// assert
	require.NoError(t, err)

	_, err = service.Get(ctx, book.ID)
	assert.ErrorIs(t, err, library.ErrNotFound)
	assert.NoError(t, service.Delete(ctx, book.ID), "deleting an absent book is a no-op")
}

func Test_Service_Delete_BookWithHistoryIsRefused(t *testing.T) {
	// arrange
	service, store := newService(t)
	book := GivenBook(t, store, "A song of ice and fire")
	_, card := GivenReaderWithCard(t, store, "Jon Snow")
	GivenReturnedLoan(t, store, book.ID, card.ID, Day(0), Day(1))

	// act
	err := service.Delete(context.Background(), book.ID)

	// assert
	assert.ErrorIs(t, err, library.ErrPersistence)
	assert.ErrorIs(t, err, library.ErrForeignKeyViolation)
}

func Test_Service_Filter(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, _ := newService(t)
	dune, _ := service.Create(ctx, library.Book{Title: "Dune", Author: "Frank Herbert", Year: 1965})
	messiah, _ := service.Create(ctx, library.Book{Title: "Dune Messiah", Author: "Frank Herbert", Year: 1969})
	_, _ = service.Create(ctx, library.Book{Title: "Stranger in a Strange Land", Author: "Robert A. Heinlein", Year: 1961})

	tests := []struct {
		name     string
		filter   books.BookFilter
		expected []library.Book
	}{
		{"by_author", books.BookFilter{Author: "Frank Herbert"}, []library.Book{dune, messiah}},
		{"by_year", books.BookFilter{Year: 1969}, []library.Book{messiah}},
		{"by_author_and_year", books.BookFilter{Author: "Frank Herbert", Year: 1965}, []library.Book{dune}},
		{"no_match", books.BookFilter{Author: "Jon Snow"}, []library.Book{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := service.Filter(ctx, tc.filter)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func Test_Service_Filter_RequiresACriterion(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Filter(context.Background(), books.BookFilter{})

	assert.ErrorIs(t, err, library.ErrInvalidRange)
}

func Test_Service_MostPopular_DelegatesToTheEngine(t *testing.T) {
	// arrange
	service, store := newService(t)
	given := GivenBooks(t, store, 2)
	_, card := GivenReaderWithCard(t, store, "Jon Snow")
	GivenReturnedLoan(t, store, given[1].ID, card.ID, Day(0), Day(1))

	// act
	result, err := service.MostPopular(context.Background(), 5)

	// assert
	require.NoError(t, err)
	assert.Equal(t, []statistics.PopularBook{{Book: given[1], BorrowCount: 1}}, result)
}
