package readers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine"
	"github.com/AntonStoeckl/library-history-go/services/readers"
	"github.com/AntonStoeckl/library-history-go/statistics"
	. "github.com/AntonStoeckl/library-history-go/testutil/helper" //nolint:revive
)

func newService(t *testing.T) (readers.Service, postgresengine.Store) {
	store := NewSQLiteStore(t)

	engine, err := statistics.NewEngine(store)
	require.NoError(t, err, "error in arranging test data")

	return readers.NewService(store, engine), store
}

func Test_Service_Create_WithProfile(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, _ := newService(t)

	// act
	created, err := service.Create(ctx, readers.ReaderWithProfile{
		Reader:  library.Reader{Name: "Jon Snow", Email: "jon_snow@epam.com"},
		Profile: &library.ReaderProfile{Address: "Castle Black", Phone: "+1 555 0100"},
	})

	// assert
	require.NoError(t, err)
	assert.NotZero(t, created.Reader.ID)
	require.NotNil(t, created.Profile)
	assert.Equal(t, created.Reader.ID, created.Profile.ReaderID)

	found, err := service.Get(ctx, created.Reader.ID)
	require.NoError(t, err)
	assert.Equal(t, created, found)
}

func Test_Service_Create_WithoutProfile(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, _ := newService(t)

	// act
	created, err := service.Create(ctx, readers.ReaderWithProfile{
		Reader: library.Reader{Name: "Arya Stark", Email: "arya_stark@epam.com"},
	})

	// assert
	require.NoError(t, err)

	found, err := service.Get(ctx, created.Reader.ID)
	require.NoError(t, err)
	assert.Nil(t, found.Profile)
	assert.Equal(t, created.Reader, found.Reader)
}

func Test_Service_Create_RejectsInvalidReader(t *testing.T) {
	// arrange
	service, _ := newService(t)

	// act
	_, err := service.Create(context.Background(), readers.ReaderWithProfile{
		Reader: library.Reader{Name: "Jon Snow", Email: "not-an-email"},
	})

	// assert
	assert.ErrorIs(t, err, library.ErrInvalidEntity)
}

func Test_Service_Create_DuplicateEmailIsRefused(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, _ := newService(t)
	reader := library.Reader{Name: "Jon Snow", Email: "jon_snow@epam.com"}
	_, err := service.Create(ctx, readers.ReaderWithProfile{Reader: reader})
	require.NoError(t, err, "error in arranging test data")

	// act
	_, err = service.Create(ctx, readers.ReaderWithProfile{Reader: reader})

	// assert
	assert.ErrorIs(t, err, library.ErrDuplicateKey)

	all, listErr := service.List(ctx)
	require.NoError(t, listErr)
	assert.Len(t, all, 1)
}

func Test_Service_Get_UnknownReaderIsNotFound(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Get(context.Background(), 42)

	assert.ErrorIs(t, err, library.ErrNotFound)
}

func Test_Service_Update(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, store := newService(t)
	reader, _ := GivenReaderWithCard(t, store, "Jon Snow")
	reader.Name = "Aegon Targaryen"

	// act
	err := service.Update(ctx, reader)

	// assert
	require.NoError(t, err)

	found, err := service.Get(ctx, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aegon Targaryen", found.Reader.Name)
}

func Test_Service_Update_UnknownReaderIsNotFound(t *testing.T) {
	service, _ := newService(t)

	err := service.Update(context.Background(), library.Reader{ID: 42, Name: "Jon Snow", Email: "jon_snow@epam.com"})

	assert.ErrorIs(t, err, library.ErrNotFound)
}

func Test_Service_Delete_RemovesTheProfileToo(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, store := newService(t)
	created, err := service.Create(ctx, readers.ReaderWithProfile{
		Reader:  library.Reader{Name: "Jon Snow", Email: "jon_snow@epam.com"},
		Profile: &library.ReaderProfile{Address: "Castle Black"},
	})
	require.NoError(t, err, "error in arranging test data")

	// act
	err = service.Delete(ctx, created.Reader.ID)

	// assert
	require.NoError(t, err)

	_, err = service.Get(ctx, created.Reader.ID)
	assert.ErrorIs(t, err, library.ErrNotFound)

	profiles, err := library.Collect(store.NewUnitOfWork().ReaderProfiles().FindAll(ctx))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func Test_Service_Delete_ReaderWithCardIsRefused(t *testing.T) {
	// arrange
	service, store := newService(t)
	reader, _ := GivenReaderWithCard(t, store, "Jon Snow")

	// act
	err := service.Delete(context.Background(), reader.ID)

	// assert
	assert.ErrorIs(t, err, library.ErrForeignKeyViolation)
}

func Test_Service_UpsertProfile(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, store := newService(t)
	reader, _ := GivenReaderWithCard(t, store, "Jon Snow")

	// act
	inserted, insertErr := service.UpsertProfile(ctx, library.ReaderProfile{ReaderID: reader.ID, Address: "Winterfell"})
	updated, updateErr := service.UpsertProfile(ctx, library.ReaderProfile{ReaderID: reader.ID, Address: "Castle Black"})

	// assert
	require.NoError(t, insertErr)
	require.NoError(t, updateErr)
	assert.Equal(t, inserted.ID, updated.ID, "the second call replaces the first profile")

	found, err := service.Get(ctx, reader.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Profile)
	assert.Equal(t, "Castle Black", found.Profile.Address)
}

func Test_Service_UpsertProfile_UnknownReaderIsNotFound(t *testing.T) {
	service, _ := newService(t)

	_, err := service.UpsertProfile(context.Background(), library.ReaderProfile{ReaderID: 42})

	assert.ErrorIs(t, err, library.ErrNotFound)
}

func Test_Service_IssueCard(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, store := newService(t)
	reader, first := GivenReaderWithCard(t, store, "Jon Snow")

	// act
	second, err := service.IssueCard(ctx, reader.ID, Day(3))

	// assert
	require.NoError(t, err)
	assert.NotZero(t, second.ID)

	cards, err := service.Cards(ctx, reader.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, first.ID, cards[0].ID)
	assert.Equal(t, second.ID, cards[1].ID)
}

func Test_Service_IssueCard_UnknownReaderIsNotFound(t *testing.T) {
	service, _ := newService(t)

	_, err := service.IssueCard(context.Background(), 42, Day(0))

	assert.ErrorIs(t, err, library.ErrNotFound)
}

func Test_Service_Reports_DelegateToTheEngine(t *testing.T) {
	// arrange
	ctx := context.Background()
	service, store := newService(t)
	books := GivenBooks(t, store, 2)
	jon, jonsCard := GivenReaderWithCard(t, store, "Jon Snow")
	arya, aryasCard := GivenReaderWithCard(t, store, "Arya Stark")
	GivenReturnedLoan(t, store, books[0].ID, aryasCard.ID, Day(1), Day(2))
	GivenActiveLoan(t, store, books[1].ID, jonsCard.ID, Day(3))

	// act
	holders, holdersErr := service.DontReturnBooks(ctx)
	active, activeErr := service.MostActive(ctx, 5, Day(0), Day(10))

	// assert
	require.NoError(t, holdersErr)
	assert.Equal(t, []library.Reader{jon}, holders)

	require.NoError(t, activeErr)
	assert.Equal(t, []statistics.ReaderActivity{{ReaderID: arya.ID, ReaderName: arya.Name, BorrowCount: 1}}, active)
}
