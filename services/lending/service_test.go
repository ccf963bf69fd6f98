package lending_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine"
	"github.com/AntonStoeckl/library-history-go/services/lending"
	"github.com/AntonStoeckl/library-history-go/shell"
	"github.com/AntonStoeckl/library-history-go/statistics"
	. "github.com/AntonStoeckl/library-history-go/testutil/helper" //nolint:revive
)

// racingFactory runs interfere right before the first commit, simulating a concurrent writer.
type racingFactory struct {
	inner      library.UnitOfWorkFactory
	interfere  func()
	interfered bool
}

func (f *racingFactory) NewUnitOfWork() library.UnitOfWork {
	return &racingUnitOfWork{UnitOfWork: f.inner.NewUnitOfWork(), factory: f}
}

type racingUnitOfWork struct {
	library.UnitOfWork
	factory *racingFactory
}

func (u *racingUnitOfWork) SaveChanges(ctx context.Context) (int64, error) {
	if !u.factory.interfered {
		u.factory.interfered = true
		u.factory.interfere()
	}

	return u.UnitOfWork.SaveChanges(ctx)
}

type invalidatorSpy struct {
	calls int
	err   error
}

func (s *invalidatorSpy) Invalidate(context.Context) error {
	s.calls++
	return s.err
}

func newService(t *testing.T, factory library.UnitOfWorkFactory, opts ...lending.Option) lending.Service {
	engine, err := statistics.NewEngine(factory)
	require.NoError(t, err, "error in arranging test data")

	allOptions := append([]lending.Option{lending.WithRetryOptions(shell.WithBaseDelay(0))}, opts...)

	service, err := lending.NewService(factory, engine, allOptions...)
	require.NoError(t, err, "error in arranging test data")

	return service
}

type fixture struct {
	store postgresengine.Store
	book  library.Book
	card  library.Card
}

func givenBookAndCard(t *testing.T) fixture {
	store := NewSQLiteStore(t)
	book := GivenBook(t, store, "A song of ice and fire")
	_, card := GivenReaderWithCard(t, store, "Jon Snow")

	return fixture{store: store, book: book, card: card}
}

func Test_Service_CheckOut(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := givenBookAndCard(t)
	invalidator := &invalidatorSpy{}
	service := newService(t, f.store, lending.WithReportInvalidator(invalidator))

	// act
	history, err := service.CheckOut(ctx, f.book.ID, f.card.ID, Day(1))

	// assert
	require.NoError(t, err)
	assert.NotZero(t, history.ID)
	assert.Equal(t, library.NewActiveLoan(Day(1)), history.Loan)
	assert.Equal(t, 1, invalidator.calls)

	due, err := service.DueDate(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Equal(t, Day(1).Add(statistics.DefaultLoanPeriod), due)
}

func Test_Service_CheckOut_Rejections(t *testing.T) {
	f := givenBookAndCard(t)
	lentBook := GivenBook(t, f.store, "A feast for crows")
	GivenActiveLoan(t, f.store, lentBook.ID, f.card.ID, Day(0))

	tests := []struct {
		name        string
		bookID      library.BookID
		cardID      library.CardID
		expectedErr error
	}{
		{"unknown_book", 42, f.card.ID, library.ErrNotFound},
		{"unknown_card", f.book.ID, 42, library.ErrNotFound},
		{"book_already_lent", lentBook.ID, f.card.ID, library.ErrBookAlreadyLent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			invalidator := &invalidatorSpy{}
			service := newService(t, f.store, lending.WithReportInvalidator(invalidator))

			_, err := service.CheckOut(context.Background(), tc.bookID, tc.cardID, Day(1))

			assert.ErrorIs(t, err, tc.expectedErr)
			assert.Zero(t, invalidator.calls, "a refused command changes nothing")
		})
	}
}

func Test_Service_CheckOut_LosingARaceEndsAsBookAlreadyLent(t *testing.T) {
	// arrange
	f := givenBookAndCard(t)
	_, rivalsCard := GivenReaderWithCard(t, f.store, "Arya Stark")

	factory := &racingFactory{
		inner: f.store,
		interfere: func() {
			GivenActiveLoan(t, f.store, f.book.ID, rivalsCard.ID, Day(1))
		},
	}

	metricsCollector := NewMetricsCollectorSpy(true)
	service := newService(t, factory, lending.WithMetrics(metricsCollector))

	// act
	_, err := service.CheckOut(context.Background(), f.book.ID, f.card.ID, Day(1))

	// assert
	assert.ErrorIs(t, err, library.ErrBookAlreadyLent)
	assert.True(t, metricsCollector.HasCounterRecordForMetric(shell.CommandHandlerRetriesMetric).
		WithLabel(shell.LogAttrCommandType, "CheckOutBook").
		Assert(), "the conflicting attempt is retried")
	assert.True(t, metricsCollector.HasCounterRecordForMetric(shell.CommandHandlerRejectedMetric).
		WithStatus(shell.StatusRejected).
		Assert())

	active, err := library.Collect(f.store.NewUnitOfWork().Histories().FindByCondition(
		context.Background(),
		statistics.ActiveLoansCondition(),
	))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, rivalsCard.ID, active[0].CardID, "the book has exactly one holder")
}

func Test_Service_CheckOut_GivesUpAfterMaxAttempts(t *testing.T) {
	// arrange
	f := givenBookAndCard(t)
	metricsCollector := NewMetricsCollectorSpy(true)
	service := newService(t, conflictingFactory{inner: f.store},
		lending.WithRetryOptions(shell.WithBaseDelay(0), shell.WithMaxAttempts(3)),
		lending.WithMetrics(metricsCollector),
	)

	// act
	_, err := service.CheckOut(context.Background(), f.book.ID, f.card.ID, Day(1))

	// assert
	assert.ErrorIs(t, err, library.ErrConcurrencyConflict)
	assert.Equal(t, 2, metricsCollector.CountCounterRecordsForMetric(shell.CommandHandlerRetriesMetric))
	assert.True(t, metricsCollector.HasCounterRecordForMetric(shell.CommandHandlerMaxRetriesReachedMetric).Assert())
	assert.True(t, metricsCollector.HasCounterRecordForMetric(shell.CommandHandlerConcurrencyConflictMetric).Assert())
}

// conflictingFactory hands out units of work whose commits always lose.
type conflictingFactory struct {
	inner library.UnitOfWorkFactory
}

func (f conflictingFactory) NewUnitOfWork() library.UnitOfWork {
	return conflictingUnitOfWork{UnitOfWork: f.inner.NewUnitOfWork()}
}

type conflictingUnitOfWork struct {
	library.UnitOfWork
}

func (u conflictingUnitOfWork) SaveChanges(context.Context) (int64, error) {
	return 0, errors.Join(library.ErrPersistence, library.ErrConcurrencyConflict)
}

func Test_Service_Return(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := givenBookAndCard(t)
	loan := GivenActiveLoan(t, f.store, f.book.ID, f.card.ID, Day(1))
	invalidator := &invalidatorSpy{}
	service := newService(t, f.store, lending.WithReportInvalidator(invalidator))

	// act
	returned, err := service.Return(ctx, loan.ID, Day(5))

	// assert
	require.NoError(t, err)
	assert.Equal(t, library.ReturnedLoan{Taken: Day(1), Returned: Day(5)}, returned.Loan)
	assert.Equal(t, 1, invalidator.calls)

	_, err = service.DueDate(ctx, f.book.ID)
	assert.ErrorIs(t, err, library.ErrNotFound, "a returned book has no due date")
}

func Test_Service_Return_Rejections(t *testing.T) {
	f := givenBookAndCard(t)
	otherBook := GivenBook(t, f.store, "A feast for crows")
	activeLoan := GivenActiveLoan(t, f.store, f.book.ID, f.card.ID, Day(3))
	returnedLoan := GivenReturnedLoan(t, f.store, otherBook.ID, f.card.ID, Day(0), Day(1))

	tests := []struct {
		name        string
		historyID   library.HistoryID
		expectedErr error
	}{
		{"unknown_loan", 42, library.ErrNotFound},
		{"already_returned", returnedLoan.ID, library.ErrLoanAlreadyReturned},
		{"returned_before_taken", activeLoan.ID, library.ErrInvalidEntity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := newService(t, f.store)

			_, err := service.Return(context.Background(), tc.historyID, Day(2))

			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func Test_Service_Return_LosingARaceEndsAsLoanAlreadyReturned(t *testing.T) {
	// arrange
	f := givenBookAndCard(t)
	loan := GivenActiveLoan(t, f.store, f.book.ID, f.card.ID, Day(1))

	factory := &racingFactory{
		inner: f.store,
		interfere: func() {
			returned, err := library.NewActiveLoan(Day(1)).Return(Day(2))
			require.NoError(t, err, "error in arranging test data")

			uow := f.store.NewUnitOfWork()
			uow.Histories().Update(library.History{ID: loan.ID, BookID: loan.BookID, CardID: loan.CardID, Loan: returned})
			_, err = uow.SaveChanges(context.Background())
			require.NoError(t, err, "error in arranging test data")
		},
	}

	service := newService(t, factory)

	// act
	_, err := service.Return(context.Background(), loan.ID, Day(3))

	// assert
	assert.ErrorIs(t, err, library.ErrLoanAlreadyReturned)

	stored, err := f.store.NewUnitOfWork().Histories().FindByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, library.ReturnedLoan{Taken: Day(1), Returned: Day(2)}, stored.Loan, "the first return wins")
}

func Test_Service_ReturnBook(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := givenBookAndCard(t)
	loan := GivenActiveLoan(t, f.store, f.book.ID, f.card.ID, Day(1))
	service := newService(t, f.store)

	// act
	returned, err := service.ReturnBook(ctx, f.book.ID, Day(2))

	// assert
	require.NoError(t, err)
	assert.Equal(t, loan.ID, returned.ID)

	_, err = service.ReturnBook(ctx, f.book.ID, Day(3))
	assert.ErrorIs(t, err, library.ErrNotFound, "the book is no longer out")
}

func Test_Service_FailedInvalidationIsOnlyAWarning(t *testing.T) {
	// arrange
	f := givenBookAndCard(t)
	logHandler := NewLogHandlerSpy(false)
	service := newService(t, f.store,
		lending.WithReportInvalidator(&invalidatorSpy{err: errors.New("redis is down")}),
		lending.WithLogging(slog.New(logHandler)),
	)

	// act
	_, err := service.CheckOut(context.Background(), f.book.ID, f.card.ID, Day(1))

	// assert
	require.NoError(t, err)
	assert.True(t, logHandler.HasWarnLogWithMessage(shell.LogMsgReportInvalidationFailed).
		WithAttr(shell.LogAttrError, "redis is down").
		Assert())
}

func Test_Service_Observability(t *testing.T) {
	// arrange
	f := givenBookAndCard(t)
	metricsCollector := NewMetricsCollectorSpy(true)
	tracingCollector := NewTracingCollectorSpy(true)
	contextualLogger := NewContextualLoggerSpy(true)
	service := newService(t, f.store,
		lending.WithMetrics(metricsCollector),
		lending.WithTracing(tracingCollector),
		lending.WithContextualLogging(contextualLogger),
	)

	// act
	_, okErr := service.CheckOut(context.Background(), f.book.ID, f.card.ID, Day(1))
	_, rejectedErr := service.CheckOut(context.Background(), f.book.ID, f.card.ID, Day(2))

	// assert
	require.NoError(t, okErr)
	require.Error(t, rejectedErr)

	assert.True(t, metricsCollector.HasDurationRecordForMetric(shell.CommandHandlerDurationMetric).
		WithLabel(shell.LogAttrCommandType, "CheckOutBook").
		WithStatus(shell.StatusSuccess).
		Assert())
	assert.True(t, metricsCollector.HasCounterRecordForMetric(shell.CommandHandlerRejectedMetric).
		WithLabel(shell.LogAttrCommandType, "CheckOutBook").
		Assert())
	assert.True(t, tracingCollector.HasSpanRecordForName(shell.SpanNameCommandHandle).
		WithStartAttribute(shell.LogAttrCommandType, "CheckOutBook").
		WithStatus(shell.StatusRejected).
		Assert())
	assert.True(t, contextualLogger.HasLogWithArg("info", shell.LogMsgCommandCompleted, shell.LogAttrCommandType, "CheckOutBook"))
	assert.True(t, contextualLogger.HasLog("error", shell.LogMsgCommandFailed))
}

func Test_NewService_RequiresAFactory(t *testing.T) {
	_, err := lending.NewService(nil, nil)

	assert.ErrorIs(t, err, lending.ErrNilUnitOfWorkFactory)
}
