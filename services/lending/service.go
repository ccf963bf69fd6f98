// Package lending checks books out to loan cards and takes them back.
package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/shell"
)

const (
	commandTypeCheckOut = "CheckOutBook"
	commandTypeReturn   = "ReturnBook"
)

// ErrNilUnitOfWorkFactory is returned when NewService gets no factory.
var ErrNilUnitOfWorkFactory = errors.New("unit of work factory must not be nil")

// DueDateReporter is the part of the statistics engine the lending service needs.
type DueDateReporter interface {
	BookReturningDate(ctx context.Context, bookID library.BookID) (time.Time, error)
}

// ReportInvalidator drops remembered reports after the borrowing history changed.
type ReportInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service runs the lending commands. Each command is a read-check-write cycle that is retried
// with a fresh unit of work when a concurrent writer got in between.
type Service struct {
	uowFactory       library.UnitOfWorkFactory
	reporter         DueDateReporter
	invalidator      ReportInvalidator
	retryOptions     []shell.RetryOption
	metricsCollector shell.MetricsCollector
	tracingCollector shell.TracingCollector
	contextualLogger shell.ContextualLogger
	logger           shell.Logger
}

// NewService creates a lending Service.
func NewService(uowFactory library.UnitOfWorkFactory, reporter DueDateReporter, opts ...Option) (Service, error) {
	if uowFactory == nil {
		return Service{}, ErrNilUnitOfWorkFactory
	}

	s := Service{
		uowFactory: uowFactory,
		reporter:   reporter,
	}

	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return Service{}, err
		}
	}

	return s, nil
}

// CheckOut lends the book on the card at the given time.
// It fails with ErrNotFound for an unknown book or card and with ErrBookAlreadyLent while the book is out.
func (s Service) CheckOut(ctx context.Context, bookID library.BookID, cardID library.CardID, at time.Time) (library.History, error) {
	var history library.History

	err := s.handle(ctx, commandTypeCheckOut, func(ctx context.Context) error {
		var err error
		history, err = s.checkOut(ctx, bookID, cardID, at)

		return err
	})
	if err != nil {
		return library.History{}, err
	}

	return history, nil
}

func (s Service) checkOut(ctx context.Context, bookID library.BookID, cardID library.CardID, at time.Time) (library.History, error) {
	history := library.History{BookID: bookID, CardID: cardID, Loan: library.NewActiveLoan(at)}
	if err := history.Validate(); err != nil {
		return library.History{}, err
	}

	uow := s.uowFactory.NewUnitOfWork()

	if _, err := uow.Books().FindByID(ctx, bookID); err != nil {
		return library.History{}, err
	}

	if _, err := uow.Cards().FindByID(ctx, cardID); err != nil {
		return library.History{}, err
	}

	active, err := library.Collect(uow.Histories().FindByCondition(ctx, library.AllOf(
		library.Eq(library.FieldHistoryBookID, bookID),
		library.IsNull(library.FieldHistoryReturnDate),
	)))
	if err != nil {
		return library.History{}, err
	}

	if len(active) > 0 {
		return library.History{}, errors.Join(
			library.ErrBookAlreadyLent,
			fmt.Errorf("book %d is out on card %d", bookID, active[0].CardID),
		)
	}

	uow.Histories().Add(&history)

	if _, err = uow.SaveChanges(ctx); err != nil {
		// The one-active-loan index rejected us: someone else lent the book since our read.
		if errors.Is(err, library.ErrDuplicateKey) {
			return library.History{}, errors.Join(library.ErrConcurrencyConflict, err)
		}

		return library.History{}, err
	}

	return history, nil
}

// Return closes the loan with the given history id at the given time.
// It fails with ErrLoanAlreadyReturned for a closed loan and with ErrInvalidEntity for a return before the take.
func (s Service) Return(ctx context.Context, historyID library.HistoryID, at time.Time) (library.History, error) {
	var history library.History

	err := s.handle(ctx, commandTypeReturn, func(ctx context.Context) error {
		uow := s.uowFactory.NewUnitOfWork()

		loaded, err := uow.Histories().FindByID(ctx, historyID)
		if err != nil {
			return err
		}

		history, err = s.returnLoan(ctx, uow, loaded, at)

		return err
	})
	if err != nil {
		return library.History{}, err
	}

	return history, nil
}

// ReturnBook closes the active loan of the book. It fails with ErrNotFound if the book is not out.
func (s Service) ReturnBook(ctx context.Context, bookID library.BookID, at time.Time) (library.History, error) {
	var history library.History

	err := s.handle(ctx, commandTypeReturn, func(ctx context.Context) error {
		uow := s.uowFactory.NewUnitOfWork()

		active, err := library.Collect(uow.Histories().FindByCondition(ctx, library.AllOf(
			library.Eq(library.FieldHistoryBookID, bookID),
			library.IsNull(library.FieldHistoryReturnDate),
		)))
		if err != nil {
			return err
		}

		if len(active) == 0 {
			return errors.Join(library.ErrNotFound, fmt.Errorf("book %d has no active loan", bookID))
		}

		history, err = s.returnLoan(ctx, uow, active[0], at)

		return err
	})
	if err != nil {
		return library.History{}, err
	}

	return history, nil
}

func (s Service) returnLoan(ctx context.Context, uow library.UnitOfWork, history library.History, at time.Time) (library.History, error) {
	active, ok := history.Loan.(library.ActiveLoan)
	if !ok {
		return library.History{}, errors.Join(library.ErrLoanAlreadyReturned, fmt.Errorf("history %d", history.ID))
	}

	returned, err := active.Return(at)
	if err != nil {
		return library.History{}, err
	}

	history.Loan = returned
	uow.Histories().UpdateIf(history, library.AllOf(library.IsNull(library.FieldHistoryReturnDate)))

	if _, err = uow.SaveChanges(ctx); err != nil {
		return library.History{}, err
	}

	return history, nil
}

// DueDate returns when the book's current loan is due.
func (s Service) DueDate(ctx context.Context, bookID library.BookID) (time.Time, error) {
	return s.reporter.BookReturningDate(ctx, bookID)
}

// handle wraps one command: observability around the retried attempts, then report invalidation on success.
func (s Service) handle(ctx context.Context, commandType string, attempt shell.RetryableFunc) error {
	commandStart := time.Now()
	ctx, span := shell.StartCommandSpan(ctx, s.tracingCollector, commandType)
	shell.LogCommandStart(ctx, s.logger, s.contextualLogger, commandType)

	retryOptions := s.retryOptions
	if s.metricsCollector != nil {
		retryOptions = append(retryOptions[:len(retryOptions):len(retryOptions)], shell.WithMetrics(s.metricsCollector, commandType))
	}

	if err := shell.RetryWithExponentialBackoff(library.WithStrongConsistency(ctx), attempt, retryOptions...); err != nil {
		s.recordCommandError(ctx, commandType, err, time.Since(commandStart), span)
		return err
	}

	s.invalidateReports(ctx)
	s.recordCommandSuccess(ctx, commandType, time.Since(commandStart), span)

	return nil
}

func (s Service) invalidateReports(ctx context.Context) {
	if s.invalidator == nil {
		return
	}

	if err := s.invalidator.Invalidate(ctx); err != nil {
		shell.LogWarning(ctx, s.logger, s.contextualLogger, shell.LogMsgReportInvalidationFailed, shell.LogAttrError, err.Error())
	}
}

/*** Service Options and helper methods for observability ***/

// Option defines a functional option for configuring the Service.
type Option func(*Service) error

// WithRetryOptions tunes the retry of conflicting commands.
func WithRetryOptions(options ...shell.RetryOption) Option {
	return func(s *Service) error {
		s.retryOptions = options
		return nil
	}
}

// WithReportInvalidator makes successful commands drop remembered reports.
func WithReportInvalidator(invalidator ReportInvalidator) Option {
	return func(s *Service) error {
		s.invalidator = invalidator
		return nil
	}
}

// WithMetrics sets the metrics collector for the Service.
func WithMetrics(collector shell.MetricsCollector) Option {
	return func(s *Service) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Service.
func WithTracing(collector shell.TracingCollector) Option {
	return func(s *Service) error {
		s.tracingCollector = collector
		return nil
	}
}

// WithContextualLogging sets the contextual logger for the Service.
func WithContextualLogging(logger shell.ContextualLogger) Option {
	return func(s *Service) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithLogging sets the basic logger for the Service.
func WithLogging(logger shell.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

func (s Service) recordCommandSuccess(ctx context.Context, commandType string, duration time.Duration, span shell.SpanContext) {
	shell.RecordCommandMetrics(ctx, s.metricsCollector, commandType, shell.StatusSuccess, duration)
	shell.FinishCommandSpan(s.tracingCollector, span, shell.StatusSuccess, duration, nil)
	shell.LogCommandSuccess(ctx, s.logger, s.contextualLogger, commandType, shell.StatusSuccess, duration)
}

// recordCommandError records rejections, cancellations, timeouts, and exhausted retries under their own status.
func (s Service) recordCommandError(
	ctx context.Context,
	commandType string,
	err error,
	duration time.Duration,
	span shell.SpanContext,
) {
	status := shell.ClassifyError(err)

	shell.RecordCommandMetrics(ctx, s.metricsCollector, commandType, status, duration)
	shell.FinishCommandSpan(s.tracingCollector, span, status, duration, err)
	shell.LogCommandError(ctx, s.logger, s.contextualLogger, commandType, err)
}
