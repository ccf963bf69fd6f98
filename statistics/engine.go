package statistics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/shell"
)

const (
	queryTypeMostPopularBooks           = "MostPopularBooks"
	queryTypeReadersWhoTookTheMostBooks = "ReadersWhoTookTheMostBooks"
	queryTypeReadersThatDontReturnBooks = "ReadersThatDontReturnBooks"
	queryTypeBookReturningDate          = "BookReturningDate"
)

var (
	// ErrNilUnitOfWorkFactory is returned when NewEngine gets no factory.
	ErrNilUnitOfWorkFactory = errors.New("unit of work factory must not be nil")

	// ErrInvalidLoanPeriod is returned when WithLoanPeriod gets a non-positive duration.
	ErrInvalidLoanPeriod = errors.New("loan period must be positive")
)

// ReportCache remembers computed reports. compute runs only on a miss and its errors are never cached.
type ReportCache interface {
	Remember(ctx context.Context, key string, dst any, compute func(ctx context.Context) (any, error)) error
}

// Engine runs the borrowing-history reports against a store.
// It is safe for concurrent use; every call opens its own unit of work.
type Engine struct {
	uowFactory       library.UnitOfWorkFactory
	loanPeriod       time.Duration
	cache            ReportCache
	metricsCollector shell.MetricsCollector
	tracingCollector shell.TracingCollector
	contextualLogger shell.ContextualLogger
	logger           shell.Logger
}

// NewEngine creates an Engine reading from the units of work of uowFactory.
func NewEngine(uowFactory library.UnitOfWorkFactory, opts ...Option) (Engine, error) {
	if uowFactory == nil {
		return Engine{}, ErrNilUnitOfWorkFactory
	}

	e := Engine{
		uowFactory: uowFactory,
		loanPeriod: DefaultLoanPeriod,
	}

	for _, opt := range opts {
		if err := opt(&e); err != nil {
			return Engine{}, err
		}
	}

	return e, nil
}

// LoanPeriod returns the configured loan period.
func (e Engine) LoanPeriod() time.Duration {
	return e.loanPeriod
}

// MostPopularBooks returns at most count books ranked by how often they were borrowed.
func (e Engine) MostPopularBooks(ctx context.Context, count int) ([]PopularBook, error) {
	return runReport(
		ctx, e, queryTypeMostPopularBooks,
		fmt.Sprintf("report:most_popular_books:%d", count),
		func() error {
			if count < 0 {
				return errors.Join(library.ErrInvalidRange, fmt.Errorf("count must not be negative, got %d", count))
			}
			return nil
		},
		func(ctx context.Context, uow library.UnitOfWork) ([]PopularBook, error) {
			history, err := e.fetch(ctx, uow, queryTypeMostPopularBooks, library.MatchAll())
			if err != nil {
				return nil, err
			}

			return project(ctx, e, queryTypeMostPopularBooks, func() ([]PopularBook, error) {
				return ProjectMostPopularBooks(history, count)
			})
		},
		lenOf[PopularBook],
	)
}

// ReadersWhoTookTheMostBooks returns at most count readers ranked by the loans they took at or after from
// and returned at or before to.
func (e Engine) ReadersWhoTookTheMostBooks(ctx context.Context, count int, from, to time.Time) ([]ReaderActivity, error) {
	return runReport(
		ctx, e, queryTypeReadersWhoTookTheMostBooks,
		fmt.Sprintf("report:top_readers:%d:%d:%d", count, from.UnixNano(), to.UnixNano()),
		func() error { return validateWindow(count, from, to) },
		func(ctx context.Context, uow library.UnitOfWork) ([]ReaderActivity, error) {
			history, err := e.fetch(ctx, uow, queryTypeReadersWhoTookTheMostBooks, WindowCondition(from, to))
			if err != nil {
				return nil, err
			}

			return project(ctx, e, queryTypeReadersWhoTookTheMostBooks, func() ([]ReaderActivity, error) {
				return ProjectReadersWhoTookTheMostBooks(history, count, from, to)
			})
		},
		lenOf[ReaderActivity],
	)
}

// ReadersThatDontReturnBooks returns every reader that holds at least one book.
func (e Engine) ReadersThatDontReturnBooks(ctx context.Context) ([]library.Reader, error) {
	return runReport(
		ctx, e, queryTypeReadersThatDontReturnBooks,
		"report:non_returners",
		func() error { return nil },
		func(ctx context.Context, uow library.UnitOfWork) ([]library.Reader, error) {
			history, err := e.fetch(ctx, uow, queryTypeReadersThatDontReturnBooks, ActiveLoansCondition())
			if err != nil {
				return nil, err
			}

			if len(history) == 0 {
				exists, existsErr := anyHistory(ctx, uow)
				if existsErr != nil {
					return nil, existsErr
				}

				if exists {
					return make([]library.Reader, 0), nil
				}
			}

			return project(ctx, e, queryTypeReadersThatDontReturnBooks, func() ([]library.Reader, error) {
				return ProjectReadersThatDontReturnBooks(history)
			})
		},
		lenOf[library.Reader],
	)
}

// BookReturningDate returns when the current loan of the book is due.
func (e Engine) BookReturningDate(ctx context.Context, bookID library.BookID) (time.Time, error) {
	return runReport(
		ctx, e, queryTypeBookReturningDate,
		fmt.Sprintf("report:book_returning_date:%d:%d", bookID, int64(e.loanPeriod.Seconds())),
		func() error { return nil },
		func(ctx context.Context, uow library.UnitOfWork) (time.Time, error) {
			history, err := e.fetch(ctx, uow, queryTypeBookReturningDate, BookCondition(bookID))
			if err != nil {
				return time.Time{}, err
			}

			return project(ctx, e, queryTypeBookReturningDate, func() (time.Time, error) {
				return ProjectBookReturningDate(history, bookID, e.loanPeriod)
			})
		},
		func(time.Time) int { return 1 },
	)
}

// runReport wraps one report call: validate, then cache lookup or compute, with the query observability around it.
func runReport[R any](
	ctx context.Context,
	e Engine,
	queryType string,
	cacheKey string,
	validate func() error,
	compute func(ctx context.Context, uow library.UnitOfWork) (R, error),
	size func(R) int,
) (R, error) {
	queryStart := time.Now()
	ctx, span := shell.StartQuerySpan(ctx, e.tracingCollector, queryType)
	shell.LogQueryStart(ctx, e.logger, e.contextualLogger, queryType)

	var zero R

	if err := validate(); err != nil {
		e.recordQueryError(ctx, queryType, err, time.Since(queryStart), span)
		return zero, err
	}

	run := func(ctx context.Context) (R, error) {
		return compute(library.WithEventualConsistency(ctx), e.uowFactory.NewUnitOfWork())
	}

	var (
		result R
		err    error
	)

	if e.cache == nil {
		result, err = run(ctx)
	} else {
		cacheStart := time.Now()
		err = e.cache.Remember(ctx, cacheKey, &result, func(ctx context.Context) (any, error) {
			return run(ctx)
		})
		e.recordComponentTiming(ctx, queryType, shell.ComponentCache, statusOf(err), time.Since(cacheStart))
	}

	if err != nil {
		e.recordQueryError(ctx, queryType, err, time.Since(queryStart), span)
		return zero, err
	}

	e.recordQuerySuccess(ctx, queryType, size(result), time.Since(queryStart), span)

	return result, nil
}

// fetch issues the single joined read of a report.
func (e Engine) fetch(
	ctx context.Context,
	uow library.UnitOfWork,
	queryType string,
	condition library.Condition,
) ([]library.HistoryDetails, error) {
	fetchStart := time.Now()
	history, err := library.Collect(uow.Histories().FindWithDetails(ctx, condition))
	e.recordComponentTiming(ctx, queryType, shell.ComponentFetch, statusOf(err), time.Since(fetchStart))

	return history, err
}

func project[R any](ctx context.Context, e Engine, queryType string, projection func() (R, error)) (R, error) {
	projectionStart := time.Now()
	result, err := projection()
	e.recordComponentTiming(ctx, queryType, shell.ComponentProjection, statusOf(err), time.Since(projectionStart))

	return result, err
}

// anyHistory tells "no loans at all" apart from "no active loans" without a second joined read.
func anyHistory(ctx context.Context, uow library.UnitOfWork) (bool, error) {
	for _, err := range uow.Histories().FindAll(ctx) {
		if err != nil {
			return false, err
		}

		return true, nil
	}

	return false, nil
}

func lenOf[T any](items []T) int {
	return len(items)
}

func statusOf(err error) string {
	if err != nil {
		return shell.StatusError
	}

	return shell.StatusSuccess
}

/*** Engine Options and helper methods for observability ***/

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithLoanPeriod sets how long a reader may keep a book. Defaults to DefaultLoanPeriod.
func WithLoanPeriod(period time.Duration) Option {
	return func(e *Engine) error {
		if period <= 0 {
			return ErrInvalidLoanPeriod
		}

		e.loanPeriod = period

		return nil
	}
}

// WithReportCache makes the Engine remember report results.
func WithReportCache(cache ReportCache) Option {
	return func(e *Engine) error {
		e.cache = cache
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
func WithMetrics(collector shell.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine.
func WithTracing(collector shell.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}

// WithContextualLogging sets the contextual logger for the Engine.
func WithContextualLogging(logger shell.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithLogging sets the basic logger for the Engine.
func WithLogging(logger shell.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

func (e Engine) recordQuerySuccess(
	ctx context.Context,
	queryType string,
	resultCount int,
	duration time.Duration,
	span shell.SpanContext,
) {
	shell.RecordQueryMetrics(ctx, e.metricsCollector, queryType, shell.StatusSuccess, duration)
	shell.FinishQuerySpan(e.tracingCollector, span, shell.StatusSuccess, duration, nil)
	shell.LogQuerySuccess(ctx, e.logger, e.contextualLogger, queryType, shell.StatusSuccess, resultCount, duration)
}

// recordQueryError classifies the failure, so canceled and timed out reports get their own counters.
func (e Engine) recordQueryError(
	ctx context.Context,
	queryType string,
	err error,
	duration time.Duration,
	span shell.SpanContext,
) {
	status := shell.StatusError
	switch {
	case shell.IsCancellationError(err):
		status = shell.StatusCanceled
	case shell.IsTimeoutError(err):
		status = shell.StatusTimeout
	}

	shell.RecordQueryMetrics(ctx, e.metricsCollector, queryType, status, duration)
	shell.FinishQuerySpan(e.tracingCollector, span, status, duration, err)
	shell.LogQueryError(ctx, e.logger, e.contextualLogger, queryType, err)
}

func (e Engine) recordComponentTiming(ctx context.Context, queryType, component, status string, duration time.Duration) {
	shell.RecordQueryComponentDuration(ctx, e.metricsCollector, queryType, component, status, duration)
}
