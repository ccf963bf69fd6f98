package shell_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/shell"
	. "github.com/AntonStoeckl/library-history-go/testutil/helper" //nolint:revive
)

func Test_RecordQueryMetrics_RecordsTimeoutCounter(t *testing.T) {
	// arrange
	metrics := NewMetricsCollectorSpy(true)

	// act
	shell.RecordQueryMetrics(context.Background(), metrics, "MostPopularBooks", shell.StatusTimeout, time.Millisecond)

	// assert
	assert.True(t, metrics.HasDurationRecordForMetric(shell.QueryHandlerDurationMetric).
		WithStatus(shell.StatusTimeout).
		WithLabel(shell.LogAttrQueryType, "MostPopularBooks").
		Assert())
	assert.Equal(t, 1, metrics.CountCounterRecordsForMetric(shell.QueryHandlerCallsMetric))
	assert.Equal(t, 1, metrics.CountCounterRecordsForMetric(shell.QueryHandlerTimeoutMetric))
	assert.Zero(t, metrics.CountCounterRecordsForMetric(shell.QueryHandlerCanceledMetric))
}

func Test_RecordCommandMetrics_RecordsConflictCounter(t *testing.T) {
	// arrange
	metrics := NewMetricsCollectorSpy(true)

	// act
	shell.RecordCommandMetrics(context.Background(), metrics, "ReturnBook", shell.StatusConcurrencyConflict, time.Millisecond)

	// assert
	assert.Equal(t, 1, metrics.CountCounterRecordsForMetric(shell.CommandHandlerConcurrencyConflictMetric))
	assert.True(t, metrics.HasCounterRecordForMetric(shell.CommandHandlerCallsMetric).
		WithLabel(shell.LogAttrCommandType, "ReturnBook").
		Assert())
}

func Test_RecordQueryComponentDuration_LabelsComponent(t *testing.T) {
	// arrange
	metrics := NewMetricsCollectorSpy(true)

	// act
	shell.RecordQueryComponentDuration(
		context.Background(), metrics, "MostPopularBooks", shell.ComponentFetch, shell.StatusSuccess, time.Millisecond,
	)

	// assert
	assert.True(t, metrics.HasDurationRecordForMetric(shell.QueryHandlerComponentDurationMetric).
		WithLabel(shell.LogAttrComponent, shell.ComponentFetch).
		WithStatus(shell.StatusSuccess).
		Assert())
}

func Test_RecordMetrics_ToleratesNilCollector(t *testing.T) {
	assert.NotPanics(t, func() {
		shell.RecordQueryMetrics(context.Background(), nil, "x", shell.StatusSuccess, 0)
		shell.RecordCommandMetrics(context.Background(), nil, "x", shell.StatusSuccess, 0)
		shell.RecordQueryComponentDuration(context.Background(), nil, "x", shell.ComponentFetch, shell.StatusSuccess, 0)
	})
}

func Test_QuerySpan_FinishesWithStatusAndError(t *testing.T) {
	// arrange
	tracing := NewTracingCollectorSpy(true)

	// act
	_, span := shell.StartQuerySpan(context.Background(), tracing, "BookReturningDate")
	shell.FinishQuerySpan(tracing, span, shell.StatusError, time.Millisecond, library.ErrNotFound)

	// assert
	assert.True(t, tracing.HasSpanRecordForName(shell.SpanNameQueryHandle).
		WithStartAttribute(shell.LogAttrQueryType, "BookReturningDate").
		WithStatus(shell.StatusError).
		WithEndAttribute(shell.LogAttrError, library.ErrNotFound.Error()).
		Assert())
}

func Test_StartCommandSpan_WithoutTracingReturnsNilSpan(t *testing.T) {
	ctx := context.Background()

	gotCtx, span := shell.StartCommandSpan(ctx, nil, "CheckOutBook")

	assert.Equal(t, ctx, gotCtx)
	assert.Nil(t, span)
	assert.NotPanics(t, func() { shell.FinishCommandSpan(nil, span, shell.StatusSuccess, 0, nil) })
}

func Test_LogQuery_PrefersContextualLogger(t *testing.T) {
	// arrange
	contextualLogger := NewContextualLoggerSpy(true)
	logHandler := NewLogHandlerSpy(false)
	logger := slog.New(logHandler)

	// act
	shell.LogQueryStart(context.Background(), logger, contextualLogger, "MostPopularBooks")
	shell.LogQuerySuccess(context.Background(), logger, contextualLogger, "MostPopularBooks", shell.StatusSuccess, 3, time.Millisecond)
	shell.LogQueryError(context.Background(), logger, contextualLogger, "MostPopularBooks", library.ErrNoData)

	// assert
	assert.True(t, contextualLogger.HasLog("info", shell.LogMsgQueryStarted))
	assert.True(t, contextualLogger.HasLogWithArg("info", shell.LogMsgQueryCompleted, shell.LogAttrResultCount, 3))
	assert.True(t, contextualLogger.HasLog("error", shell.LogMsgQueryFailed))
	assert.Zero(t, logHandler.GetRecordCount())
}

func Test_LogCommand_FallsBackToLogger(t *testing.T) {
	// arrange
	logHandler := NewLogHandlerSpy(false)
	logger := slog.New(logHandler)

	// act
	shell.LogCommandStart(context.Background(), logger, nil, "CheckOutBook")
	shell.LogCommandSuccess(context.Background(), logger, nil, "CheckOutBook", shell.StatusSuccess, time.Millisecond)
	shell.LogWarning(context.Background(), logger, nil, shell.LogMsgReportInvalidationFailed)

	// assert
	assert.True(t, logHandler.HasInfoLogWithMessage(shell.LogMsgCommandStarted).Assert())
	assert.True(t, logHandler.HasInfoLogWithMessage(shell.LogMsgCommandCompleted).WithDurationMS().Assert())
	assert.True(t, logHandler.HasWarnLogWithMessage(shell.LogMsgReportInvalidationFailed).Assert())
}

func Test_ClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, shell.StatusSuccess},
		{"canceled", errors.Join(library.ErrPersistence, context.Canceled), shell.StatusCanceled},
		{"timeout", context.DeadlineExceeded, shell.StatusTimeout},
		{"conflict", errors.Join(library.ErrPersistence, library.ErrConcurrencyConflict), shell.StatusConcurrencyConflict},
		{"no_data", library.ErrNoData, shell.StatusNoData},
		{"already_lent", library.ErrBookAlreadyLent, shell.StatusRejected},
		{"not_found", library.ErrNotFound, shell.StatusRejected},
		{"persistence", library.ErrPersistence, shell.StatusError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, shell.ClassifyError(tc.err))
		})
	}
}
