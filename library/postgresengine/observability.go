package postgresengine

import (
	"context"
	"fmt"
	"math"
	"time"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if a logger is configured.
func (s Store) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, s.toMilliseconds(duration), logAttrQuery, sqlQuery}

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (s Store) logOperation(ctx context.Context, action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logWarning logs non-critical issues at warn level if a logger is configured.
func (s Store) logWarning(ctx context.Context, message string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if s.logger != nil {
		s.logger.Warn(message, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, message, allArgs...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (s Store) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (s Store) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (s Store) formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f", s.toMilliseconds(d))
}

// recordErrorMetrics counts a database error, using the context-aware collector method if available.
func (s Store) recordErrorMetrics(ctx context.Context, operation, errorType string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricDatabaseErrors, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metricDatabaseErrors, labels)
}

// recordDurationMetrics records a duration, using the context-aware collector method if available.
func (s Store) recordDurationMetrics(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	labels map[string]string,
) {
	if s.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metricName, duration, labels)
}

// recordValueMetrics records a value, using the context-aware collector method if available.
func (s Store) recordValueMetrics(ctx context.Context, metricName string, value float64, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metricName, value, labels)
		return
	}

	s.metricsCollector.RecordValue(metricName, value, labels)
}

// recordConcurrencyConflictMetrics counts a failed guarded update.
func (s Store) recordConcurrencyConflictMetrics(ctx context.Context, table string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationCommit,
		spanAttrTable:     table,
		"conflict_type":   "concurrency",
	}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricConcurrencyConflicts, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metricConcurrencyConflicts, labels)
}

// startTraceSpan starts a tracing span if the tracing collector is configured.
func (s Store) startTraceSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext) {
	if s.tracingCollector != nil {
		return s.tracingCollector.StartSpan(ctx, name, attrs)
	}

	return ctx, nil
}

// finishTraceSpan finishes a tracing span if the tracing collector is configured.
func (s Store) finishTraceSpan(span SpanContext, status string, attrs map[string]string) {
	if s.tracingCollector != nil && span != nil {
		s.tracingCollector.FinishSpan(span, status, attrs)
	}
}

// === Observer Pattern ===
// An observer bundles the span and metrics of one query or commit.

type queryObserver struct {
	store Store
	ctx   context.Context
	span  SpanContext
	table string
	start time.Time
}

func (s Store) startQueryObservation(ctx context.Context, table string) (*queryObserver, context.Context) {
	newCtx, span := s.startTraceSpan(ctx, spanNameQuery, map[string]string{
		spanAttrOperation: operationQuery,
		spanAttrTable:     table,
	})

	return &queryObserver{store: s, ctx: newCtx, span: span, table: table, start: time.Now()}, newCtx
}

func (o *queryObserver) finishSuccess(rowCount int) {
	duration := time.Since(o.start)
	labels := map[string]string{spanAttrOperation: operationQuery, spanAttrTable: o.table, "status": statusSuccess}

	o.store.recordDurationMetrics(o.ctx, metricQueryDuration, duration, labels)
	o.store.recordValueMetrics(o.ctx, metricRowsQueried, float64(rowCount), labels)
	o.store.logOperation(o.ctx, logActionQuery,
		logAttrTable, o.table,
		logAttrRowCount, rowCount,
		logAttrDurationMS, o.store.toMilliseconds(duration),
	)

	if o.span != nil {
		o.span.AddAttribute(spanAttrDurationMS, o.store.formatDuration(duration))
	}

	o.store.finishTraceSpan(o.span, statusSuccess, map[string]string{spanAttrRowCount: fmt.Sprintf("%d", rowCount)})
}

func (o *queryObserver) finishError(errorType string) {
	duration := time.Since(o.start)
	labels := map[string]string{spanAttrOperation: operationQuery, spanAttrTable: o.table, "status": statusError}

	o.store.recordDurationMetrics(o.ctx, metricQueryDuration, duration, labels)
	o.store.recordErrorMetrics(o.ctx, operationQuery, errorType)
	o.store.finishTraceSpan(o.span, statusError, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: o.store.formatDuration(duration),
	})
}

type commitObserver struct {
	store       Store
	ctx         context.Context
	span        SpanContext
	changeCount int
	start       time.Time
}

func (s Store) startCommitObservation(ctx context.Context, unitOfWorkID string, changeCount int) (*commitObserver, context.Context) {
	newCtx, span := s.startTraceSpan(ctx, spanNameCommit, map[string]string{
		spanAttrOperation:   operationCommit,
		spanAttrChangeCount: fmt.Sprintf("%d", changeCount),
		spanAttrUnitOfWork:  unitOfWorkID,
	})

	return &commitObserver{store: s, ctx: newCtx, span: span, changeCount: changeCount, start: time.Now()}, newCtx
}

func (o *commitObserver) finishSuccess(rowsAffected int64) {
	duration := time.Since(o.start)
	labels := map[string]string{spanAttrOperation: operationCommit, "status": statusSuccess}

	o.store.recordDurationMetrics(o.ctx, metricCommitDuration, duration, labels)
	o.store.recordValueMetrics(o.ctx, metricRowsAffected, float64(rowsAffected), labels)
	o.store.logOperation(o.ctx, logActionCommit,
		logAttrChangeCount, o.changeCount,
		logAttrRowsAffected, rowsAffected,
		logAttrDurationMS, o.store.toMilliseconds(duration),
	)
	o.store.finishTraceSpan(o.span, statusSuccess, map[string]string{
		spanAttrRowsAffected: fmt.Sprintf("%d", rowsAffected),
		spanAttrDurationMS:   o.store.formatDuration(duration),
	})
}

func (o *commitObserver) finishError(errorType string) {
	duration := time.Since(o.start)
	labels := map[string]string{spanAttrOperation: operationCommit, "status": statusError}

	o.store.recordDurationMetrics(o.ctx, metricCommitDuration, duration, labels)
	o.store.recordErrorMetrics(o.ctx, operationCommit, errorType)
	o.store.finishTraceSpan(o.span, statusError, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: o.store.formatDuration(duration),
	})
}
