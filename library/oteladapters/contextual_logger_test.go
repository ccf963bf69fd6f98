package oteladapters_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/log/noop"

	"github.com/AntonStoeckl/library-history-go/library/oteladapters"
)

func Test_SlogBridgeLogger_LogsAllLevelsWithAttributes(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(
		slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "debug message", "table", "books")
	logger.InfoContext(ctx, "info message", "row_count", 42)
	logger.WarnContext(ctx, "warn message", "duration_ms", 3.5)
	logger.ErrorContext(ctx, "error message", "retryable", true)

	// assert
	output := buf.String()
	assert.Contains(t, output, `"level":"DEBUG","msg":"debug message","table":"books"`)
	assert.Contains(t, output, `"msg":"info message","row_count":42`)
	assert.Contains(t, output, `"msg":"warn message","duration_ms":3.5`)
	assert.Contains(t, output, `"msg":"error message","retryable":true`)
}

func Test_NewSlogBridgeLogger_UsesGlobalProvider(t *testing.T) {
	logger := oteladapters.NewSlogBridgeLogger("library")

	assert.NotPanics(t, func() {
		logger.InfoContext(context.Background(), "report computed", "report", "most_popular_books")
	})
}

func Test_OTelLogger_ToleratesOddArguments(t *testing.T) {
	logger := oteladapters.NewOTelLogger(noop.NewLoggerProvider().Logger("test"))
	ctx := context.Background()

	assert.NotPanics(t, func() {
		logger.DebugContext(ctx, "dangling key", "table")
		logger.InfoContext(ctx, "non-string key", 42, "value")
		logger.WarnContext(ctx, "typed values", "count", int64(3), "ratio", 0.5, "ok", true)
		logger.ErrorContext(ctx, "error value", "error", errors.New("boom"))
	})
}
