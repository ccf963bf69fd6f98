package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/oteladapters"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine"
	. "github.com/AntonStoeckl/library-history-go/testutil/helper" //nolint:revive
)

func newRecordingTracer() (*tracetest.InMemoryExporter, *oteladapters.TracingCollector) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	return exporter, oteladapters.NewTracingCollector(provider.Tracer("test"))
}

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	// arrange
	exporter, collector := newRecordingTracer()

	// act
	_, spanCtx := collector.StartSpan(context.Background(), "librarystore.query", map[string]string{"table": "books"})
	spanCtx.AddAttribute("duration_ms", "1.25")
	collector.FinishSpan(spanCtx, "success", map[string]string{"row_count": "3"})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "librarystore.query", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("table", "books"))
	assert.Contains(t, spans[0].Attributes, attribute.String("duration_ms", "1.25"))
	assert.Contains(t, spans[0].Attributes, attribute.String("row_count", "3"))
}

func Test_TracingCollector_MapsStatusStrings(t *testing.T) {
	tests := []struct {
		status   string
		expected codes.Code
	}{
		{"success", codes.Ok},
		{"error", codes.Error},
		{"cancelled", codes.Error},
		{"timeout", codes.Error},
		{"conflict", codes.Error},
		{"something_else", codes.Unset},
	}

	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			exporter, collector := newRecordingTracer()

			_, spanCtx := collector.StartSpan(context.Background(), "statistics.query", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.expected, spans[0].Status.Code)
		})
	}
}

func Test_TracingCollector_IgnoresForeignSpanContexts(t *testing.T) {
	exporter, collector := newRecordingTracer()

	assert.NotPanics(t, func() {
		collector.FinishSpan(&SpySpanContext{}, "success", nil)
		collector.FinishSpan(nil, "success", nil)
	})
	assert.Empty(t, exporter.GetSpans())
}

func Test_TracingCollector_StoreQueriesBecomeChildSpans(t *testing.T) {
	// arrange
	exporter, collector := newRecordingTracer()
	store := NewSQLiteStore(t, postgresengine.WithTracing(collector))
	GivenBooks(t, store, 2)
	exporter.Reset()

	parentCtx, parent := collector.StartSpan(context.Background(), "statistics.query", nil)

	// act
	_, err := library.Collect(store.NewUnitOfWork().Books().FindAll(parentCtx))
	collector.FinishSpan(parent, "success", nil)

	// assert
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "librarystore.query", spans[0].Name)
	assert.Equal(t, "statistics.query", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}
