package oteladapters_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/library-history-go/library/oteladapters"
)

func newManualMeter() (*sdkmetric.ManualReader, metric.Meter) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return reader, provider.Meter("test")
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "failed to collect metrics")

	return resourceMetrics
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// arrange
	reader, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(meter)

	// act
	collector.RecordDuration("librarystore_query_duration_seconds", 150*time.Millisecond, map[string]string{
		"operation": "query",
		"status":    "success",
	})

	// assert
	histogram := findMetric[metricdata.Histogram[float64]](t, collect(t, reader), "librarystore_query_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count)
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001, "durations are recorded in seconds")

	expectedAttrs := attribute.NewSet(attribute.String("operation", "query"), attribute.String("status", "success"))
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// arrange
	reader, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(meter)
	labels := map[string]string{"operation": "commit", "error_type": "concurrency_conflict"}

	// act
	collector.IncrementCounter("librarystore_database_errors_total", labels)
	collector.IncrementCounterContext(context.Background(), "librarystore_database_errors_total", labels)

	// assert
	counter := findMetric[metricdata.Sum[int64]](t, collect(t, reader), "librarystore_database_errors_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(2), counter.DataPoints[0].Value)
	assert.True(t, counter.IsMonotonic)
}

func Test_MetricsCollector_RecordValue_KeepsLastValue(t *testing.T) {
	// arrange
	reader, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(meter)

	// act
	collector.RecordValue("librarystore_rows_queried", 3, nil)
	collector.RecordValueContext(context.Background(), "librarystore_rows_queried", 7, nil)

	// assert
	gauge := findMetric[metricdata.Gauge[float64]](t, collect(t, reader), "librarystore_rows_queried")
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 7.0, gauge.DataPoints[0].Value)
}

func Test_MetricsCollector_DropsMeasurementsWhenInstrumentCreationFails(t *testing.T) {
	_, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(&failingMeter{Meter: meter})
	ctx := context.Background()

	assert.NotPanics(t, func() {
		collector.RecordDuration("histogram", time.Second, nil)
		collector.RecordDurationContext(ctx, "histogram", time.Second, nil)
		collector.IncrementCounter("counter", nil)
		collector.IncrementCounterContext(ctx, "counter", nil)
		collector.RecordValue("gauge", 1, nil)
		collector.RecordValueContext(ctx, "gauge", 1, nil)
	})
}

func Test_MetricsCollector_IsSafeForConcurrentUse(t *testing.T) {
	// arrange
	reader, meter := newManualMeter()
	collector := oteladapters.NewMetricsCollector(meter)
	done := make(chan struct{})

	// act
	for range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 50 {
				collector.IncrementCounter("reportcache_hits_total", nil)
			}
		}()
	}

	for range 8 {
		<-done
	}

	// assert
	counter := findMetric[metricdata.Sum[int64]](t, collect(t, reader), "reportcache_hits_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(400), counter.DataPoints[0].Value)
}

type failingMeter struct {
	metric.Meter
}

func (m *failingMeter) Float64Histogram(string, ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return nil, errors.New("histogram creation failed")
}

func (m *failingMeter) Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return nil, errors.New("counter creation failed")
}

func (m *failingMeter) Float64Gauge(string, ...metric.Float64GaugeOption) (metric.Float64Gauge, error) {
	return nil, errors.New("gauge creation failed")
}

func findMetric[D any](t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) D {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name != name {
				continue
			}

			if data, ok := m.Data.(D); ok {
				return data
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	var zero D

	return zero
}
