package harmonyotel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/castaneai/harmony"
)

func newManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func matches(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}

// int64Value sums all data points of a counter or gauge that carry attrs.
func int64Value(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.True(t, ok, "metric %s not found", name)
	var total int64
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			if matches(dp.Attributes, attrs) {
				total += dp.Value
			}
		}
	case metricdata.Gauge[int64]:
		for _, dp := range data.DataPoints {
			if matches(dp.Attributes, attrs) {
				total += dp.Value
			}
		}
	default:
		t.Fatalf("unexpected data type %T for %s", m.Data, name)
	}
	return total
}

func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) uint64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.True(t, ok, "metric %s not found", name)
	data, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range data.DataPoints {
		if matches(dp.Attributes, attrs) {
			count += dp.Count
		}
	}
	return count
}

func TestVenueMetrics(t *testing.T) {
	ctx := t.Context()
	reader := newManualReader(t)
	inner, err := harmony.NewController(1)
	require.NoError(t, err)
	v, err := NewVenue(inner)
	require.NoError(t, err)

	red1, err := v.Arrive(ctx, harmony.Actor{ID: "red-1", Color: harmony.ColorRed})
	require.NoError(t, err)
	blue1, err := v.Arrive(ctx, harmony.Actor{ID: "blue-1", Color: harmony.ColorBlue})
	require.NoError(t, err)

	// 1/1: red-2 times out in the queue
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = v.Arrive(timeoutCtx, harmony.Actor{ID: "red-2", Color: harmony.ColorRed})
	require.True(t, harmony.ErrorHasStatus(err, harmony.ErrorStatusCanceled))
	// duplicate arrival
	_, err = v.Arrive(ctx, harmony.Actor{ID: "red-1", Color: harmony.ColorRed})
	require.True(t, harmony.ErrorHasStatus(err, harmony.ErrorStatusInvalidState))

	table, err := v.EnterTable(ctx, red1)
	require.NoError(t, err)

	rm := collect(t, reader)
	red := colorKey.String("red")
	blue := colorKey.String("blue")
	require.Equal(t, int64(1), int64Value(t, rm, "harmony.arrive.count_total", red, statusOK))
	require.Equal(t, int64(1), int64Value(t, rm, "harmony.arrive.count_total", blue, statusOK))
	require.Equal(t, int64(1), int64Value(t, rm, "harmony.arrive.count_total", red, statusCanceled))
	require.Equal(t, int64(1), int64Value(t, rm, "harmony.arrive.count_total", red, statusRejected))
	require.Equal(t, uint64(4), histogramCount(t, rm, "harmony.arrive_wait_seconds"))
	require.Equal(t, uint64(1), histogramCount(t, rm, "harmony.table_wait_seconds", red, statusOK))
	require.Equal(t, int64(1), int64Value(t, rm, "harmony.admitted", red))
	require.Equal(t, int64(1), int64Value(t, rm, "harmony.admitted", blue))
	require.Equal(t, int64(0), int64Value(t, rm, "harmony.waiting", red))
	require.Equal(t, int64(0), int64Value(t, rm, "harmony.tables_free"))

	require.NoError(t, v.Depart(ctx, red1, table))
	require.NoError(t, v.Abandon(ctx, blue1))
	err = v.Depart(ctx, red1, table)
	require.Error(t, err)

	rm = collect(t, reader)
	require.Equal(t, int64(1), int64Value(t, rm, "harmony.depart.count_total", red, statusOK))
	require.Equal(t, int64(1), int64Value(t, rm, "harmony.depart.count_total", red, statusRejected))
	require.Equal(t, int64(1), int64Value(t, rm, "harmony.abandon.count_total", blue, statusOK))
	require.Equal(t, int64(0), int64Value(t, rm, "harmony.admitted", red))
	require.Equal(t, int64(1), int64Value(t, rm, "harmony.tables_free"))
	require.Equal(t, inner.Snapshot(), v.Snapshot())
}
