package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

func collect(t *testing.T, r *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestSyncMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.JournalDepth(3)
	m.Online(false)
	m.Delivered(docstore.OpMerge, 40*time.Millisecond)
	m.Delivered(docstore.OpMerge, 60*time.Millisecond)
	m.Retried(docstore.OpDelete)
	m.Failed(docstore.OpSet)

	data := collect(t, reader)

	depth, ok := data["sync_journal_depth"].(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(3), depth.DataPoints[0].Value)

	online, ok := data["sync_backend_online"].(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(0), online.DataPoints[0].Value)

	delivered, ok := data["sync_writes_delivered_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, delivered.DataPoints, 1)
	assert.Equal(t, int64(2), delivered.DataPoints[0].Value)

	latency, ok := data["sync_delivery_latency_ms"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Equal(t, uint64(2), latency.DataPoints[0].Count)
	assert.InDelta(t, 100.0, latency.DataPoints[0].Sum, 0.001)

	assert.Contains(t, data, "sync_writes_retried_total")
	assert.Contains(t, data, "sync_writes_failed_total")
}
