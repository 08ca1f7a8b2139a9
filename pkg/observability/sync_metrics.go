package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

// SyncMetrics records write-ahead journal delivery on an OpenTelemetry meter.
type SyncMetrics struct {
	depth     metric.Int64Gauge
	online    metric.Int64Gauge
	delivered metric.Int64Counter
	latency   metric.Float64Histogram
	retried   metric.Int64Counter
	failed    metric.Int64Counter
}

func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	var (
		m   SyncMetrics
		err error
	)
	if m.depth, err = meter.Int64Gauge("sync_journal_depth",
		metric.WithDescription("Writes waiting in the local journal")); err != nil {
		return nil, err
	}
	if m.online, err = meter.Int64Gauge("sync_backend_online",
		metric.WithDescription("1 when the remote store is reachable")); err != nil {
		return nil, err
	}
	if m.delivered, err = meter.Int64Counter("sync_writes_delivered_total",
		metric.WithUnit("{write}")); err != nil {
		return nil, err
	}
	if m.latency, err = meter.Float64Histogram("sync_delivery_latency_ms",
		metric.WithDescription("Time from issue to remote acknowledgement"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.retried, err = meter.Int64Counter("sync_writes_retried_total",
		metric.WithUnit("{attempt}")); err != nil {
		return nil, err
	}
	if m.failed, err = meter.Int64Counter("sync_writes_failed_total",
		metric.WithUnit("{write}")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *SyncMetrics) JournalDepth(n int) {
	m.depth.Record(context.Background(), int64(n))
}

func (m *SyncMetrics) Delivered(op docstore.Op, latency time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("op", string(op)))
	m.delivered.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(latency.Microseconds())/1000, attrs)
}

func (m *SyncMetrics) Retried(op docstore.Op) {
	m.retried.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", string(op))))
}

func (m *SyncMetrics) Failed(op docstore.Op) {
	m.failed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", string(op))))
}

func (m *SyncMetrics) Online(online bool) {
	var v int64
	if online {
		v = 1
	}
	m.online.Record(context.Background(), v)
}
