package track

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/bcperry/tak-server-mcp/internal/track")

// storeMetrics publishes ingest counters and a tracked-entity gauge.
// Instrument creation failures degrade to no-ops; ingest never fails
// because telemetry is misconfigured.
type storeMetrics struct {
	ingested metric.Int64Counter
	dropped  metric.Int64Counter
}

func newStoreMetrics(s *Store) *storeMetrics {
	m := &storeMetrics{}
	m.ingested, _ = meter.Int64Counter("tak.reports.ingested",
		metric.WithDescription("Position reports that replaced current entity state"))
	m.dropped, _ = meter.Int64Counter("tak.reports.dropped",
		metric.WithDescription("Position reports dropped as duplicates or out-of-order"))

	if gauge, err := meter.Int64ObservableGauge("tak.entities.tracked",
		metric.WithDescription("Entities with current state in the store")); err == nil {
		_, _ = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(gauge, int64(s.Count()))
			return nil
		}, gauge)
	}
	return m
}

func (m *storeMetrics) recordUpsert(changed bool) {
	ctx := context.Background()
	if changed {
		if m.ingested != nil {
			m.ingested.Add(ctx, 1)
		}
		return
	}
	if m.dropped != nil {
		m.dropped.Add(ctx, 1)
	}
}
