package geofence

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/bcperry/tak-server-mcp/internal/geofence")

// evaluatorMetrics counts raised alerts by kind and publishes a gauge
// of configured geofences. Instrument creation failures degrade to
// no-ops; evaluation never fails because telemetry is misconfigured.
type evaluatorMetrics struct {
	alerts metric.Int64Counter
}

func newEvaluatorMetrics(e *Evaluator) *evaluatorMetrics {
	m := &evaluatorMetrics{}
	m.alerts, _ = meter.Int64Counter("tak.geofence.alerts",
		metric.WithDescription("Geofence alerts raised"))

	if gauge, err := meter.Int64ObservableGauge("tak.geofences.active",
		metric.WithDescription("Geofences currently monitoring")); err == nil {
		_, _ = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			e.mu.RLock()
			n := len(e.fences)
			e.mu.RUnlock()
			o.ObserveInt64(gauge, int64(n))
			return nil
		}, gauge)
	}
	return m
}

func (m *evaluatorMetrics) recordAlert(kind AlertKind) {
	if m.alerts == nil {
		return
	}
	m.alerts.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", string(kind))))
}
