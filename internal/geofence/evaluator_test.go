package geofence

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcperry/tak-server-mcp/internal/model"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	return NewEvaluator(100, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func reportAt(uid string, observed time.Time, lat, lon float64) model.PositionReport {
	return model.PositionReport{
		UID: uid, Type: "a-f-G-U-C",
		ObservedAt: observed, ValidUntil: observed.Add(5 * time.Minute),
		Lat: lat, Lon: lon,
	}
}

func circleFence(t *testing.T, e *Evaluator, triggers model.Triggers) model.Geofence {
	t.Helper()
	g, _, err := e.Add(model.Geofence{
		Name: "perimeter",
		Shape: model.Shape{
			Kind:    model.ShapeCircle,
			Center:  model.LatLon{Lat: 0, Lon: 0},
			RadiusM: 1000,
		},
		Triggers: triggers,
		Severity: "high",
	})
	require.NoError(t, err)
	return g
}

func TestEntryThenExit(t *testing.T) {
	e := newTestEvaluator(t)
	circleFence(t, e, model.Triggers{OnEntry: true, OnExit: true})
	base := time.Now()

	// ~555 m from center: inside the 1000 m circle.
	alerts := e.Evaluate(reportAt("u1", base, 0, 0.005))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertEntry, alerts[0].Kind)
	assert.Equal(t, "u1", alerts[0].EntityUID)
	assert.Equal(t, "high", alerts[0].Severity)

	// Still inside: no transition, no alert.
	alerts = e.Evaluate(reportAt("u1", base.Add(10*time.Second), 0, 0.004))
	assert.Empty(t, alerts)

	// ~2224 m away: exited.
	alerts = e.Evaluate(reportAt("u1", base.Add(20*time.Second), 0, 0.02))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertExit, alerts[0].Kind)
}

func TestNoExitWithoutEntry(t *testing.T) {
	e := newTestEvaluator(t)
	circleFence(t, e, model.Triggers{OnEntry: true, OnExit: true})

	// First report already outside: nothing fires.
	alerts := e.Evaluate(reportAt("u1", time.Now(), 10, 10))
	assert.Empty(t, alerts)
}

func TestDwellFiresOncePerInsidePeriod(t *testing.T) {
	e := newTestEvaluator(t)
	circleFence(t, e, model.Triggers{
		OnEntry: true,
		OnExit:  true,
		OnDwell: &model.DwellTrigger{Threshold: 5 * time.Minute},
	})
	base := time.Now()

	e.Evaluate(reportAt("u1", base, 0, 0.001))

	// Under the threshold: no dwell yet.
	alerts := e.Evaluate(reportAt("u1", base.Add(4*time.Minute), 0, 0.002))
	assert.Empty(t, alerts)

	// Over the threshold: dwell fires.
	alerts = e.Evaluate(reportAt("u1", base.Add(6*time.Minute), 0, 0.001))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDwell, alerts[0].Kind)
	assert.GreaterOrEqual(t, alerts[0].Dwell, 5*time.Minute)

	// Still inside: dwell must not repeat.
	alerts = e.Evaluate(reportAt("u1", base.Add(10*time.Minute), 0, 0.002))
	assert.Empty(t, alerts)

	// Exit, re-enter, dwell again: a new continuous period.
	e.Evaluate(reportAt("u1", base.Add(11*time.Minute), 0, 0.05))
	e.Evaluate(reportAt("u1", base.Add(12*time.Minute), 0, 0.001))
	alerts = e.Evaluate(reportAt("u1", base.Add(18*time.Minute), 0, 0.001))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDwell, alerts[0].Kind)
}

func TestTypePatternRestrictsMonitoring(t *testing.T) {
	e := newTestEvaluator(t)
	_, _, err := e.Add(model.Geofence{
		Name: "hostiles only",
		Shape: model.Shape{
			Kind: model.ShapeCircle, Center: model.LatLon{Lat: 0, Lon: 0}, RadiusM: 1000,
		},
		TypePatterns: []string{"a-h*"},
		Triggers:     model.Triggers{OnEntry: true},
	})
	require.NoError(t, err)
	base := time.Now()

	friendly := reportAt("f1", base, 0, 0.001)
	assert.Empty(t, e.Evaluate(friendly), "friendly type must be ignored")

	hostile := reportAt("h1", base, 0, 0.001)
	hostile.Type = "a-h-G"
	alerts := e.Evaluate(hostile)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertEntry, alerts[0].Kind)
}

func TestRectangleFence(t *testing.T) {
	e := newTestEvaluator(t)
	_, ring, err := e.Add(model.Geofence{
		Name: "box",
		Shape: model.Shape{
			Kind:    model.ShapeRectangle,
			Center:  model.LatLon{Lat: 37.77, Lon: -122.42},
			WidthM:  2000,
			HeightM: 2000,
		},
		Triggers: model.Triggers{OnEntry: true},
	})
	require.NoError(t, err)
	require.Len(t, ring, 4, "rectangle compiles to a 4-vertex ring at creation")

	alerts := e.Evaluate(reportAt("u1", time.Now(), 37.77, -122.42))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertEntry, alerts[0].Kind)
}

func TestAddRejectsDegenerateShapes(t *testing.T) {
	e := newTestEvaluator(t)

	_, _, err := e.Add(model.Geofence{
		Name:  "bad circle",
		Shape: model.Shape{Kind: model.ShapeCircle, RadiusM: -5},
	})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	_, _, err = e.Add(model.Geofence{
		Name:  "bad polygon",
		Shape: model.Shape{Kind: model.ShapePolygon, Vertices: []model.LatLon{{Lat: 0, Lon: 0}}},
	})
	assert.True(t, model.IsValidation(err))

	assert.Empty(t, e.List(), "no fence is stored on validation failure")
}

func TestRemoveAndList(t *testing.T) {
	e := newTestEvaluator(t)
	g := circleFence(t, e, model.Triggers{OnEntry: true})

	require.Len(t, e.List(), 1)
	require.NoError(t, e.Remove(g.ID))
	assert.Empty(t, e.List())

	err := e.Remove(uuid.New())
	assert.Error(t, err)
}

func TestRecentAlerts(t *testing.T) {
	e := newTestEvaluator(t)
	circleFence(t, e, model.Triggers{OnEntry: true, OnExit: true})
	base := time.Now()

	e.Evaluate(reportAt("u1", base, 0, 0.001))              // entry
	e.Evaluate(reportAt("u1", base.Add(time.Minute), 0, 1)) // exit

	all := e.RecentAlerts(0, time.Time{})
	require.Len(t, all, 2)
	assert.Equal(t, AlertExit, all[0].Kind, "newest first")

	one := e.RecentAlerts(1, time.Time{})
	require.Len(t, one, 1)
	assert.Equal(t, AlertExit, one[0].Kind)

	sinceOnly := e.RecentAlerts(0, base.Add(30*time.Second))
	require.Len(t, sinceOnly, 1)
	assert.Equal(t, AlertExit, sinceOnly[0].Kind)
}

func TestConcurrentEvaluateDistinctEntities(t *testing.T) {
	e := NewEvaluator(1000, slog.New(slog.NewTextHandler(io.Discard, nil)))
	circleFence(t, e, model.Triggers{OnEntry: true, OnExit: true})
	base := time.Now()

	var wg sync.WaitGroup
	uids := []string{"u1", "u2", "u3", "u4"}
	for _, uid := range uids {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				// Alternate inside and outside.
				lon := 0.001
				if i%2 == 1 {
					lon = 0.05
				}
				e.Evaluate(reportAt(uid, base.Add(time.Duration(i)*time.Second), 0, lon))
			}
		}(uid)
	}
	wg.Wait()

	// Per entity: 25 entries and 25 exits, strictly alternating, means
	// 50 alerts each and an even entry/exit split overall.
	all := e.RecentAlerts(0, time.Time{})
	assert.Len(t, all, 200)
}
