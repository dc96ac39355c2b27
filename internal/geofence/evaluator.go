// Package geofence evaluates user-defined monitored regions against
// the live report stream and raises entry, exit, and dwell alerts.
//
// Containment state is tracked per (geofence, entity) pair as a small
// OUTSIDE/INSIDE state machine. Each pair's transitions are serialized
// so concurrent delivery of reports for the same entity can neither
// miss nor double-fire a transition; reports for different entities
// evaluate in parallel.
package geofence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bcperry/tak-server-mcp/internal/geo"
	"github.com/bcperry/tak-server-mcp/internal/model"
)

// fence is a stored geofence with its containment geometry compiled at
// creation time. A rectangle becomes a closed 4-vertex ring in the
// local tangent frame once, never re-derived per test.
type fence struct {
	def  model.Geofence
	ring []model.LatLon // nil for circles
}

func (f *fence) contains(p model.LatLon) bool {
	if f.def.Shape.Kind == model.ShapeCircle {
		return geo.CircleContains(f.def.Shape.Center, f.def.Shape.RadiusM, p)
	}
	return geo.PointInPolygon(p, f.ring)
}

type stateKey struct {
	fenceID uuid.UUID
	uid     string
}

// pairState is the per-(geofence, entity) machine.
type pairState struct {
	mu         sync.Mutex
	inside     bool
	enteredAt  time.Time
	dwellFired bool
}

// Evaluator holds the geofence set and all containment state.
type Evaluator struct {
	logger *slog.Logger

	mu     sync.RWMutex
	fences map[uuid.UUID]*fence

	statesMu sync.Mutex
	states   map[stateKey]*pairState

	alerts  *alertLog
	metrics *evaluatorMetrics
}

// NewEvaluator creates an evaluator retaining up to alertCap alerts.
func NewEvaluator(alertCap int, logger *slog.Logger) *Evaluator {
	e := &Evaluator{
		logger: logger,
		fences: make(map[uuid.UUID]*fence),
		states: make(map[stateKey]*pairState),
		alerts: newAlertLog(alertCap),
	}
	e.metrics = newEvaluatorMetrics(e)
	return e
}

// Add validates and stores a geofence, assigning its ID and creation
// time. Returns the stored definition and the compiled ring (empty for
// circles) for the caller to relay as a map overlay.
func (e *Evaluator) Add(g model.Geofence) (model.Geofence, []model.LatLon, error) {
	if err := g.Validate(); err != nil {
		return model.Geofence{}, nil, err
	}
	g.ID = uuid.New()
	g.CreatedAt = time.Now().UTC()

	f := &fence{def: g}
	switch g.Shape.Kind {
	case model.ShapePolygon:
		f.ring = geo.NormalizeRing(g.Shape.Vertices)
	case model.ShapeRectangle:
		f.ring = geo.RectangleVertices(g.Shape.Center, g.Shape.WidthM, g.Shape.HeightM)
	}

	e.mu.Lock()
	e.fences[g.ID] = f
	e.mu.Unlock()

	e.logger.Info("geofence added", "id", g.ID, "name", g.Name, "shape", g.Shape.Kind)
	return g, f.ring, nil
}

// Remove deletes a geofence and all its containment state.
func (e *Evaluator) Remove(id uuid.UUID) error {
	e.mu.Lock()
	_, ok := e.fences[id]
	delete(e.fences, id)
	e.mu.Unlock()
	if !ok {
		return &model.NotFoundError{UID: id.String()}
	}

	e.statesMu.Lock()
	for key := range e.states {
		if key.fenceID == id {
			delete(e.states, key)
		}
	}
	e.statesMu.Unlock()

	e.logger.Info("geofence removed", "id", id)
	return nil
}

// Get returns a geofence definition by ID.
func (e *Evaluator) Get(id uuid.UUID) (model.Geofence, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, ok := e.fences[id]
	if !ok {
		return model.Geofence{}, &model.NotFoundError{UID: id.String()}
	}
	return f.def, nil
}

// List returns all geofences, ordered by creation time then ID.
func (e *Evaluator) List() []model.Geofence {
	e.mu.RLock()
	out := make([]model.Geofence, 0, len(e.fences))
	for _, f := range e.fences {
		out = append(out, f.def)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Evaluate runs one report through every monitoring geofence and
// returns the alerts it raised. The evaluator must see every update,
// not just the latest state, so it consumes the normalized stream
// directly.
func (e *Evaluator) Evaluate(r model.PositionReport) []Alert {
	e.mu.RLock()
	fences := make([]*fence, 0, len(e.fences))
	for _, f := range e.fences {
		fences = append(fences, f)
	}
	e.mu.RUnlock()

	var alerts []Alert
	for _, f := range fences {
		if !f.def.Monitors(r.Type) {
			continue
		}
		if a := e.transition(f, r); len(a) > 0 {
			alerts = append(alerts, a...)
		}
	}

	for _, a := range alerts {
		e.alerts.add(a)
		e.metrics.recordAlert(a.Kind)
		e.logger.Info("geofence alert",
			"kind", a.Kind, "geofence", a.GeofenceName, "uid", a.EntityUID, "severity", a.Severity)
	}
	return alerts
}

// transition applies one report to one (fence, entity) state machine.
func (e *Evaluator) transition(f *fence, r model.PositionReport) []Alert {
	st := e.stateFor(f.def.ID, r.UID)

	st.mu.Lock()
	defer st.mu.Unlock()

	inside := f.contains(r.Position())
	at := r.ObservedAt

	var out []Alert
	switch {
	case inside && !st.inside:
		st.inside = true
		st.enteredAt = at
		st.dwellFired = false
		if f.def.Triggers.OnEntry {
			out = append(out, newAlert(AlertEntry, f.def, r, 0))
		}

	case !inside && st.inside:
		st.inside = false
		st.enteredAt = time.Time{}
		st.dwellFired = false
		if f.def.Triggers.OnExit {
			out = append(out, newAlert(AlertExit, f.def, r, 0))
		}

	case inside && st.inside:
		// Dwell fires at most once per continuous inside period.
		if d := f.def.Triggers.OnDwell; d != nil && !st.dwellFired {
			if dwell := at.Sub(st.enteredAt); dwell >= d.Threshold {
				st.dwellFired = true
				out = append(out, newAlert(AlertDwell, f.def, r, dwell))
			}
		}
	}
	return out
}

func (e *Evaluator) stateFor(fenceID uuid.UUID, uid string) *pairState {
	key := stateKey{fenceID: fenceID, uid: uid}
	e.statesMu.Lock()
	defer e.statesMu.Unlock()
	st, ok := e.states[key]
	if !ok {
		st = &pairState{}
		e.states[key] = st
	}
	return st
}

// RecentAlerts returns up to n retained alerts, newest first. Zero or
// negative n returns all retained alerts. A non-zero since drops older
// alerts.
func (e *Evaluator) RecentAlerts(n int, since time.Time) []Alert {
	return e.alerts.recent(n, since)
}
