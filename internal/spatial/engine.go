// Package spatial answers radius, polygon, and nearest-neighbor
// queries over the current entity picture, enriching results with
// distance, bearing, and grid-index data derived from one consistent
// great-circle formula.
package spatial

import (
	"sort"
	"time"

	"github.com/bcperry/tak-server-mcp/internal/geo"
	"github.com/bcperry/tak-server-mcp/internal/model"
	"github.com/bcperry/tak-server-mcp/internal/track"
)

// Engine reads current state from the store; it holds no state of its
// own, so any number of queries may run concurrently.
type Engine struct {
	store *track.Store
}

// NewEngine creates a spatial query engine over the store.
func NewEngine(store *track.Store) *Engine {
	return &Engine{store: store}
}

// Proximity is one entity in a spatial result set, enriched with its
// relation to the query's reference point.
type Proximity struct {
	Report     model.PositionReport `json:"report"`
	DistanceM  float64              `json:"distance_m"`
	BearingDeg float64              `json:"bearing_deg"`
	Geohash    string               `json:"geohash"`
}

// WithinRadius returns every filtered entity within radiusM meters of
// center, ordered nearest first. The same distance that filtered the
// entity is the one reported.
func (e *Engine) WithinRadius(center model.LatLon, radiusM float64, f model.EntityFilter, now time.Time) ([]Proximity, error) {
	if !center.Valid() {
		return nil, model.Validationf("center", "coordinates out of range")
	}
	if radiusM <= 0 {
		return nil, model.Validationf("radius_m", "must be positive, got %v", radiusM)
	}

	out := make([]Proximity, 0)
	for _, r := range e.store.Query(f, now) {
		d := geo.DistanceMeters(center, r.Position())
		if d <= radiusM {
			out = append(out, e.enrich(center, r, d))
		}
	}
	sortByDistance(out)
	return out, nil
}

// WithinPolygon returns every filtered entity inside the ring. An open
// ring is accepted; a closed ring is normalized. Distance and bearing
// are reported relative to the ring's centroid.
func (e *Engine) WithinPolygon(ring []model.LatLon, f model.EntityFilter, now time.Time) ([]Proximity, error) {
	ring = geo.NormalizeRing(ring)
	if len(ring) < 3 {
		return nil, model.Validationf("vertices", "polygon needs at least 3 vertices, got %d", len(ring))
	}
	for i, v := range ring {
		if !v.Valid() {
			return nil, model.Validationf("vertices", "vertex %d out of range", i)
		}
	}

	center := geo.Centroid(ring)
	out := make([]Proximity, 0)
	for _, r := range e.store.Query(f, now) {
		if geo.PointInPolygon(r.Position(), ring) {
			out = append(out, e.enrich(center, r, geo.DistanceMeters(center, r.Position())))
		}
	}
	sortByDistance(out)
	return out, nil
}

// Nearest returns up to maxResults filtered entities closest to ref,
// ascending by distance. Entities beyond maxDistanceM are dropped when
// it is positive. Equal distances tie-break on entity identifier so
// repeated calls over unchanged state are deterministic.
func (e *Engine) Nearest(ref model.LatLon, maxResults int, maxDistanceM float64, f model.EntityFilter, now time.Time) ([]Proximity, error) {
	if !ref.Valid() {
		return nil, model.Validationf("reference", "coordinates out of range")
	}
	if maxResults <= 0 {
		return nil, model.Validationf("max_results", "must be positive, got %d", maxResults)
	}

	out := make([]Proximity, 0)
	for _, r := range e.store.Query(f, now) {
		d := geo.DistanceMeters(ref, r.Position())
		if maxDistanceM > 0 && d > maxDistanceM {
			continue
		}
		out = append(out, e.enrich(ref, r, d))
	}
	sortByDistance(out)
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

// Distance is the measured relation between two points.
type Distance struct {
	Meters         float64  `json:"meters"`
	Value          float64  `json:"value"`
	Unit           geo.Unit `json:"unit"`
	BearingDeg     float64  `json:"bearing_deg"`
	BackBearingDeg float64  `json:"back_bearing_deg"`
}

// DistanceBetween measures a to b. Bearing is the forward azimuth from
// a; back-bearing its reciprocal.
func (e *Engine) DistanceBetween(a, b model.LatLon, unit geo.Unit) (Distance, error) {
	if !a.Valid() {
		return Distance{}, model.Validationf("from", "coordinates out of range")
	}
	if !b.Valid() {
		return Distance{}, model.Validationf("to", "coordinates out of range")
	}

	meters := geo.DistanceMeters(a, b)
	value, err := geo.ConvertMeters(meters, unit)
	if err != nil {
		return Distance{}, err
	}
	bearing := geo.BearingDegrees(a, b)
	return Distance{
		Meters:         meters,
		Value:          value,
		Unit:           unit,
		BearingDeg:     bearing,
		BackBearingDeg: geo.BackBearing(bearing),
	}, nil
}

// ResolvePosition returns the current coordinates of an entity.
func (e *Engine) ResolvePosition(uid string) (model.LatLon, error) {
	r, err := e.store.Current(uid)
	if err != nil {
		return model.LatLon{}, err
	}
	return r.Position(), nil
}

// BatchItem is one destination's outcome in a batch distance query.
// Error carries a per-item failure (an unresolvable entity) without
// failing the batch.
type BatchItem struct {
	UID      string    `json:"uid"`
	Distance *Distance `json:"distance,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// DistanceToMany measures origin to each destination entity. Items fail
// independently; the batch itself only fails on invalid input.
func (e *Engine) DistanceToMany(origin model.LatLon, uids []string, unit geo.Unit) ([]BatchItem, error) {
	if !origin.Valid() {
		return nil, model.Validationf("origin", "coordinates out of range")
	}
	if len(uids) == 0 {
		return nil, model.Validationf("uids", "must not be empty")
	}

	out := make([]BatchItem, 0, len(uids))
	for _, uid := range uids {
		pos, err := e.ResolvePosition(uid)
		if err != nil {
			out = append(out, BatchItem{UID: uid, Error: err.Error()})
			continue
		}
		d, err := e.DistanceBetween(origin, pos, unit)
		if err != nil {
			out = append(out, BatchItem{UID: uid, Error: err.Error()})
			continue
		}
		dist := d
		out = append(out, BatchItem{UID: uid, Distance: &dist})
	}
	return out, nil
}

func (e *Engine) enrich(ref model.LatLon, r model.PositionReport, distanceM float64) Proximity {
	return Proximity{
		Report:     r,
		DistanceM:  distanceM,
		BearingDeg: geo.BearingDegrees(ref, r.Position()),
		Geohash:    geo.Geohash(r.Lat, r.Lon),
	}
}

// sortByDistance orders ascending by distance, tie-breaking on UID for
// determinism over unchanged input.
func sortByDistance(items []Proximity) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].DistanceM != items[j].DistanceM {
			return items[i].DistanceM < items[j].DistanceM
		}
		return items[i].Report.UID < items[j].Report.UID
	})
}
