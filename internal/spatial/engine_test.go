package spatial

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcperry/tak-server-mcp/internal/geo"
	"github.com/bcperry/tak-server-mcp/internal/model"
	"github.com/bcperry/tak-server-mcp/internal/track"
)

func newTestEngine(t *testing.T) (*Engine, *track.Store) {
	t.Helper()
	store := track.NewStore(track.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = store.Close() })
	return NewEngine(store), store
}

func seed(store *track.Store, uid string, lat, lon float64) {
	now := time.Now()
	store.Upsert(model.PositionReport{
		UID: uid, Type: "a-f-G-U-C",
		ObservedAt: now, ValidUntil: now.Add(5 * time.Minute),
		Lat: lat, Lon: lon,
	})
}

func TestWithinRadius(t *testing.T) {
	e, store := newTestEngine(t)
	now := time.Now()

	seed(store, "near", 0, 0.005) // ~555 m from origin
	seed(store, "far", 0, 0.02)   // ~2224 m from origin

	got, err := e.WithinRadius(model.LatLon{Lat: 0, Lon: 0}, 1000, model.EntityFilter{}, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].Report.UID)
	assert.InDelta(t, 555, got[0].DistanceM, 30)
	assert.Len(t, got[0].Geohash, geo.GeohashPrecision)
}

func TestWithinRadiusValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()

	_, err := e.WithinRadius(model.LatLon{Lat: 95, Lon: 0}, 100, model.EntityFilter{}, now)
	assert.True(t, model.IsValidation(err))

	_, err = e.WithinRadius(model.LatLon{}, -1, model.EntityFilter{}, now)
	assert.True(t, model.IsValidation(err))
}

func TestWithinRadiusConsistentWithDistance(t *testing.T) {
	// The boundary test and reported distance must agree: an entity is
	// included iff its reported distance <= radius.
	e, store := newTestEngine(t)
	now := time.Now()
	center := model.LatLon{Lat: 37.7749, Lon: -122.4194}
	seed(store, "edge", 37.7849, -122.4094) // ~1.45km away

	d, err := e.DistanceBetween(center, model.LatLon{Lat: 37.7849, Lon: -122.4094}, geo.UnitMeters)
	require.NoError(t, err)

	in, err := e.WithinRadius(center, d.Meters+1, model.EntityFilter{}, now)
	require.NoError(t, err)
	assert.Len(t, in, 1)

	out, err := e.WithinRadius(center, d.Meters-1, model.EntityFilter{}, now)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWithinPolygon(t *testing.T) {
	e, store := newTestEngine(t)
	now := time.Now()

	seed(store, "inside", 0.5, 0.5)
	seed(store, "outside", 2, 2)

	ring := []model.LatLon{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0}}
	got, err := e.WithinPolygon(ring, model.EntityFilter{}, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "inside", got[0].Report.UID)

	// Closed ring input behaves identically.
	closed := append(append([]model.LatLon{}, ring...), ring[0])
	got2, err := e.WithinPolygon(closed, model.EntityFilter{}, now)
	require.NoError(t, err)
	assert.Len(t, got2, 1)

	_, err = e.WithinPolygon(ring[:2], model.EntityFilter{}, now)
	assert.True(t, model.IsValidation(err))
}

func TestNearestDeterministicTieBreak(t *testing.T) {
	e, store := newTestEngine(t)
	now := time.Now()

	// Two entities exactly equidistant from the reference point.
	seed(store, "bravo", 0, 0.01)
	seed(store, "alpha", 0, -0.01)

	for i := 0; i < 5; i++ {
		got, err := e.Nearest(model.LatLon{Lat: 0, Lon: 0}, 1, 0, model.EntityFilter{}, now)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "alpha", got[0].Report.UID, "lexicographically smaller UID must win ties")
	}
}

func TestNearestMaxDistanceAndResults(t *testing.T) {
	e, store := newTestEngine(t)
	now := time.Now()

	seed(store, "a", 0, 0.001)
	seed(store, "b", 0, 0.002)
	seed(store, "c", 0, 0.03)

	got, err := e.Nearest(model.LatLon{Lat: 0, Lon: 0}, 10, 1000, model.EntityFilter{}, now)
	require.NoError(t, err)
	require.Len(t, got, 2, "entity beyond max distance must be dropped")
	assert.Equal(t, "a", got[0].Report.UID)
	assert.Equal(t, "b", got[1].Report.UID)

	got, err = e.Nearest(model.LatLon{Lat: 0, Lon: 0}, 1, 0, model.EntityFilter{}, now)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = e.Nearest(model.LatLon{}, 0, 0, model.EntityFilter{}, now)
	assert.True(t, model.IsValidation(err))
}

func TestDistanceBetweenUnits(t *testing.T) {
	e, _ := newTestEngine(t)
	a := model.LatLon{Lat: 37.7749, Lon: -122.4194}
	b := model.LatLon{Lat: 37.7849, Lon: -122.4094}

	m, err := e.DistanceBetween(a, b, geo.UnitMeters)
	require.NoError(t, err)
	assert.InDelta(t, 1450, m.Meters, 1450*0.05)
	assert.True(t, m.BearingDeg >= 32 && m.BearingDeg <= 40, "bearing %v not NNE", m.BearingDeg)
	assert.InDelta(t, m.BearingDeg+180, m.BackBearingDeg, 1e-9)

	km, err := e.DistanceBetween(a, b, geo.UnitKilometers)
	require.NoError(t, err)
	assert.InDelta(t, m.Meters*0.001, km.Value, 1e-9)

	_, err = e.DistanceBetween(a, b, geo.Unit("cubits"))
	assert.True(t, model.IsValidation(err))
}

func TestDistanceToManyIsolatesFailures(t *testing.T) {
	e, store := newTestEngine(t)
	seed(store, "known", 0, 0.01)

	items, err := e.DistanceToMany(model.LatLon{Lat: 0, Lon: 0}, []string{"known", "ghost"}, geo.UnitMeters)
	require.NoError(t, err, "one unresolvable entity must not fail the batch")
	require.Len(t, items, 2)

	assert.Equal(t, "known", items[0].UID)
	require.NotNil(t, items[0].Distance)
	assert.Empty(t, items[0].Error)

	assert.Equal(t, "ghost", items[1].UID)
	assert.Nil(t, items[1].Distance)
	assert.NotEmpty(t, items[1].Error)

	_, err = e.DistanceToMany(model.LatLon{}, nil, geo.UnitMeters)
	assert.True(t, model.IsValidation(err))
}
