package geo

import (
	"math"
	"testing"

	"github.com/bcperry/tak-server-mcp/internal/model"
)

var (
	embarcadero = model.LatLon{Lat: 37.7749, Lon: -122.4194}
	northBeach  = model.LatLon{Lat: 37.7849, Lon: -122.4094}
)

func TestDistanceMetersKnownPair(t *testing.T) {
	// ~1450m between the two SF points, north-northeast of each other.
	d := DistanceMeters(embarcadero, northBeach)
	if d < 1450*0.95 || d > 1450*1.05 {
		t.Fatalf("distance = %.1f m, want 1450 m +-5%%", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	ab := DistanceMeters(embarcadero, northBeach)
	ba := DistanceMeters(northBeach, embarcadero)
	if math.Abs(ab-ba) > 1e-6 {
		t.Fatalf("distance not symmetric: %.9f vs %.9f", ab, ba)
	}
}

func TestBearingDegrees(t *testing.T) {
	b := BearingDegrees(embarcadero, northBeach)
	if b < 32 || b > 40 {
		t.Fatalf("bearing = %.2f, want 32-40 (NNE)", b)
	}

	// Forward and reverse bearings differ by 180 modulo 360.
	rev := BearingDegrees(northBeach, embarcadero)
	diff := math.Mod(math.Abs(rev-b), 360)
	if math.Abs(diff-180) > 0.5 {
		t.Fatalf("reverse bearing %.2f not opposite of %.2f", rev, b)
	}
}

func TestBackBearing(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 180},
		{90, 270},
		{270, 90},
		{359, 179},
	}
	for _, tt := range tests {
		if got := BackBearing(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BackBearing(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDestinationRoundTrip(t *testing.T) {
	dst := Destination(embarcadero, 1000, 45)
	back := DistanceMeters(embarcadero, dst)
	if math.Abs(back-1000) > 1 {
		t.Fatalf("projected point is %.2f m away, want 1000 m", back)
	}
}

func TestHeadingDelta(t *testing.T) {
	tests := []struct{ from, to, want float64 }{
		{10, 20, 10},
		{350, 10, 20},   // wraps clockwise through north
		{10, 350, -20},  // wraps counterclockwise
		{0, 180, 180},   // boundary maps to +180, not -180
		{90, 270, 180},
	}
	for _, tt := range tests {
		if got := HeadingDelta(tt.from, tt.to); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("HeadingDelta(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestConvertMeters(t *testing.T) {
	tests := []struct {
		unit Unit
		want float64
	}{
		{UnitMeters, 1500},
		{UnitKilometers, 1.5},
		{UnitMiles, 0.9320565},
		{UnitNauticalMiles, 0.8099355},
	}
	for _, tt := range tests {
		got, err := ConvertMeters(1500, tt.unit)
		if err != nil {
			t.Fatalf("ConvertMeters(%s): %v", tt.unit, err)
		}
		if math.Abs(got-tt.want) > 1e-4 {
			t.Errorf("ConvertMeters(1500, %s) = %v, want %v", tt.unit, got, tt.want)
		}
	}

	if _, err := ConvertMeters(1, Unit("furlongs")); err == nil {
		t.Fatal("expected error for unknown unit")
	}
}

func TestPointInPolygon(t *testing.T) {
	square := []model.LatLon{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 1, Lon: 1},
		{Lat: 1, Lon: 0},
	}

	if !PointInPolygon(model.LatLon{Lat: 0.5, Lon: 0.5}, square) {
		t.Fatal("center of square should be inside")
	}
	if PointInPolygon(model.LatLon{Lat: 1.5, Lon: 0.5}, square) {
		t.Fatal("point north of square should be outside")
	}

	// A closed ring (duplicate last vertex) behaves identically.
	closed := append(append([]model.LatLon{}, square...), square[0])
	if !PointInPolygon(model.LatLon{Lat: 0.5, Lon: 0.5}, closed) {
		t.Fatal("closed ring should contain center")
	}

	// Degenerate rings contain nothing.
	if PointInPolygon(model.LatLon{Lat: 0, Lon: 0}, square[:2]) {
		t.Fatal("2-vertex ring cannot contain a point")
	}
}

func TestCentroidAndBoundingBox(t *testing.T) {
	square := []model.LatLon{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 2},
		{Lat: 2, Lon: 2},
		{Lat: 2, Lon: 0},
	}
	c := Centroid(square)
	if c.Lat != 1 || c.Lon != 1 {
		t.Fatalf("centroid = %+v, want (1,1)", c)
	}

	box := BoundingBox(square)
	want := model.BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2}
	if box != want {
		t.Fatalf("bbox = %+v, want %+v", box, want)
	}
}

func TestRectangleVertices(t *testing.T) {
	center := model.LatLon{Lat: 37.77, Lon: -122.42}
	ring := RectangleVertices(center, 1000, 600)
	if len(ring) != 4 {
		t.Fatalf("expected 4 vertices, got %d", len(ring))
	}

	// Opposite sides should be ~1000m and ~600m apart.
	width := DistanceMeters(ring[0], ring[1])
	height := DistanceMeters(ring[1], ring[2])
	if math.Abs(width-1000) > 10 {
		t.Errorf("width = %.1f m, want ~1000", width)
	}
	if math.Abs(height-600) > 10 {
		t.Errorf("height = %.1f m, want ~600", height)
	}

	// The center must be inside its own rectangle.
	if !PointInPolygon(center, ring) {
		t.Fatal("rectangle should contain its center")
	}
}

func TestCircleContains(t *testing.T) {
	center := model.LatLon{Lat: 0, Lon: 0}
	inside := model.LatLon{Lat: 0, Lon: 0.005} // ~555 m east
	outside := model.LatLon{Lat: 0, Lon: 0.02} // ~2224 m east

	if !CircleContains(center, 1000, inside) {
		t.Fatal("point ~555m away should be inside 1000m circle")
	}
	if CircleContains(center, 1000, outside) {
		t.Fatal("point ~2224m away should be outside 1000m circle")
	}
}

func TestGeohash(t *testing.T) {
	h := Geohash(37.7749, -122.4194)
	if len(h) != GeohashPrecision {
		t.Fatalf("geohash length = %d, want %d", len(h), GeohashPrecision)
	}
	// Same cell for the same coordinate, different for a distant one.
	if h != Geohash(37.7749, -122.4194) {
		t.Fatal("geohash should be deterministic")
	}
	if h == Geohash(0, 0) {
		t.Fatal("distant points should land in different cells")
	}
}
