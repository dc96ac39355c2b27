package geo

import (
	kgeo "github.com/kellydunn/golang-geo"

	"github.com/bcperry/tak-server-mcp/internal/model"
)

// NormalizeRing returns the ring as an open ring: if the caller sent a
// closed ring (last vertex repeats the first) the duplicate is dropped.
// The containment test treats vertices as cyclic, so the closing edge
// is always implied.
func NormalizeRing(ring []model.LatLon) []model.LatLon {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		return ring[:len(ring)-1]
	}
	return ring
}

// PointInPolygon runs a ray-casting containment test of p against the
// ring. Open and closed rings are both accepted.
func PointInPolygon(p model.LatLon, ring []model.LatLon) bool {
	ring = NormalizeRing(ring)
	if len(ring) < 3 {
		return false
	}
	pts := make([]*kgeo.Point, len(ring))
	for i, v := range ring {
		pts[i] = kgeo.NewPoint(v.Lat, v.Lon)
	}
	return kgeo.NewPolygon(pts).Contains(kgeo.NewPoint(p.Lat, p.Lon))
}

// Centroid returns the arithmetic mean of the ring's vertices. Adequate
// for the small, convex-ish regions geofences describe; not a true
// spherical centroid.
func Centroid(ring []model.LatLon) model.LatLon {
	ring = NormalizeRing(ring)
	if len(ring) == 0 {
		return model.LatLon{}
	}
	var lat, lon float64
	for _, v := range ring {
		lat += v.Lat
		lon += v.Lon
	}
	n := float64(len(ring))
	return model.LatLon{Lat: lat / n, Lon: lon / n}
}

// BoundingBox returns the minimal box covering all points.
func BoundingBox(points []model.LatLon) model.BBox {
	if len(points) == 0 {
		return model.BBox{}
	}
	box := model.BBox{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLon: points[0].Lon, MaxLon: points[0].Lon,
	}
	for _, p := range points[1:] {
		if p.Lat < box.MinLat {
			box.MinLat = p.Lat
		}
		if p.Lat > box.MaxLat {
			box.MaxLat = p.Lat
		}
		if p.Lon < box.MinLon {
			box.MinLon = p.Lon
		}
		if p.Lon > box.MaxLon {
			box.MaxLon = p.Lon
		}
	}
	return box
}

// RectangleVertices builds the closed 4-vertex ring for a rectangle
// centered at center, axis-aligned in the local tangent frame. Order is
// NW, NE, SE, SW.
func RectangleVertices(center model.LatLon, widthM, heightM float64) []model.LatLon {
	halfW := widthM / 2
	halfH := heightM / 2
	north := Destination(center, halfH, 0)
	south := Destination(center, halfH, 180)
	return []model.LatLon{
		Destination(north, halfW, 270), // NW
		Destination(north, halfW, 90),  // NE
		Destination(south, halfW, 90),  // SE
		Destination(south, halfW, 270), // SW
	}
}

// CircleContains reports whether p lies within radiusM of center, using
// the same great-circle distance as every other distance in the engine.
func CircleContains(center model.LatLon, radiusM float64, p model.LatLon) bool {
	return DistanceMeters(center, p) <= radiusM
}
