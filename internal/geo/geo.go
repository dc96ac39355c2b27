// Package geo is the geometry library underneath the spatial query
// engine, the geofence evaluator, and the movement analyzer.
//
// Great-circle math is delegated to kellydunn/golang-geo so that every
// consumer uses the same spherical formula: a point filtered by
// distance and the distance reported for it always come from the same
// computation. All distances cross package boundaries in meters;
// bearings are degrees true, normalized to [0, 360).
package geo

import (
	"math"

	kgeo "github.com/kellydunn/golang-geo"

	"github.com/bcperry/tak-server-mcp/internal/model"
)

// Unit is a linear distance unit for query results.
type Unit string

const (
	UnitMeters        Unit = "m"
	UnitKilometers    Unit = "km"
	UnitMiles         Unit = "mi"
	UnitNauticalMiles Unit = "nmi"
)

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b model.LatLon) float64 {
	pa := kgeo.NewPoint(a.Lat, a.Lon)
	pb := kgeo.NewPoint(b.Lat, b.Lon)
	return pa.GreatCircleDistance(pb) * 1000
}

// BearingDegrees returns the forward azimuth from a to b in [0, 360).
func BearingDegrees(a, b model.LatLon) float64 {
	pa := kgeo.NewPoint(a.Lat, a.Lon)
	pb := kgeo.NewPoint(b.Lat, b.Lon)
	return normalizeBearing(pa.BearingTo(pb))
}

// BackBearing returns the reciprocal bearing: (b + 180) mod 360.
func BackBearing(bearing float64) float64 {
	return normalizeBearing(bearing + 180)
}

// Destination projects a point along a bearing for a distance in meters.
func Destination(p model.LatLon, distanceM, bearingDeg float64) model.LatLon {
	pt := kgeo.NewPoint(p.Lat, p.Lon)
	dst := pt.PointAtDistanceAndBearing(distanceM/1000, bearingDeg)
	return model.LatLon{Lat: dst.Lat(), Lon: dst.Lng()}
}

// HeadingDelta returns the signed change from one bearing to another,
// normalized to (-180, 180]. Positive is a clockwise turn.
func HeadingDelta(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// ConvertMeters converts a distance in meters to the requested unit.
func ConvertMeters(meters float64, unit Unit) (float64, error) {
	switch unit {
	case UnitMeters, "":
		return meters, nil
	case UnitKilometers:
		return meters * 0.001, nil
	case UnitMiles:
		return meters * 0.000621371, nil
	case UnitNauticalMiles:
		return meters * 0.000539957, nil
	default:
		return 0, model.Validationf("units", "unknown unit %q", unit)
	}
}

func normalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
