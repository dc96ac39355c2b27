package cot

import (
	"fmt"

	"github.com/bcperry/tak-server-mcp/internal/geo"
	"github.com/bcperry/tak-server-mcp/internal/model"
)

// Normalize converts a decoded wire event into the canonical position
// report. It is a pure transform: required fields missing or
// geographically invalid coordinates yield a validation failure and no
// partial result.
func Normalize(ev *Event) (model.PositionReport, error) {
	var zero model.PositionReport

	if ev.UID == "" {
		return zero, model.Validationf("uid", "required")
	}
	if ev.Type == "" {
		return zero, model.Validationf("type", "required")
	}
	if ev.Time.IsZero() {
		return zero, model.Validationf("time", "required")
	}
	if ev.Point == nil {
		return zero, model.Validationf("point", "required")
	}
	if ev.Point.Lat < -90 || ev.Point.Lat > 90 {
		return zero, model.Validationf("point.lat", "%v outside [-90, 90]", ev.Point.Lat)
	}
	if ev.Point.Lon < -180 || ev.Point.Lon > 180 {
		return zero, model.Validationf("point.lon", "%v outside [-180, 180]", ev.Point.Lon)
	}

	observed := ev.Time.Time
	validUntil := ev.Stale.Time
	if validUntil.IsZero() {
		// No stale attribute: the report expires the instant it was
		// observed, leaving staleness entirely to query-time windows.
		validUntil = observed
	}
	if validUntil.Before(observed) {
		return zero, model.Validationf("stale", "precedes event time")
	}

	r := model.PositionReport{
		UID:         ev.UID,
		Type:        ev.Type,
		ObservedAt:  observed,
		ValidUntil:  validUntil,
		Lat:         ev.Point.Lat,
		Lon:         ev.Point.Lon,
		AltitudeHAE: knownValue(ev.Point.HAE),
		CircularErr: knownValue(ev.Point.CE),
		LinearErr:   knownValue(ev.Point.LE),
	}

	if d := ev.Detail; d != nil {
		if d.Contact != nil {
			r.Callsign = d.Contact.Callsign
		}
		if d.Group != nil {
			r.Team = d.Group.Name
			r.Role = d.Group.Role
		}
		if d.Track != nil {
			course := d.Track.Course
			speed := d.Track.Speed
			r.Detail.Heading = &course
			r.Detail.Speed = &speed
		}
		if d.Status != nil && d.Status.Battery != nil {
			battery := *d.Status.Battery
			r.Detail.Battery = &battery
		}
		r.Detail.Remarks = d.Remarks
		if len(d.Extra) > 0 {
			r.Detail.Extra = make(map[string]string, len(d.Extra))
			for _, el := range d.Extra {
				r.Detail.Extra[el.XMLName.Local] = el.Inner
			}
		}
	}

	return r, nil
}

// knownValue maps the CoT unknown sentinel to an absent value.
func knownValue(v float64) *float64 {
	if v >= UnknownValue {
		return nil
	}
	return &v
}

// GeofenceEvent serializes a geofence as a TAK drawing-shape event so
// the wire client can relay it to the server as a map overlay. Circles
// become ellipse drawings; polygons and rectangles become closed
// free-form drawings.
func GeofenceEvent(g model.Geofence, ring []model.LatLon) *Event {
	ev := &Event{
		Version: "2.0",
		UID:     "geofence-" + g.ID.String(),
		How:     "h-g-i-g-o",
		Time:    Now(),
		Start:   Now(),
		Stale:   At(Now().AddDate(1, 0, 0)),
		Detail: &Detail{
			Contact: &Contact{Callsign: g.Name},
			Remarks: fmt.Sprintf("geofence severity=%s", g.Severity),
		},
	}

	switch g.Shape.Kind {
	case model.ShapeCircle:
		ev.Type = "u-d-c-c"
		ev.Point = &Point{
			Lat: g.Shape.Center.Lat,
			Lon: g.Shape.Center.Lon,
			HAE: UnknownValue, CE: UnknownValue, LE: UnknownValue,
		}
		ev.Detail.Shape = &ShapeDetail{
			Ellipse: &Ellipse{Major: g.Shape.RadiusM, Minor: g.Shape.RadiusM, Angle: 360},
		}
	default: // polygon and rectangle share the free-form drawing type
		ev.Type = "u-d-f"
		center := geo.Centroid(ring)
		ev.Point = &Point{
			Lat: center.Lat,
			Lon: center.Lon,
			HAE: UnknownValue, CE: UnknownValue, LE: UnknownValue,
		}
		links := make([]Link, 0, len(ring)+1)
		for _, v := range ring {
			links = append(links, Link{Point: formatLatLon(v)})
		}
		if len(ring) > 0 {
			links = append(links, Link{Point: formatLatLon(ring[0])}) // close the ring
		}
		ev.Detail.Links = links
	}
	return ev
}

func formatLatLon(p model.LatLon) string {
	return fmt.Sprintf("%.7f,%.7f", p.Lat, p.Lon)
}
