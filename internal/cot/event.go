// Package cot speaks Cursor-on-Target: the XML event format TAK
// servers stream, a normalizer into the engine's canonical position
// report, and a reconnecting TCP/TLS client.
package cot

import (
	"encoding/xml"
	"time"
)

// UnknownValue is the CoT sentinel for "value not known" in the hae,
// ce, and le point attributes. The normalizer maps it to an absent
// value so downstream code never mistakes it for a real measurement.
const UnknownValue = 9999999.0

// timeLayout is the wire timestamp format TAK emits.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Time wraps time.Time with CoT attribute (un)marshalling.
type Time struct {
	time.Time
}

// Now returns the current instant as a CoT time.
func Now() Time {
	return Time{time.Now().UTC()}
}

// At wraps an instant as a CoT time.
func At(t time.Time) Time {
	return Time{t}
}

func (t Time) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: t.UTC().Format(timeLayout)}, nil
}

func (t *Time) UnmarshalXMLAttr(attr xml.Attr) error {
	// RFC3339 with any fractional precision; TAK peers vary.
	parsed, err := time.Parse(time.RFC3339Nano, attr.Value)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// Event is a CoT event as it appears on the wire.
type Event struct {
	XMLName xml.Name `xml:"event"`
	Version string   `xml:"version,attr"`
	UID     string   `xml:"uid,attr"`
	Type    string   `xml:"type,attr"`
	How     string   `xml:"how,attr,omitempty"`
	Time    Time     `xml:"time,attr"`
	Start   Time     `xml:"start,attr"`
	Stale   Time     `xml:"stale,attr"`

	Point  *Point  `xml:"point"`
	Detail *Detail `xml:"detail"`
}

// Point is the event's geodetic position. hae/ce/le carry UnknownValue
// when the producer has no estimate.
type Point struct {
	Lat float64 `xml:"lat,attr"`
	Lon float64 `xml:"lon,attr"`
	HAE float64 `xml:"hae,attr"`
	CE  float64 `xml:"ce,attr"`
	LE  float64 `xml:"le,attr"`
}

// Detail is the open-ended detail bag. The elements the engine
// understands are typed; everything else lands in Extra verbatim.
type Detail struct {
	Contact *Contact `xml:"contact"`
	Group   *Group   `xml:"__group"`
	Track   *Track   `xml:"track"`
	Status  *Status  `xml:"status"`
	Remarks string   `xml:"remarks,omitempty"`

	// Outbound-only elements for drawing-shape events.
	Shape *ShapeDetail `xml:"shape,omitempty"`
	Links []Link       `xml:"link,omitempty"`

	Extra []Element `xml:",any"`
}

// Contact names the entity.
type Contact struct {
	Callsign string `xml:"callsign,attr"`
	Endpoint string `xml:"endpoint,attr,omitempty"`
}

// Group carries team membership.
type Group struct {
	Name string `xml:"name,attr"`
	Role string `xml:"role,attr"`
}

// Track carries instantaneous course and speed.
type Track struct {
	Course float64 `xml:"course,attr"` // degrees true
	Speed  float64 `xml:"speed,attr"`  // meters/second
}

// Status carries device health.
type Status struct {
	Battery *int `xml:"battery,attr,omitempty"`
}

// ShapeDetail is the ellipse element of a circle drawing event.
type ShapeDetail struct {
	Ellipse *Ellipse `xml:"ellipse,omitempty"`
}

// Ellipse axes are meters; a circle has major == minor.
type Ellipse struct {
	Major float64 `xml:"major,attr"`
	Minor float64 `xml:"minor,attr"`
	Angle float64 `xml:"angle,attr"`
}

// Link is one vertex of a polygon drawing event, encoded "lat,lon".
type Link struct {
	Point string `xml:"point,attr"`
}

// Element preserves a detail child the engine does not model.
type Element struct {
	XMLName xml.Name
	Inner   string `xml:",innerxml"`
}
