// Package model defines the canonical domain types shared across the
// engine: position reports, entity filters, geofences, and the typed
// failures the components raise.
package model

import (
	"strings"
	"time"
)

// Affiliation is the coarse friend/foe classification encoded in the
// second atom of a CoT type code ("a-f-G-U-C" → friendly).
type Affiliation string

const (
	AffiliationFriendly Affiliation = "friendly"
	AffiliationHostile  Affiliation = "hostile"
	AffiliationNeutral  Affiliation = "neutral"
	AffiliationUnknown  Affiliation = "unknown"
)

// AffiliationFromType derives the affiliation from a hierarchical CoT
// type code. Assumed friends count as friendly; suspects, jokers and
// fakers count as hostile, matching standard 2525 treatment.
func AffiliationFromType(cotType string) Affiliation {
	parts := strings.Split(cotType, "-")
	if len(parts) < 2 {
		return AffiliationUnknown
	}
	switch parts[1] {
	case "f", "a":
		return AffiliationFriendly
	case "h", "j", "k", "s":
		return AffiliationHostile
	case "n":
		return AffiliationNeutral
	default:
		return AffiliationUnknown
	}
}

// LatLon is a WGS84 geodetic coordinate.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is inside geographic range.
func (p LatLon) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Detail carries the open-ended per-report detail bag: the handful of
// fields the engine understands as typed optionals, plus Extra for
// anything the stream sent that we do not model.
type Detail struct {
	Battery *int     `json:"battery,omitempty"`    // percent
	Heading *float64 `json:"heading,omitempty"`    // degrees true
	Speed   *float64 `json:"speed,omitempty"`      // meters/second
	Remarks string   `json:"remarks,omitempty"`

	// Extra holds unrecognized detail elements keyed by element name,
	// value is the element's inner XML. Never interpreted, only relayed.
	Extra map[string]string `json:"extra,omitempty"`
}

// PositionReport is one observation of one entity at one instant,
// normalized from a raw CoT event.
//
// ObservedAt is the instant the report describes; ValidUntil is the
// instant after which it is stale. Staleness is a query-time predicate:
// stale reports are kept, and each consumer applies its own window.
type PositionReport struct {
	UID        string    `json:"uid"`
	Type       string    `json:"type"`
	ObservedAt time.Time `json:"observed_at"`
	ValidUntil time.Time `json:"valid_until"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Optional altitude and accuracy. A nil pointer means the stream
	// reported the value as unknown; it is never conflated with zero.
	AltitudeHAE *float64 `json:"altitude_hae,omitempty"` // meters above ellipsoid
	CircularErr *float64 `json:"ce,omitempty"`           // 1-sigma radius, meters
	LinearErr   *float64 `json:"le,omitempty"`           // 1-sigma vertical, meters

	Callsign string `json:"callsign,omitempty"`
	Team     string `json:"team,omitempty"`
	Role     string `json:"role,omitempty"`

	Detail Detail `json:"detail"`
}

// Position returns the report's coordinate.
func (r PositionReport) Position() LatLon {
	return LatLon{Lat: r.Lat, Lon: r.Lon}
}

// Affiliation derives the affiliation class from the type code.
func (r PositionReport) Affiliation() Affiliation {
	return AffiliationFromType(r.Type)
}

// Stale reports whether the report's validity window has passed at now.
func (r PositionReport) Stale(now time.Time) bool {
	return now.After(r.ValidUntil)
}

// MatchesTypePattern reports whether the report's type code matches a
// glob-style prefix pattern. "a-f*" and "a-f" both match "a-f-G-U-C";
// "*" matches everything.
func (r PositionReport) MatchesTypePattern(pattern string) bool {
	return TypeMatches(r.Type, pattern)
}

// TypeMatches applies a single glob-style prefix pattern to a CoT type
// code. A trailing "*" is stripped; the remainder is a prefix match.
func TypeMatches(cotType, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	prefix := strings.TrimSuffix(pattern, "*")
	return strings.HasPrefix(cotType, prefix)
}
