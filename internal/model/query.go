package model

import "time"

// BBox is a geographic bounding box. Min/Max are inclusive.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the coordinate falls inside the box.
func (b BBox) Contains(p LatLon) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// EntityFilter is a conjunctive filter over current entity state.
// Zero-valued fields match everything.
type EntityFilter struct {
	// TypePatterns are glob-style prefix patterns over the CoT type
	// code; a report matches if any pattern matches.
	TypePatterns []string `json:"type_patterns,omitempty"`
	Teams        []string `json:"teams,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	BBox         *BBox    `json:"bbox,omitempty"`

	// MaxAge drops reports observed before now-MaxAge (the staleness
	// cutoff). Zero means no cutoff.
	MaxAge time.Duration `json:"max_age,omitempty"`
}

// Matches applies the filter to a report at the given query time.
func (f EntityFilter) Matches(r PositionReport, now time.Time) bool {
	if len(f.TypePatterns) > 0 {
		matched := false
		for _, p := range f.TypePatterns {
			if TypeMatches(r.Type, p) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(f.Teams) > 0 && !containsString(f.Teams, r.Team) {
		return false
	}
	if len(f.Roles) > 0 && !containsString(f.Roles, r.Role) {
		return false
	}
	if f.BBox != nil && !f.BBox.Contains(r.Position()) {
		return false
	}
	if f.MaxAge > 0 && r.ObservedAt.Before(now.Add(-f.MaxAge)) {
		return false
	}
	return true
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
