package model

import (
	"time"

	"github.com/google/uuid"
)

// ShapeKind discriminates the geofence shape variant.
type ShapeKind string

const (
	ShapeCircle    ShapeKind = "circle"
	ShapePolygon   ShapeKind = "polygon"
	ShapeRectangle ShapeKind = "rectangle"
)

// Shape is a tagged union over the supported geofence geometries.
// Only the fields for the active Kind are meaningful.
type Shape struct {
	Kind ShapeKind `json:"kind"`

	// Circle and rectangle.
	Center LatLon `json:"center,omitempty"`

	// Circle.
	RadiusM float64 `json:"radius_m,omitempty"`

	// Polygon: an open ring of at least 3 vertices. A closed ring
	// (last == first) is accepted and normalized by the consumer.
	Vertices []LatLon `json:"vertices,omitempty"`

	// Rectangle: axis-aligned in the local tangent frame at Center.
	WidthM  float64 `json:"width_m,omitempty"`  // east-west extent
	HeightM float64 `json:"height_m,omitempty"` // north-south extent
}

// Validate rejects degenerate shapes. Degenerate input is a validation
// failure, never a silent default.
func (s Shape) Validate() error {
	switch s.Kind {
	case ShapeCircle:
		if !s.Center.Valid() {
			return Validationf("shape.center", "coordinates out of range")
		}
		if s.RadiusM <= 0 {
			return Validationf("shape.radius_m", "must be positive, got %v", s.RadiusM)
		}
	case ShapePolygon:
		if len(s.Vertices) < 3 {
			return Validationf("shape.vertices", "polygon needs at least 3 vertices, got %d", len(s.Vertices))
		}
		for i, v := range s.Vertices {
			if !v.Valid() {
				return Validationf("shape.vertices", "vertex %d out of range", i)
			}
		}
	case ShapeRectangle:
		if !s.Center.Valid() {
			return Validationf("shape.center", "coordinates out of range")
		}
		if s.WidthM <= 0 || s.HeightM <= 0 {
			return Validationf("shape", "rectangle extents must be positive, got %vx%v", s.WidthM, s.HeightM)
		}
	default:
		return Validationf("shape.kind", "unknown shape kind %q", s.Kind)
	}
	return nil
}

// DwellTrigger fires once per continuous inside period after an entity
// has dwelled inside the fence for at least Threshold.
type DwellTrigger struct {
	Threshold time.Duration `json:"threshold"`
}

// Triggers selects which geofence transitions raise alerts.
type Triggers struct {
	OnEntry bool          `json:"on_entry"`
	OnExit  bool          `json:"on_exit"`
	OnDwell *DwellTrigger `json:"on_dwell,omitempty"`
}

// Geofence is a user-defined monitored region. It persists until
// explicitly removed.
type Geofence struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Shape    Shape     `json:"shape"`

	// TypePatterns restricts monitoring to matching CoT types.
	// Empty means all entities are monitored.
	TypePatterns []string `json:"type_patterns,omitempty"`

	Triggers Triggers `json:"triggers"`
	Severity string   `json:"severity,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fence definition, including its shape and dwell
// threshold.
func (g Geofence) Validate() error {
	if g.Name == "" {
		return Validationf("name", "must not be empty")
	}
	if err := g.Shape.Validate(); err != nil {
		return err
	}
	if g.Triggers.OnDwell != nil && g.Triggers.OnDwell.Threshold <= 0 {
		return Validationf("triggers.on_dwell.threshold", "must be positive")
	}
	return nil
}

// Monitors reports whether the fence watches the given CoT type.
func (g Geofence) Monitors(cotType string) bool {
	if len(g.TypePatterns) == 0 {
		return true
	}
	for _, p := range g.TypePatterns {
		if TypeMatches(cotType, p) {
			return true
		}
	}
	return false
}
