package geofence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bcperry/tak-server-mcp/internal/model"
)

// AlertKind is the geofence transition that raised an alert.
type AlertKind string

const (
	AlertEntry AlertKind = "entry"
	AlertExit  AlertKind = "exit"
	AlertDwell AlertKind = "dwell"
)

// Alert is one raised geofence transition.
type Alert struct {
	ID           uuid.UUID     `json:"id"`
	Kind         AlertKind     `json:"kind"`
	GeofenceID   uuid.UUID     `json:"geofence_id"`
	GeofenceName string        `json:"geofence_name"`
	Severity     string        `json:"severity,omitempty"`
	EntityUID    string        `json:"entity_uid"`
	Callsign     string        `json:"callsign,omitempty"`
	Lat          float64       `json:"lat"`
	Lon          float64       `json:"lon"`
	At           time.Time     `json:"at"`
	Dwell        time.Duration `json:"dwell,omitempty"`
}

func newAlert(kind AlertKind, g model.Geofence, r model.PositionReport, dwell time.Duration) Alert {
	return Alert{
		ID:           uuid.New(),
		Kind:         kind,
		GeofenceID:   g.ID,
		GeofenceName: g.Name,
		Severity:     g.Severity,
		EntityUID:    r.UID,
		Callsign:     r.Callsign,
		Lat:          r.Lat,
		Lon:          r.Lon,
		At:           r.ObservedAt,
		Dwell:        dwell,
	}
}

// alertLog is a bounded ring of raised alerts, newest retained.
type alertLog struct {
	mu     sync.Mutex
	alerts []Alert
	capN   int
}

func newAlertLog(capN int) *alertLog {
	if capN <= 0 {
		capN = 500
	}
	return &alertLog{capN: capN}
}

func (l *alertLog) add(a Alert) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, a)
	if len(l.alerts) > l.capN {
		l.alerts = l.alerts[len(l.alerts)-l.capN:]
	}
}

// recent returns up to n alerts newest first; n <= 0 means all.
func (l *alertLog) recent(n int, since time.Time) []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Alert, 0, len(l.alerts))
	for i := len(l.alerts) - 1; i >= 0; i-- {
		a := l.alerts[i]
		if !since.IsZero() && a.At.Before(since) {
			continue
		}
		out = append(out, a)
		if n > 0 && len(out) >= n {
			break
		}
	}
	return out
}
