// Package movement analyzes an entity's track history: speed
// statistics, stop detection, heading-pattern classification, and
// speed-threshold anomalies.
//
// Each analysis is an independent pass over the same immutable segment
// slice, so the selected passes run concurrently in an errgroup with no
// shared mutable state.
package movement

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bcperry/tak-server-mcp/internal/geo"
	"github.com/bcperry/tak-server-mcp/internal/model"
)

// Options selects which passes run and their thresholds.
type Options struct {
	Speed   bool
	Pattern bool
	Stops   bool
	Anomaly bool

	// StopDistanceM groups consecutive points no further apart than
	// this into a candidate stop; StopMinDuration promotes a candidate
	// to a reported stop.
	StopDistanceM   float64
	StopMinDuration time.Duration

	// CircularTurnDeg classifies a track as circular when the absolute
	// accumulated signed turn exceeds it.
	CircularTurnDeg float64

	// AnomalyFraction flags segments faster than
	// average * (1 + AnomalyFraction). Must be in [0, 1].
	AnomalyFraction float64
}

const (
	defaultStopDistanceM   = 50.0
	defaultStopMinDuration = 5 * time.Minute
	defaultCircularTurnDeg = 300.0
)

func (o Options) withDefaults() Options {
	if o.StopDistanceM == 0 {
		o.StopDistanceM = defaultStopDistanceM
	}
	if o.StopMinDuration == 0 {
		o.StopMinDuration = defaultStopMinDuration
	}
	if o.CircularTurnDeg == 0 {
		o.CircularTurnDeg = defaultCircularTurnDeg
	}
	return o
}

// SpeedStats summarizes speed over the track. Speeds are meters per
// second; segments with zero elapsed time carry no rate and are
// excluded rather than treated as infinite.
type SpeedStats struct {
	AverageMS      float64       `json:"average_ms"`
	MinMS          float64       `json:"min_ms"`
	MaxMS          float64       `json:"max_ms"`
	TotalDistanceM float64       `json:"total_distance_m"`
	Duration       time.Duration `json:"duration"`
}

// PatternKind is the movement classification.
type PatternKind string

const (
	PatternLinear   PatternKind = "linear"
	PatternCircular PatternKind = "circular"
)

// Pattern reports the heading-change classification.
type Pattern struct {
	Kind         PatternKind `json:"kind"`
	TotalTurnDeg float64     `json:"total_turn_deg"` // signed accumulated turn
	PathLengthM  float64     `json:"path_length_m"`
	BBox         model.BBox  `json:"bbox"`
}

// Stop is a detected stationary interval.
type Stop struct {
	Center     model.LatLon  `json:"center"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Duration   time.Duration `json:"duration"`
	PointCount int           `json:"point_count"`
}

// Anomaly flags one segment whose speed exceeded the threshold.
type Anomaly struct {
	SegmentIndex int       `json:"segment_index"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	SpeedMS      float64   `json:"speed_ms"`
	ThresholdMS  float64   `json:"threshold_ms"`
}

// Report is the combined analysis result. Insufficient is set, and all
// pass results empty, when the track has fewer than two points; that is
// a distinguished no-op outcome, not an error.
type Report struct {
	UID          string      `json:"uid"`
	Points       int         `json:"points"`
	Insufficient bool        `json:"insufficient_data,omitempty"`
	Speed        *SpeedStats `json:"speed,omitempty"`
	Pattern      *Pattern    `json:"pattern,omitempty"`
	Stops        []Stop      `json:"stops,omitempty"`
	Anomalies    []Anomaly   `json:"anomalies,omitempty"`
}

// segment is one consecutive pair of track points.
type segment struct {
	from, to  model.PositionReport
	distanceM float64
	elapsed   time.Duration
	speedMS   float64 // 0 when elapsed == 0
	bearing   float64
}

// Analyze runs the selected passes over a chronologically sorted track
// history. The context cancels in-flight passes.
func Analyze(ctx context.Context, uid string, trackHistory []model.PositionReport, opts Options) (Report, error) {
	if opts.Anomaly && (opts.AnomalyFraction < 0 || opts.AnomalyFraction > 1) {
		return Report{}, model.Validationf("anomaly_fraction", "must be in [0, 1], got %v", opts.AnomalyFraction)
	}
	opts = opts.withDefaults()

	report := Report{UID: uid, Points: len(trackHistory)}
	if len(trackHistory) < 2 {
		report.Insufficient = true
		return report, nil
	}

	segs := buildSegments(trackHistory)

	g, ctx := errgroup.WithContext(ctx)
	if opts.Speed {
		g.Go(func() error {
			report.Speed = speedPass(segs)
			return ctx.Err()
		})
	}
	if opts.Pattern {
		g.Go(func() error {
			report.Pattern = patternPass(trackHistory, segs, opts.CircularTurnDeg)
			return ctx.Err()
		})
	}
	if opts.Stops {
		g.Go(func() error {
			report.Stops = stopsPass(trackHistory, opts.StopDistanceM, opts.StopMinDuration)
			return ctx.Err()
		})
	}
	if opts.Anomaly {
		g.Go(func() error {
			report.Anomalies = anomalyPass(segs, opts.AnomalyFraction)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return report, nil
}

func buildSegments(points []model.PositionReport) []segment {
	segs := make([]segment, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		from, to := points[i-1], points[i]
		s := segment{
			from:      from,
			to:        to,
			distanceM: geo.DistanceMeters(from.Position(), to.Position()),
			elapsed:   to.ObservedAt.Sub(from.ObservedAt),
			bearing:   geo.BearingDegrees(from.Position(), to.Position()),
		}
		if s.elapsed > 0 {
			s.speedMS = s.distanceM / s.elapsed.Seconds()
		}
		segs = append(segs, s)
	}
	return segs
}

func speedPass(segs []segment) *SpeedStats {
	stats := &SpeedStats{}
	speeds := make([]float64, 0, len(segs))
	for _, s := range segs {
		stats.TotalDistanceM += s.distanceM
		stats.Duration += s.elapsed
		if s.elapsed > 0 {
			speeds = append(speeds, s.speedMS)
		}
	}
	if len(speeds) > 0 {
		stats.AverageMS = stat.Mean(speeds, nil)
		stats.MinMS = floats.Min(speeds)
		stats.MaxMS = floats.Max(speeds)
	}
	return stats
}

func patternPass(points []model.PositionReport, segs []segment, circularTurnDeg float64) *Pattern {
	p := &Pattern{Kind: PatternLinear}

	coords := make([]model.LatLon, len(points))
	for i, pt := range points {
		coords[i] = pt.Position()
	}
	p.BBox = geo.BoundingBox(coords)

	for i, s := range segs {
		p.PathLengthM += s.distanceM
		if i > 0 {
			p.TotalTurnDeg += geo.HeadingDelta(segs[i-1].bearing, s.bearing)
		}
	}
	if abs(p.TotalTurnDeg) >= circularTurnDeg {
		p.Kind = PatternCircular
	}
	return p
}

func stopsPass(points []model.PositionReport, maxDistanceM float64, minDuration time.Duration) []Stop {
	stops := make([]Stop, 0)

	var cluster []model.PositionReport
	flush := func() {
		if len(cluster) < 2 {
			cluster = nil
			return
		}
		duration := cluster[len(cluster)-1].ObservedAt.Sub(cluster[0].ObservedAt)
		if duration < minDuration {
			cluster = nil
			return
		}
		coords := make([]model.LatLon, len(cluster))
		for i, pt := range cluster {
			coords[i] = pt.Position()
		}
		stops = append(stops, Stop{
			Center:     geo.Centroid(coords),
			Start:      cluster[0].ObservedAt,
			End:        cluster[len(cluster)-1].ObservedAt,
			Duration:   duration,
			PointCount: len(cluster),
		})
		cluster = nil
	}

	for _, pt := range points {
		if len(cluster) == 0 {
			cluster = append(cluster, pt)
			continue
		}
		prev := cluster[len(cluster)-1]
		if geo.DistanceMeters(prev.Position(), pt.Position()) <= maxDistanceM {
			cluster = append(cluster, pt)
		} else {
			flush()
			cluster = append(cluster, pt)
		}
	}
	flush()
	return stops
}

func anomalyPass(segs []segment, fraction float64) []Anomaly {
	speeds := make([]float64, 0, len(segs))
	for _, s := range segs {
		if s.elapsed > 0 {
			speeds = append(speeds, s.speedMS)
		}
	}
	if len(speeds) == 0 {
		return nil
	}
	threshold := stat.Mean(speeds, nil) * (1 + fraction)

	anomalies := make([]Anomaly, 0)
	for i, s := range segs {
		if s.elapsed > 0 && s.speedMS > threshold {
			anomalies = append(anomalies, Anomaly{
				SegmentIndex: i,
				Start:        s.from.ObservedAt,
				End:          s.to.ObservedAt,
				SpeedMS:      s.speedMS,
				ThresholdMS:  threshold,
			})
		}
	}
	return anomalies
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
