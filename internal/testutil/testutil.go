// Package testutil provides shared helpers for package tests: a quiet
// logger and builders for position reports.
package testutil

import (
	"log/slog"
	"os"
	"time"

	"github.com/bcperry/tak-server-mcp/internal/model"
)

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// Report builds a minimal friendly-ground position report valid for
// five minutes from observation.
func Report(uid string, observed time.Time, lat, lon float64) model.PositionReport {
	return model.PositionReport{
		UID:        uid,
		Type:       "a-f-G-U-C",
		ObservedAt: observed,
		ValidUntil: observed.Add(5 * time.Minute),
		Lat:        lat,
		Lon:        lon,
	}
}

// ReportTyped is Report with an explicit CoT type code.
func ReportTyped(uid, cotType string, observed time.Time, lat, lon float64) model.PositionReport {
	r := Report(uid, observed, lat, lon)
	r.Type = cotType
	return r
}
