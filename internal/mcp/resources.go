package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/bcperry/tak-server-mcp/internal/model"
)

func (s *Server) registerResources() {
	// tak://entities/current: snapshot of fresh entity state.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"tak://entities/current",
			"Current Entities",
			mcplib.WithResourceDescription("All currently tracked, non-stale entities"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleEntitiesCurrent,
	)

	// tak://alerts/recent: recent geofence alerts.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"tak://alerts/recent",
			"Recent Alerts",
			mcplib.WithResourceDescription("Recent geofence alerts, newest first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAlertsRecent,
	)

	// tak://entity/{uid}/track: one entity's position history.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"tak://entity/{uid}/track",
			"Entity Track",
			mcplib.WithTemplateDescription("Chronological position history for a specific entity"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleEntityTrack,
	)
}

func (s *Server) handleEntitiesCurrent(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	reports := s.store.Query(model.EntityFilter{MaxAge: s.defaultMaxAge}, time.Now())

	data, err := json.MarshalIndent(map[string]any{
		"entities": reports,
		"total":    len(reports),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal entities: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "tak://entities/current",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleAlertsRecent(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	alerts := s.fences.RecentAlerts(50, time.Time{})

	data, err := json.MarshalIndent(map[string]any{
		"alerts": alerts,
		"total":  len(alerts),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal alerts: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "tak://alerts/recent",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleEntityTrack(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	uid := strings.TrimSuffix(strings.TrimPrefix(uri, "tak://entity/"), "/track")
	if uid == "" || uid == uri {
		return nil, fmt.Errorf("mcp: invalid entity track URI: %s", uri)
	}

	now := time.Now()
	history, err := s.store.History(uid, time.Time{}, now)
	if err != nil {
		return nil, fmt.Errorf("mcp: entity track: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{
		"uid":    uid,
		"points": len(history),
		"track":  history,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal track: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
