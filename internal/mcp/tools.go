package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/bcperry/tak-server-mcp/internal/cot"
	"github.com/bcperry/tak-server-mcp/internal/geo"
	"github.com/bcperry/tak-server-mcp/internal/model"
	"github.com/bcperry/tak-server-mcp/internal/movement"
)

func (s *Server) registerTools() {
	// tak_get_entities: filtered snapshot of current entity state.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_get_entities",
			mcplib.WithDescription("List currently tracked entities. Filters are conjunctive; omit them all for the full picture."),
			mcplib.WithString("type_pattern", mcplib.Description("Comma-separated CoT type glob prefixes, e.g. \"a-f-*\" for all friendly")),
			mcplib.WithString("team", mcplib.Description("Comma-separated team names")),
			mcplib.WithString("role", mcplib.Description("Comma-separated roles")),
			mcplib.WithString("bbox", mcplib.Description("Bounding box \"minLat,minLon,maxLat,maxLon\"")),
			mcplib.WithNumber("max_age_seconds", mcplib.Description("Staleness cutoff in seconds since last observation. 0 disables the cutoff; omit for the server default.")),
		),
		s.handleGetEntities,
	)

	// tak_get_entity: one entity by uid.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_get_entity",
			mcplib.WithDescription("Get the current state of a single entity by its CoT uid"),
			mcplib.WithString("uid", mcplib.Description("Entity uid"), mcplib.Required()),
		),
		s.handleGetEntity,
	)

	// tak_radius_search: entities within a circle.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_radius_search",
			mcplib.WithDescription("Find entities within a radius of a point, nearest first. Each result carries distance, bearing, and geohash cell."),
			mcplib.WithNumber("lat", mcplib.Description("Center latitude"), mcplib.Required()),
			mcplib.WithNumber("lon", mcplib.Description("Center longitude"), mcplib.Required()),
			mcplib.WithNumber("radius_m", mcplib.Description("Radius in meters"), mcplib.Required()),
			mcplib.WithString("type_pattern", mcplib.Description("Comma-separated CoT type glob prefixes")),
			mcplib.WithString("team", mcplib.Description("Comma-separated team names")),
			mcplib.WithString("role", mcplib.Description("Comma-separated roles")),
			mcplib.WithNumber("max_age_seconds", mcplib.Description("Staleness cutoff in seconds, 0 to disable")),
		),
		s.handleRadiusSearch,
	)

	// tak_polygon_search: entities within an arbitrary polygon.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_polygon_search",
			mcplib.WithDescription("Find entities inside a polygon. Results carry distance and bearing from the polygon centroid."),
			mcplib.WithString("vertices", mcplib.Description("JSON array of [lat, lon] pairs, at least 3; an explicitly closed ring is accepted"), mcplib.Required()),
			mcplib.WithString("type_pattern", mcplib.Description("Comma-separated CoT type glob prefixes")),
			mcplib.WithString("team", mcplib.Description("Comma-separated team names")),
			mcplib.WithString("role", mcplib.Description("Comma-separated roles")),
			mcplib.WithNumber("max_age_seconds", mcplib.Description("Staleness cutoff in seconds, 0 to disable")),
		),
		s.handlePolygonSearch,
	)

	// tak_nearest: k nearest entities to a point.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_nearest",
			mcplib.WithDescription("Find the nearest entities to a point, nearest first with deterministic uid tie-break"),
			mcplib.WithNumber("lat", mcplib.Description("Reference latitude"), mcplib.Required()),
			mcplib.WithNumber("lon", mcplib.Description("Reference longitude"), mcplib.Required()),
			mcplib.WithNumber("max_results", mcplib.Description("Maximum results to return"), mcplib.DefaultNumber(5)),
			mcplib.WithNumber("max_distance_m", mcplib.Description("Optional search cap in meters, 0 for unbounded")),
			mcplib.WithString("type_pattern", mcplib.Description("Comma-separated CoT type glob prefixes")),
			mcplib.WithString("team", mcplib.Description("Comma-separated team names")),
			mcplib.WithString("role", mcplib.Description("Comma-separated roles")),
			mcplib.WithNumber("max_age_seconds", mcplib.Description("Staleness cutoff in seconds, 0 to disable")),
		),
		s.handleNearest,
	)

	// tak_distance: point-to-point or batch distance and bearing.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_distance",
			mcplib.WithDescription("Measure distance and bearing. Endpoints are entity uids or raw coordinates; pass to_uids for a batch measurement where items fail independently."),
			mcplib.WithString("from_uid", mcplib.Description("Origin entity uid (takes precedence over from_lat/from_lon)")),
			mcplib.WithNumber("from_lat", mcplib.Description("Origin latitude")),
			mcplib.WithNumber("from_lon", mcplib.Description("Origin longitude")),
			mcplib.WithString("to_uid", mcplib.Description("Destination entity uid")),
			mcplib.WithNumber("to_lat", mcplib.Description("Destination latitude")),
			mcplib.WithNumber("to_lon", mcplib.Description("Destination longitude")),
			mcplib.WithString("to_uids", mcplib.Description("Comma-separated destination uids for a batch measurement")),
			mcplib.WithString("unit", mcplib.Description("Result unit: m, km, mi, or nmi"), mcplib.DefaultString("m")),
		),
		s.handleDistance,
	)

	// tak_create_geofence: define a monitored region.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_create_geofence",
			mcplib.WithDescription("Create a geofence that raises alerts on entity entry, exit, or dwell. Returns the stored fence and its CoT drawing-shape event for display on TAK clients."),
			mcplib.WithString("name", mcplib.Description("Human-readable fence name"), mcplib.Required()),
			mcplib.WithString("shape", mcplib.Description("Fence shape: circle, polygon, or rectangle"), mcplib.Required()),
			mcplib.WithNumber("lat", mcplib.Description("Center latitude (circle and rectangle)")),
			mcplib.WithNumber("lon", mcplib.Description("Center longitude (circle and rectangle)")),
			mcplib.WithNumber("radius_m", mcplib.Description("Circle radius in meters")),
			mcplib.WithString("vertices", mcplib.Description("Polygon vertices as a JSON array of [lat, lon] pairs")),
			mcplib.WithNumber("width_m", mcplib.Description("Rectangle east-west extent in meters")),
			mcplib.WithNumber("height_m", mcplib.Description("Rectangle north-south extent in meters")),
			mcplib.WithString("type_pattern", mcplib.Description("Comma-separated CoT type glob prefixes to monitor; empty monitors everything")),
			mcplib.WithString("triggers", mcplib.Description("Comma-separated triggers from entry, exit, dwell"), mcplib.DefaultString("entry,exit")),
			mcplib.WithNumber("dwell_seconds", mcplib.Description("Dwell threshold in seconds when the dwell trigger is selected; omit for the server default")),
			mcplib.WithString("severity", mcplib.Description("Alert severity label, e.g. info, warning, critical")),
		),
		s.handleCreateGeofence,
	)

	// tak_list_geofences: all active fences.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_list_geofences",
			mcplib.WithDescription("List all active geofences"),
		),
		s.handleListGeofences,
	)

	// tak_delete_geofence: remove a fence and its transition state.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_delete_geofence",
			mcplib.WithDescription("Delete a geofence by id"),
			mcplib.WithString("id", mcplib.Description("Geofence id"), mcplib.Required()),
		),
		s.handleDeleteGeofence,
	)

	// tak_get_alerts: recent geofence alerts.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_get_alerts",
			mcplib.WithDescription("Get recent geofence alerts, newest first"),
			mcplib.WithNumber("limit", mcplib.Description("Maximum alerts to return"), mcplib.DefaultNumber(20)),
			mcplib.WithNumber("since_seconds", mcplib.Description("Only alerts raised within the last N seconds; 0 for all retained")),
		),
		s.handleGetAlerts,
	)

	// tak_analyze_movement: passes over an entity's track history.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_analyze_movement",
			mcplib.WithDescription("Analyze an entity's recent track: speed statistics, linear/circular pattern, stop detection, speed anomalies. Fewer than two points is reported as insufficient data, not an error."),
			mcplib.WithString("uid", mcplib.Description("Entity uid"), mcplib.Required()),
			mcplib.WithString("analyses", mcplib.Description("Comma-separated passes from speed, pattern, stops, anomaly, or all"), mcplib.DefaultString("speed")),
			mcplib.WithNumber("since_seconds", mcplib.Description("Track window in seconds"), mcplib.DefaultNumber(3600)),
			mcplib.WithNumber("stop_distance_m", mcplib.Description("Stop clustering radius in meters")),
			mcplib.WithNumber("stop_min_seconds", mcplib.Description("Minimum stationary duration in seconds to count as a stop")),
			mcplib.WithNumber("circular_turn_deg", mcplib.Description("Accumulated turn in degrees above which the track is circular")),
			mcplib.WithNumber("anomaly_fraction", mcplib.Description("Flag segments faster than average*(1+fraction); must be in [0,1]"), mcplib.DefaultNumber(0.5)),
		),
		s.handleAnalyzeMovement,
	)

	// tak_send_cot: outbound event to the TAK server.
	s.mcpServer.AddTool(
		mcplib.NewTool("tak_send_cot",
			mcplib.WithDescription("Send a CoT event to the TAK server. Pass event_xml for a raw event, or uid/type/lat/lon to have one built."),
			mcplib.WithString("event_xml", mcplib.Description("Complete CoT event XML; other parameters are ignored when set")),
			mcplib.WithString("uid", mcplib.Description("Event uid")),
			mcplib.WithString("type", mcplib.Description("CoT type code, e.g. a-f-G-U-C")),
			mcplib.WithNumber("lat", mcplib.Description("Latitude")),
			mcplib.WithNumber("lon", mcplib.Description("Longitude")),
			mcplib.WithString("callsign", mcplib.Description("Optional contact callsign")),
			mcplib.WithString("remarks", mcplib.Description("Optional free-text remarks")),
			mcplib.WithNumber("stale_seconds", mcplib.Description("Event validity in seconds"), mcplib.DefaultNumber(300)),
		),
		s.handleSendCoT,
	)
}

func (s *Server) handleGetEntities(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	f, err := s.filterFromRequest(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	reports := s.store.Query(f, time.Now())
	return jsonResult(map[string]any{
		"entities": reports,
		"total":    len(reports),
	}), nil
}

func (s *Server) handleGetEntity(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	uid := request.GetString("uid", "")
	if uid == "" {
		return errorResult("uid is required"), nil
	}

	report, err := s.store.Current(uid)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return errorResult(fmt.Sprintf("entity %q is not tracked", uid)), nil
		}
		return errorResult(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"entity": report,
		"stale":  report.Stale(time.Now()),
	}), nil
}

func (s *Server) handleRadiusSearch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	center := model.LatLon{
		Lat: request.GetFloat("lat", 0),
		Lon: request.GetFloat("lon", 0),
	}
	radiusM := request.GetFloat("radius_m", 0)

	f, err := s.filterFromRequest(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	results, err := s.engine.WithinRadius(center, radiusM, f, time.Now())
	if err != nil {
		return errorResult(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"results": results,
		"total":   len(results),
	}), nil
}

func (s *Server) handlePolygonSearch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ring, err := parseVertices(request.GetString("vertices", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}

	f, err := s.filterFromRequest(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	results, err := s.engine.WithinPolygon(ring, f, time.Now())
	if err != nil {
		return errorResult(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"results": results,
		"total":   len(results),
	}), nil
}

func (s *Server) handleNearest(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ref := model.LatLon{
		Lat: request.GetFloat("lat", 0),
		Lon: request.GetFloat("lon", 0),
	}
	maxResults := request.GetInt("max_results", 5)
	maxDistanceM := request.GetFloat("max_distance_m", 0)

	f, err := s.filterFromRequest(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	results, err := s.engine.Nearest(ref, maxResults, maxDistanceM, f, time.Now())
	if err != nil {
		return errorResult(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"results": results,
		"total":   len(results),
	}), nil
}

func (s *Server) handleDistance(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	unit := geo.Unit(request.GetString("unit", "m"))

	origin, err := s.resolveEndpoint(request, "from")
	if err != nil {
		return errorResult(err.Error()), nil
	}

	// Batch mode: one origin, many destination entities.
	if raw := request.GetString("to_uids", ""); raw != "" {
		items, err := s.engine.DistanceToMany(origin, splitList(raw), unit)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"items": items,
			"total": len(items),
		}), nil
	}

	dest, err := s.resolveEndpoint(request, "to")
	if err != nil {
		return errorResult(err.Error()), nil
	}

	d, err := s.engine.DistanceBetween(origin, dest, unit)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(d), nil
}

// resolveEndpoint reads either <prefix>_uid or the <prefix>_lat and
// <prefix>_lon pair.
func (s *Server) resolveEndpoint(request mcplib.CallToolRequest, prefix string) (model.LatLon, error) {
	if uid := request.GetString(prefix+"_uid", ""); uid != "" {
		p, err := s.engine.ResolvePosition(uid)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.LatLon{}, fmt.Errorf("entity %q is not tracked", uid)
			}
			return model.LatLon{}, err
		}
		return p, nil
	}

	if !hasArg(request, prefix+"_lat") || !hasArg(request, prefix+"_lon") {
		return model.LatLon{}, fmt.Errorf("pass %s_uid or both %s_lat and %s_lon", prefix, prefix, prefix)
	}
	return model.LatLon{
		Lat: request.GetFloat(prefix+"_lat", 0),
		Lon: request.GetFloat(prefix+"_lon", 0),
	}, nil
}

func (s *Server) handleCreateGeofence(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.GetString("name", "")
	if name == "" {
		return errorResult("name is required"), nil
	}

	shape := model.Shape{Kind: model.ShapeKind(request.GetString("shape", ""))}
	switch shape.Kind {
	case model.ShapeCircle:
		shape.Center = model.LatLon{Lat: request.GetFloat("lat", 0), Lon: request.GetFloat("lon", 0)}
		shape.RadiusM = request.GetFloat("radius_m", 0)
	case model.ShapePolygon:
		ring, err := parseVertices(request.GetString("vertices", ""))
		if err != nil {
			return errorResult(err.Error()), nil
		}
		shape.Vertices = ring
	case model.ShapeRectangle:
		shape.Center = model.LatLon{Lat: request.GetFloat("lat", 0), Lon: request.GetFloat("lon", 0)}
		shape.WidthM = request.GetFloat("width_m", 0)
		shape.HeightM = request.GetFloat("height_m", 0)
	default:
		return errorResult("shape must be circle, polygon, or rectangle"), nil
	}

	triggers := model.Triggers{}
	for _, t := range splitList(request.GetString("triggers", "entry,exit")) {
		switch t {
		case "entry":
			triggers.OnEntry = true
		case "exit":
			triggers.OnExit = true
		case "dwell":
			dwell := request.GetFloat("dwell_seconds", s.dwellDefault.Seconds())
			triggers.OnDwell = &model.DwellTrigger{
				Threshold: time.Duration(dwell * float64(time.Second)),
			}
		default:
			return errorResult(fmt.Sprintf("unknown trigger %q: use entry, exit, or dwell", t)), nil
		}
	}

	g := model.Geofence{
		Name:         name,
		Shape:        shape,
		TypePatterns: splitList(request.GetString("type_pattern", "")),
		Triggers:     triggers,
		Severity:     request.GetString("severity", ""),
	}

	created, ring, err := s.fences.Add(g)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	shapeEvent, err := cot.Encode(cot.GeofenceEvent(created, ring))
	if err != nil {
		return errorResult(fmt.Sprintf("encode shape event: %v", err)), nil
	}

	s.logger.Info("mcp: geofence created", "id", created.ID, "name", created.Name, "shape", created.Shape.Kind)

	return jsonResult(map[string]any{
		"geofence":  created,
		"cot_event": string(shapeEvent),
	}), nil
}

func (s *Server) handleListGeofences(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	fences := s.fences.List()
	return jsonResult(map[string]any{
		"geofences": fences,
		"total":     len(fences),
	}), nil
}

func (s *Server) handleDeleteGeofence(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, err := uuid.Parse(request.GetString("id", ""))
	if err != nil {
		return errorResult(fmt.Sprintf("invalid geofence id: %v", err)), nil
	}

	if err := s.fences.Remove(id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return errorResult(fmt.Sprintf("geofence %s does not exist", id)), nil
		}
		return errorResult(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"id":     id,
		"status": "deleted",
	}), nil
}

func (s *Server) handleGetAlerts(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	limit := request.GetInt("limit", 20)

	var since time.Time
	if sec := request.GetFloat("since_seconds", 0); sec > 0 {
		since = time.Now().Add(-time.Duration(sec * float64(time.Second)))
	}

	alerts := s.fences.RecentAlerts(limit, since)
	return jsonResult(map[string]any{
		"alerts": alerts,
		"total":  len(alerts),
	}), nil
}

func (s *Server) handleAnalyzeMovement(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	uid := request.GetString("uid", "")
	if uid == "" {
		return errorResult("uid is required"), nil
	}

	opts := movement.Options{}
	for _, a := range splitList(request.GetString("analyses", "speed")) {
		switch a {
		case "speed":
			opts.Speed = true
		case "pattern":
			opts.Pattern = true
		case "stops":
			opts.Stops = true
		case "anomaly":
			opts.Anomaly = true
		case "all":
			opts.Speed, opts.Pattern, opts.Stops, opts.Anomaly = true, true, true, true
		default:
			return errorResult(fmt.Sprintf("unknown analysis %q: use speed, pattern, stops, anomaly, or all", a)), nil
		}
	}
	opts.StopDistanceM = request.GetFloat("stop_distance_m", 0)
	opts.StopMinDuration = time.Duration(request.GetFloat("stop_min_seconds", 0) * float64(time.Second))
	opts.CircularTurnDeg = request.GetFloat("circular_turn_deg", 0)
	if opts.Anomaly {
		opts.AnomalyFraction = request.GetFloat("anomaly_fraction", 0.5)
	}

	now := time.Now()
	since := now.Add(-time.Duration(request.GetFloat("since_seconds", 3600) * float64(time.Second)))
	history, err := s.store.History(uid, since, now)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return errorResult(fmt.Sprintf("entity %q is not tracked", uid)), nil
		}
		return errorResult(err.Error()), nil
	}

	report, err := movement.Analyze(ctx, uid, history, opts)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(report), nil
}

func (s *Server) handleSendCoT(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ev, err := s.eventFromRequest(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	if err := s.sender.Send(ev); err != nil {
		return errorResult(fmt.Sprintf("send failed: %v", err)), nil
	}

	s.logger.Info("mcp: cot event sent", "uid", ev.UID, "type", ev.Type)

	return jsonResult(map[string]any{
		"uid":    ev.UID,
		"type":   ev.Type,
		"status": "sent",
	}), nil
}

func (s *Server) eventFromRequest(request mcplib.CallToolRequest) (*cot.Event, error) {
	if raw := request.GetString("event_xml", ""); raw != "" {
		ev, err := cot.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid event_xml: %w", err)
		}
		if ev.UID == "" || ev.Type == "" {
			return nil, errors.New("event_xml must carry uid and type attributes")
		}
		return ev, nil
	}

	uid := request.GetString("uid", "")
	typ := request.GetString("type", "")
	if uid == "" || typ == "" {
		return nil, errors.New("uid and type are required when event_xml is not given")
	}
	if !hasArg(request, "lat") || !hasArg(request, "lon") {
		return nil, errors.New("lat and lon are required when event_xml is not given")
	}
	p := model.LatLon{
		Lat: request.GetFloat("lat", 0),
		Lon: request.GetFloat("lon", 0),
	}
	if !p.Valid() {
		return nil, errors.New("lat/lon out of range")
	}

	now := time.Now().UTC()
	stale := time.Duration(request.GetFloat("stale_seconds", 300) * float64(time.Second))
	ev := &cot.Event{
		UID:   uid,
		Type:  typ,
		How:   "h-g-i-g-o",
		Time:  cot.At(now),
		Start: cot.At(now),
		Stale: cot.At(now.Add(stale)),
		Point: &cot.Point{
			Lat: p.Lat,
			Lon: p.Lon,
			HAE: cot.UnknownValue,
			CE:  cot.UnknownValue,
			LE:  cot.UnknownValue,
		},
	}
	callsign := request.GetString("callsign", "")
	remarks := request.GetString("remarks", "")
	if callsign != "" || remarks != "" {
		ev.Detail = &cot.Detail{Remarks: remarks}
		if callsign != "" {
			ev.Detail.Contact = &cot.Contact{Callsign: callsign}
		}
	}
	return ev, nil
}

// filterFromRequest builds the shared entity filter from the common
// tool parameters. Absent max_age_seconds means the server default;
// an explicit 0 disables the staleness cutoff.
func (s *Server) filterFromRequest(request mcplib.CallToolRequest) (model.EntityFilter, error) {
	f := model.EntityFilter{MaxAge: s.defaultMaxAge}

	if p := request.GetString("type_pattern", ""); p != "" {
		f.TypePatterns = splitList(p)
	}
	if teams := request.GetString("team", ""); teams != "" {
		f.Teams = splitList(teams)
	}
	if roles := request.GetString("role", ""); roles != "" {
		f.Roles = splitList(roles)
	}
	if raw := request.GetString("bbox", ""); raw != "" {
		box, err := parseBBox(raw)
		if err != nil {
			return f, err
		}
		f.BBox = &box
	}
	if hasArg(request, "max_age_seconds") {
		sec := request.GetFloat("max_age_seconds", 0)
		if sec < 0 {
			return f, errors.New("max_age_seconds must be >= 0")
		}
		f.MaxAge = time.Duration(sec * float64(time.Second))
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBBox(s string) (model.BBox, error) {
	parts := splitList(s)
	if len(parts) != 4 {
		return model.BBox{}, errors.New("bbox must be \"minLat,minLon,maxLat,maxLon\"")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return model.BBox{}, fmt.Errorf("bbox: bad coordinate %q", p)
		}
		vals[i] = v
	}
	return model.BBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}, nil
}

func parseVertices(s string) ([]model.LatLon, error) {
	if s == "" {
		return nil, errors.New("vertices is required")
	}
	var pairs [][]float64
	if err := json.Unmarshal([]byte(s), &pairs); err != nil {
		return nil, fmt.Errorf("vertices must be a JSON array of [lat, lon] pairs: %v", err)
	}
	ring := make([]model.LatLon, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("vertices[%d]: expected [lat, lon]", i)
		}
		ring = append(ring, model.LatLon{Lat: pair[0], Lon: pair[1]})
	}
	return ring, nil
}
