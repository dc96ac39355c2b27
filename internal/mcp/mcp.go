// Package mcp implements the Model Context Protocol server for the TAK
// bridge.
//
// The MCP server exposes entity state, spatial queries, geofencing, and
// movement analysis as MCP tools and resources, allowing MCP-compatible
// AI agents to work against a live Cursor-on-Target feed.
package mcp

import (
	"encoding/json"
	"log/slog"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bcperry/tak-server-mcp/internal/cot"
	"github.com/bcperry/tak-server-mcp/internal/geofence"
	"github.com/bcperry/tak-server-mcp/internal/spatial"
	"github.com/bcperry/tak-server-mcp/internal/track"
)

// Sender delivers an outbound CoT event to the TAK server.
type Sender interface {
	Send(ev *cot.Event) error
}

// Server wraps the MCP server with the bridge's engines.
type Server struct {
	mcpServer *mcpserver.MCPServer
	store     *track.Store
	engine    *spatial.Engine
	fences    *geofence.Evaluator
	sender    Sender
	logger    *slog.Logger

	// defaultMaxAge is the staleness cutoff applied to entity queries
	// when the caller does not pass one. dwellDefault is the dwell
	// threshold for fences created without one.
	defaultMaxAge time.Duration
	dwellDefault  time.Duration
}

// New creates and configures a new MCP server with all resources and tools.
func New(store *track.Store, engine *spatial.Engine, fences *geofence.Evaluator, sender Sender, defaultMaxAge, dwellDefault time.Duration, logger *slog.Logger) *Server {
	s := &Server{
		store:         store,
		engine:        engine,
		fences:        fences,
		sender:        sender,
		defaultMaxAge: defaultMaxAge,
		dwellDefault:  dwellDefault,
		logger:        logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"tak-server-mcp",
		"0.1.0",
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}

func hasArg(request mcplib.CallToolRequest, key string) bool {
	_, ok := request.GetArguments()[key]
	return ok
}
