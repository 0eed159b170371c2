// Package mcp exposes the live engine and planner over the Model Context
// Protocol on stdio.
package mcp

import (
	"context"
	"io"
	"time"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/blackwell-systems/homepilot/internal/loop"
	"github.com/blackwell-systems/homepilot/internal/planner"
	"github.com/blackwell-systems/homepilot/internal/rtls"
)

// Server is an MCP stdio server backed by a running engine.
type Server struct {
	engine   *rtls.Engine
	gatherer loop.Gatherer
	planner  *planner.Planner
	mcp      *server.MCPServer
	tools    []toolDef
	now      func() time.Time
}

// toolDef pairs a tool declaration with its handler.
type toolDef struct {
	Tool    gomcp.Tool
	Handler server.ToolHandlerFunc
}

// NewServer constructs a Server. The engine is read-only from here; the
// control loop remains its only writer.
func NewServer(engine *rtls.Engine, g loop.Gatherer, p *planner.Planner, version string) *Server {
	s := &Server{
		engine:   engine,
		gatherer: g,
		planner:  p,
		mcp:      server.NewMCPServer("homepilot", version, server.WithToolCapabilities(true)),
		now:      time.Now,
	}
	addTools(s)
	return s
}

// registerTool records def and adds it to the MCP server.
func (s *Server) registerTool(def toolDef) {
	s.tools = append(s.tools, def)
	s.mcp.AddTool(def.Tool, def.Handler)
}

// ToolNames returns the registered tool names in registration order.
func (s *Server) ToolNames() []string {
	names := make([]string, len(s.tools))
	for i, t := range s.tools {
		names[i] = t.Tool.Name
	}
	return names
}

// Run serves MCP over r and w until ctx is cancelled or r reaches EOF.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, r, w)
}
