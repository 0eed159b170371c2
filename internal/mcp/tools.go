package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gomcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/blackwell-systems/homepilot/internal/planner"
	"github.com/blackwell-systems/homepilot/internal/rtls"
)

// CurrentStateResult is returned by current_state.
type CurrentStateResult struct {
	Room                   string  `json:"room"`
	Confidence             float64 `json:"confidence"`
	State                  string  `json:"state"`
	PollingIntervalSeconds int     `json:"polling_interval_seconds"`
	UpdatedAt              string  `json:"updated_at,omitempty"`
}

// LocationHistoryResult is returned by location_history.
type LocationHistoryResult struct {
	History    []string `json:"history"`
	Latest     string   `json:"latest"`
	Confidence float64  `json:"confidence"`
}

// NoArgs is the input schema of argument-free tools.
type NoArgs struct{}

// GenerateAgendaArgs are the optional overrides for generate_agenda.
type GenerateAgendaArgs struct {
	Readiness *int   `json:"readiness,omitempty" jsonschema:"description=Override the readiness score (0-100) used for the energy budget"`
	At        string `json:"at,omitempty" jsonschema:"description=Plan as of this RFC 3339 time instead of now"`
}

func addTools(s *Server) {
	s.registerTool(toolDef{
		Tool: gomcp.NewTool("current_state",
			gomcp.WithDescription("Current room estimate, location confidence, user state and polling interval."),
			gomcp.WithInputSchema[NoArgs](),
		),
		Handler: s.handleCurrentState,
	})
	s.registerTool(toolDef{
		Tool: gomcp.NewTool("generate_agenda",
			gomcp.WithDescription("Build today's energy-budgeted agenda from the latest biometrics, occupancy, weather and backlog."),
			gomcp.WithInputSchema[GenerateAgendaArgs](),
		),
		Handler: s.handleGenerateAgenda,
	})
	s.registerTool(toolDef{
		Tool: gomcp.NewTool("location_history",
			gomcp.WithDescription("Recent room determinations, oldest first."),
			gomcp.WithInputSchema[NoArgs](),
		),
		Handler: s.handleLocationHistory,
	})
}

func jsonResult(v any) (*gomcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return gomcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return gomcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleCurrentState(_ context.Context, _ gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	st := s.engine.Status()
	res := CurrentStateResult{
		Room:                   st.Location.Room,
		Confidence:             st.Location.Confidence,
		State:                  string(st.State),
		PollingIntervalSeconds: int(st.PollingInterval / time.Second),
	}
	if !st.UpdatedAt.IsZero() {
		res.UpdatedAt = st.UpdatedAt.Format(time.RFC3339)
	}
	return jsonResult(res)
}

func (s *Server) handleLocationHistory(_ context.Context, _ gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	st := s.engine.Status()
	history := st.History
	if history == nil {
		history = []string{}
	}
	latest := rtls.UnknownRoom
	if len(history) > 0 {
		latest = history[len(history)-1]
	}
	return jsonResult(LocationHistoryResult{
		History:    history,
		Latest:     latest,
		Confidence: st.Location.Confidence,
	})
}

func (s *Server) handleGenerateAgenda(ctx context.Context, request gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args GenerateAgendaArgs
	if err := request.BindArguments(&args); err != nil {
		return gomcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	now := s.now()
	if args.At != "" {
		t, err := time.Parse(time.RFC3339, args.At)
		if err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("invalid at %q: %v", args.At, err)), nil
		}
		now = t
	}

	snap, err := s.gatherer.Gather(ctx)
	if err != nil {
		return gomcp.NewToolResultError(fmt.Sprintf("gathering context: %v", err)), nil
	}
	if snap.Biometrics == nil {
		return gomcp.NewToolResultError("no biometric sample available; ingest one first"), nil
	}

	bio := *snap.Biometrics
	if args.Readiness != nil {
		bio.ReadinessScore = *args.Readiness
	}
	agenda := s.planner.GenerateAgenda(ctx, planner.PlanInput{
		Biometrics: bio,
		Now:        now,
		Occupancy:  snap.Occupancy,
		Weather:    snap.Weather,
	})
	return jsonResult(agenda)
}
