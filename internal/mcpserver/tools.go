package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/spherical-ai/ev-assistant/internal/assistant"
	"github.com/spherical-ai/ev-assistant/internal/insights"
	"github.com/spherical-ai/ev-assistant/internal/observability"
	"github.com/spherical-ai/ev-assistant/internal/session"
)

// Tools holds references needed by the tool handlers.
type Tools struct {
	Engine   *assistant.Engine
	Sessions *session.Store
	Summary  func(includePoints bool) insights.Summary
	Logger   *observability.Logger
}

// --- Input types ---

type AskInput struct {
	Question  string `json:"question" jsonschema:"The question, e.g. 'EVs under 20 lakh' or 'tell me about Tata Nexon'"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Optional session from ev_new_session; the exchange is added to its transcript"`
}

type DashboardInput struct {
	IncludePoints bool `json:"include_points,omitempty" jsonschema:"Include the battery vs range scatter points"`
}

type TranscriptInput struct {
	SessionID string `json:"session_id" jsonschema:"Session to read"`
}

// --- Handlers ---

func (t *Tools) Ask(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, any, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return toolError("Question is required"), nil, nil
	}
	if input.SessionID != "" && !t.Sessions.Exists(input.SessionID) {
		return toolError("Unknown session: %s", input.SessionID), nil, nil
	}

	reply := t.Engine.Answer(ctx, question)
	t.Logger.WithOperation("ask_ev_assistant").Info().
		Str("intent", string(reply.Intent)).
		Bool("cached", reply.Cached).
		Msg("Tool answered")

	if input.SessionID != "" {
		if err := t.Sessions.Exchange(input.SessionID, question, reply.Text); err != nil {
			return toolError("Failed to record transcript: %v", err), nil, nil
		}
	}

	return toolText(reply.Text), nil, nil
}

func (t *Tools) Dashboard(_ context.Context, _ *mcp.CallToolRequest, input DashboardInput) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Summary(input.IncludePoints))
}

func (t *Tools) NewSession(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(map[string]string{"session_id": t.Sessions.Create()})
}

func (t *Tools) Transcript(_ context.Context, _ *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, any, error) {
	if input.SessionID == "" {
		return toolError("session_id is required"), nil, nil
	}
	entries, err := t.Sessions.Transcript(input.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return toolError("Unknown session: %s", input.SessionID), nil, nil
	}
	if err != nil {
		return toolError("Failed to read transcript: %v", err), nil, nil
	}
	return toolJSON(entries)
}

// --- Helpers ---

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return toolText(string(data)), nil, nil
}
