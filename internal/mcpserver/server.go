// Package mcpserver exposes the EV assistant as MCP tools.
package mcpserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/spherical-ai/ev-assistant/internal/bootstrap"
)

// New creates an MCP server with all assistant tools registered.
func New(app *bootstrap.App, version string) *mcp.Server {
	t := &Tools{
		Engine:   app.Engine,
		Sessions: app.Sessions,
		Summary:  app.Summary,
		Logger:   app.Logger.WithComponent("mcp"),
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "ev-assistant",
		Version: version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "ask_ev_assistant",
		Description: "Ask a question about electric vehicles: price estimates, budget matches, range recommendations or model details",
	}, t.Ask)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "ev_dashboard",
		Description: "Dataset summary: average battery, average range, model count, top brands and battery distribution",
	}, t.Dashboard)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "ev_new_session",
		Description: "Open a chat session whose transcript is kept across ask_ev_assistant calls",
	}, t.NewSession)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "ev_transcript",
		Description: "Return the transcript of a chat session",
	}, t.Transcript)

	return srv
}
