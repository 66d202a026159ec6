package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/ev-assistant/internal/bootstrap"
	"github.com/spherical-ai/ev-assistant/internal/config"
	"github.com/spherical-ai/ev-assistant/internal/insights"
	"github.com/spherical-ai/ev-assistant/internal/observability"
	"github.com/spherical-ai/ev-assistant/internal/session"
)

const csvFixture = `Brand,Model,Battery Capacity kWh,Range km,Price INR,Body Style,Charging Type
Tesla,Model3,60,400,3500000,Sedan,CCS
Tata,Nexon,30,250,1500000,SUV,CCS
`

func setupTestSession(t *testing.T) (*mcp.ClientSession, *bootstrap.App) {
	t.Helper()
	ctx := context.Background()

	csvPath := filepath.Join(t.TempDir(), "evs.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csvFixture), 0o600))

	cfg := config.DefaultConfig()
	cfg.Dataset.Path = csvPath
	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.yaml")

	app, err := bootstrap.Build(ctx, cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	srv := New(app, "test")

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err = srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	return cs, app
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, result.IsError
}

func TestListTools(t *testing.T) {
	cs, _ := setupTestSession(t)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ask_ev_assistant", "ev_dashboard", "ev_new_session", "ev_transcript"}, names)
}

func TestAsk(t *testing.T) {
	cs, _ := setupTestSession(t)

	text, isErr := callTool(t, cs, "ask_ev_assistant", map[string]any{"question": "EVs under 20 lakh"})
	assert.False(t, isErr)
	assert.Equal(t, "- Tata Nexon (250 km)", text)

	text, isErr = callTool(t, cs, "ask_ev_assistant", map[string]any{"question": "price for 40 kwh 300 km"})
	assert.False(t, isErr)
	assert.Equal(t, "Price prediction unavailable (model file missing).", text)

	text, isErr = callTool(t, cs, "ask_ev_assistant", map[string]any{"question": "   "})
	assert.True(t, isErr)
	assert.Contains(t, text, "Question is required")
}

func TestAsk_RecordsTranscript(t *testing.T) {
	cs, app := setupTestSession(t)

	text, isErr := callTool(t, cs, "ev_new_session", map[string]any{})
	require.False(t, isErr)

	var opened map[string]string
	require.NoError(t, json.Unmarshal([]byte(text), &opened))
	id := opened["session_id"]
	require.True(t, app.Sessions.Exists(id))

	_, isErr = callTool(t, cs, "ask_ev_assistant", map[string]any{"question": "recommend", "session_id": id})
	require.False(t, isErr)

	text, isErr = callTool(t, cs, "ev_transcript", map[string]any{"session_id": id})
	require.False(t, isErr)

	var entries []session.Entry
	require.NoError(t, json.Unmarshal([]byte(text), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, session.RoleUser, entries[0].Role)
	assert.Equal(t, "recommend", entries[0].Text)
	assert.Equal(t, "- Tesla Model3 – 400 km\n- Tata Nexon – 250 km", entries[1].Text)
}

func TestAsk_UnknownSession(t *testing.T) {
	cs, _ := setupTestSession(t)

	text, isErr := callTool(t, cs, "ask_ev_assistant", map[string]any{"question": "recommend", "session_id": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Unknown session")

	text, isErr = callTool(t, cs, "ev_transcript", map[string]any{"session_id": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Unknown session")
}

func TestDashboard(t *testing.T) {
	cs, _ := setupTestSession(t)

	text, isErr := callTool(t, cs, "ev_dashboard", map[string]any{})
	require.False(t, isErr)

	var s insights.Summary
	require.NoError(t, json.Unmarshal([]byte(text), &s))
	assert.Equal(t, 2, s.TotalModels)
	assert.InDelta(t, 45.0, s.AvgBatteryKWh, 1e-9)
	assert.InDelta(t, 325.0, s.AvgRangeKm, 1e-9)
	assert.False(t, s.ModelAvailable)
	assert.Empty(t, s.Points)
}
