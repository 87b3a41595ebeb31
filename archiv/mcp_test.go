package archiv

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func connectMCP(t *testing.T, svc *Service) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	st, ct := mcp.NewInMemoryTransports()
	if _, err := svc.MCPServer().Connect(ctx, st, nil); err != nil {
		t.Fatal(err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func TestMCP_Tools(t *testing.T) {
	// WHAT: the MCP tools answer from the same index as the HTTP API.
	svc := acquiredService(t)
	cs := connectMCP(t, svc)

	res := callTool(t, cs, "archiv_stats", map[string]any{})
	if res.IsError {
		t.Fatalf("stats error: %+v", res.Content)
	}
	var stats StatsView
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Sessions != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	res = callTool(t, cs, "archiv_list_sessions", map[string]any{"committee": "Ausschuss für Finanzen und Beteiligungen"})
	var sessions []map[string]any
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0]["session_id"] != "6790" {
		t.Fatalf("sessions = %v", sessions)
	}

	res = callTool(t, cs, "archiv_get_session", map[string]any{"session_id": "6790"})
	if res.IsError {
		t.Fatalf("get_session error: %+v", res.Content)
	}

	res = callTool(t, cs, "archiv_list_documents", map[string]any{"session_ids": []string{"6773"}, "limit": 2})
	var docs []map[string]any
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &docs); err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}

	res = callTool(t, cs, "archiv_export", map[string]any{"date_from": "2025-10-31", "date_to": "2025-10-01"})
	if !res.IsError {
		t.Fatal("expected tool error for inverted date range")
	}
}
