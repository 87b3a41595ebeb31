package archiv

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ratsarchiv/archiv/internal/export"
	"github.com/hazyhaar/ratsarchiv/archiv/internal/index"
	"github.com/hazyhaar/ratsarchiv/kit"
)

// RegisterMCP registers all archive tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerListSessions(srv)
	s.registerGetSession(srv)
	s.registerListDocuments(srv)
	s.registerStats(srv)
	s.registerExport(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func filterProperties() map[string]any {
	return map[string]any{
		"session_ids":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Session IDs"},
		"committees":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Committee names, exact match"},
		"date_from":          map[string]any{"type": "string", "description": "First session date, YYYY-MM-DD"},
		"date_to":            map[string]any{"type": "string", "description": "Last session date, YYYY-MM-DD"},
		"document_types":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "vorlage, beschlussvorlage, protokoll, bekanntmachung, sonstiges"},
		"require_local_path": map[string]any{"type": "boolean", "description": "Only documents stored on disk"},
	}
}

// unmarshalArgs decodes tool arguments; absent arguments leave v zero.
func unmarshalArgs(r *mcp.CallToolRequest, v any) error {
	if len(r.Params.Arguments) == 0 || string(r.Params.Arguments) == "null" {
		return nil
	}
	return json.Unmarshal(r.Params.Arguments, v)
}

// toolEndpoint wraps an endpoint with the logging middleware.
func (s *Service) toolEndpoint(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.logger, name))(ep)
}

func (s *Service) registerListSessions(srv *mcp.Server) {
	type req struct {
		Year      int    `json:"year"`
		Month     int    `json:"month"`
		Committee string `json:"committee"`
		DateFrom  string `json:"date_from"`
		DateTo    string `json:"date_to"`
		Status    string `json:"status"`
		Limit     int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "archiv_list_sessions",
		Description: "List indexed council sessions, ordered by date",
		InputSchema: inputSchema(map[string]any{
			"year":      map[string]any{"type": "integer", "description": "Session year"},
			"month":     map[string]any{"type": "integer", "description": "Session month (1-12)"},
			"committee": map[string]any{"type": "string", "description": "Committee name, exact match"},
			"date_from": map[string]any{"type": "string", "description": "First date, YYYY-MM-DD"},
			"date_to":   map[string]any{"type": "string", "description": "Last date, YYYY-MM-DD"},
			"status":    map[string]any{"type": "string", "description": "complete or partial"},
			"limit":     map[string]any{"type": "integer", "description": "Max results (default 500)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Sessions(ctx, index.SessionFilter{
			Year:      p.Year,
			Month:     p.Month,
			Committee: p.Committee,
			DateFrom:  p.DateFrom,
			DateTo:    p.DateTo,
			Status:    p.Status,
			Limit:     p.Limit,
		})
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := unmarshalArgs(r, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.toolEndpoint(tool.Name, endpoint), decode)
}

func (s *Service) registerGetSession(srv *mcp.Server) {
	type req struct {
		SessionID string `json:"session_id"`
	}

	tool := &mcp.Tool{
		Name:        "archiv_get_session",
		Description: "Get one session with its agenda items and inferred decisions",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.Session(ctx, r.(*req).SessionID)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := unmarshalArgs(r, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.toolEndpoint(tool.Name, endpoint), decode)
}

func (s *Service) registerListDocuments(srv *mcp.Server) {
	type req struct {
		export.Filter
		Limit int `json:"limit"`
	}

	props := filterProperties()
	props["limit"] = map[string]any{"type": "integer", "description": "Max results (default 500)"}
	tool := &mcp.Tool{
		Name:        "archiv_list_documents",
		Description: "List indexed documents with provenance, in export order",
		InputSchema: inputSchema(props, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Documents(ctx, p.Filter, p.Limit)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := unmarshalArgs(r, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.toolEndpoint(tool.Name, endpoint), decode)
}

func (s *Service) registerStats(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "archiv_stats",
		Description: "Index counters and document type distribution",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Stats(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.toolEndpoint(tool.Name, endpoint), decode)
}

func (s *Service) registerExport(srv *mcp.Server) {
	props := filterProperties()
	props["include_text_extraction"] = map[string]any{"type": "boolean", "description": "Run content extraction on each document"}
	props["max_text_chars"] = map[string]any{"type": "integer", "description": "Inline at most this many chars of text (0 omits text)"}
	tool := &mcp.Tool{
		Name:        "archiv_export",
		Description: "Build an export batch of documents matching the filter",
		InputSchema: inputSchema(props, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return s.Export(ctx, *r.(*export.Filter))
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p export.Filter
		if err := unmarshalArgs(r, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.toolEndpoint(tool.Name, endpoint), decode)
}
