package perfaudit

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/perfaudit/kit"
)

// RegisterMCP registers the perfaudit tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerRunTool(srv)
	s.registerHistoryTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// --- run ---

func (s *Service) registerRunTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "perfaudit_run",
		Description: "Audit a web page with Lighthouse in a fresh headless Chrome: dismisses the cookie banner, " +
			"returns the performance score (0-100) with FCP, LCP, TBT (ms) and CLS.",
		InputSchema: inputSchema(map[string]any{
			"url":         map[string]any{"type": "string", "description": "Page to audit (http or https)"},
			"port":        map[string]any{"type": "integer", "description": "Chrome remote-debugging port"},
			"categories":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"skip_audits": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"thresholds": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "number"},
				"description":          "Minimum category scores, 0-100",
			},
			"policy": map[string]any{"type": "string", "enum": []string{"tolerant", "strict"}},
		}, []string{"url"}),
	}

	endpoint := kit.Chain(kit.Logging(s.logger, "perfaudit_run"))(func(ctx context.Context, req any) (any, error) {
		return s.Audit(ctx, *req.(*AuditInput))
	})
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[AuditInput])
}

// --- history ---

func (s *Service) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "perfaudit_history",
		Description: "List past audit runs, newest first, optionally for a single URL.",
		InputSchema: inputSchema(map[string]any{
			"url":   map[string]any{"type": "string", "description": "Only runs for this URL"},
			"limit": map[string]any{"type": "integer", "description": "Maximum runs (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		runs, err := s.History(ctx, *req.(*HistoryInput))
		if err != nil {
			return nil, err
		}
		return map[string]any{"runs": runs}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[HistoryInput])
}
