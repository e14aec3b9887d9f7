package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/shambu-network/shambu/pkg/views"
)

type healthResult struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	ViewState string `json:"view_state,omitempty"`
	Profiles  int    `json:"cached_profiles"`
}

// RegisterHealthTool adds a health check tool to the MCP server. view may be nil.
func RegisterHealthTool(s *server.MCPServer, version string, view *views.ProfileListView) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{Status: "ok", Version: version}
		if view != nil {
			res.ViewState = view.State().String()
			res.Profiles = len(view.Profiles())
		}
		out, err := jsonResult(res)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return out, nil
	})
}
