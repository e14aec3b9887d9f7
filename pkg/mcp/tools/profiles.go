package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/mapper"
	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/repositories"
	"github.com/shambu-network/shambu/pkg/views"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// ProfileToolDeps contains dependencies for the profile tools.
type ProfileToolDeps struct {
	View        *views.ProfileListView
	Profiles    repositories.ProfileRepository
	Connections repositories.ConnectionRepository
	Logger      *zap.Logger
}

// profileSummary is the compact profile shape returned by search_profiles.
type profileSummary struct {
	ID          string  `json:"id"`
	FullName    string  `json:"full_name"`
	Email       *string `json:"email,omitempty"`
	Title       string  `json:"title,omitempty"`
	Company     string  `json:"company,omitempty"`
	Connections int     `json:"connections"`
}

type connectionSummary struct {
	ID              string                `json:"id"`
	TargetID        string                `json:"target_id"`
	TargetName      string                `json:"target_name,omitempty"`
	Type            models.ConnectionType `json:"type"`
	StrengthPercent int                   `json:"strength_percent"`
}

// RegisterProfileTools registers search_profiles, get_profile and list_connections.
func RegisterProfileTools(s *server.MCPServer, deps *ProfileToolDeps) {
	registerSearchProfilesTool(s, deps)
	registerGetProfileTool(s, deps)
	registerListConnectionsTool(s, deps)
}

func readOnly() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
}

// loaded fetches when the view has never been loaded and retries after a
// failed fetch. A failure with a previous collection still serves the stale one.
func loaded(ctx context.Context, view *views.ProfileListView) error {
	var err error
	switch view.State() {
	case views.StateIdle:
		err = view.Fetch(ctx)
	case views.StateError:
		err = view.Retry(ctx)
	}
	if err != nil && len(view.Profiles()) == 0 {
		return err
	}
	return nil
}

func registerSearchProfilesTool(s *server.MCPServer, deps *ProfileToolDeps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Searches the profile network by name, email, title or company (case-insensitive substring). " +
				"An empty query lists every profile ordered by name. " +
				"Example: search_profiles(query='turing') returns matching profiles with their connection counts.",
		),
		mcp.WithString(
			"query",
			mcp.Description("Text to match; empty lists everything"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum number of results to return (default 20, max 100)"),
		),
	}, readOnly()...)
	tool := mcp.NewTool("search_profiles", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := loaded(ctx, deps.View); err != nil {
			return nil, err
		}

		args := req.GetArguments()
		limit := defaultSearchLimit
		if l, ok := args["limit"].(float64); ok && l > 0 {
			limit = min(int(l), maxSearchLimit)
		}
		query, _ := args["query"].(string)

		matches := deps.View.Search(query)
		out := make([]profileSummary, 0, min(len(matches), limit))
		for _, p := range matches {
			if len(out) == limit {
				break
			}
			out = append(out, profileSummary{
				ID:          p.ID,
				FullName:    p.FullName,
				Email:       p.Email,
				Title:       p.Title(),
				Company:     p.Company(),
				Connections: len(p.Connections),
			})
		}

		return jsonResult(map[string]any{
			"total":    len(matches),
			"profiles": out,
		})
	})
}

func registerGetProfileTool(s *server.MCPServer, deps *ProfileToolDeps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Returns one profile with its social profiles and outgoing connections."),
		mcp.WithString(
			"id",
			mcp.Required(),
			mcp.Description("Profile id"),
		),
	}, readOnly()...)
	tool := mcp.NewTool("get_profile", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		id = strings.TrimSpace(id)

		row, err := deps.Profiles.GetByID(ctx, id)
		if err != nil {
			if result := asErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		profile, err := mapper.Profile(row)
		if err != nil {
			return nil, err
		}
		return jsonResult(profile)
	})
}

func registerListConnectionsTool(s *server.MCPServer, deps *ProfileToolDeps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Lists a profile's outgoing connections with type and strength as a percentage. " +
				"Target names are resolved from the cached profile list.",
		),
		mcp.WithString(
			"profile_id",
			mcp.Required(),
			mcp.Description("Source profile id"),
		),
	}, readOnly()...)
	tool := mcp.NewTool("list_connections", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		profileID, err := req.RequireString("profile_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		v := views.NewConnectionsView(strings.TrimSpace(profileID), deps.Connections, deps.Profiles, deps.Logger)
		defer v.Close()
		if err := v.Fetch(ctx); err != nil {
			return nil, err
		}

		names := make(map[string]string)
		if err := loaded(ctx, deps.View); err == nil {
			for _, p := range deps.View.Profiles() {
				names[p.ID] = p.FullName
			}
		}

		conns := v.Connections()
		out := make([]connectionSummary, 0, len(conns))
		for _, c := range conns {
			out = append(out, connectionSummary{
				ID:              c.ID,
				TargetID:        c.TargetID,
				TargetName:      names[c.TargetID],
				Type:            c.Type,
				StrengthPercent: c.StrengthPercent(),
			})
		}
		return jsonResult(map[string]any{
			"profile_id":  v.ProfileID(),
			"connections": out,
		})
	})
}
