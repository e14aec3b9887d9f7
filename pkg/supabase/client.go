// Package supabase implements the repository interfaces against a hosted
// Supabase project through its PostgREST API.
package supabase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/logging"
)

const (
	tableProfiles       = "profiles"
	tableSocialProfiles = "social_profiles"
	tableConnections    = "connections"

	// profileSelect embeds the nested collections; the connections hint picks
	// outgoing edges since connections references profiles twice.
	profileSelect = "*,social_profiles(*),connections!connections_source_id_fkey(*)"

	returnRepresentation = "representation"
	countNone            = ""
)

// Client is an explicitly constructed Supabase client shared by the
// repositories of one process.
type Client struct {
	api    *supa.Client
	logger *zap.Logger
}

// NewClient creates a client for the project at url authenticated with key.
func NewClient(url, key string, logger *zap.Logger) (*Client, error) {
	api, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client for %s: %w",
			logging.SanitizeConnectionString(url), err)
	}
	return &Client{api: api, logger: logger.Named("supabase")}, nil
}

func (c *Client) from(table string) *postgrest.QueryBuilder {
	return c.api.From(table)
}

var ascending = &postgrest.OrderOpts{Ascending: true}

// translateError maps PostgREST error bodies to apperrors sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "PGRST116"), strings.Contains(msg, "22P02"):
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, logging.SanitizeError(err))
	case strings.Contains(msg, "23503"):
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, logging.SanitizeError(err))
	case strings.Contains(msg, "connections_no_self_loop"):
		return fmt.Errorf("%w: %w", apperrors.ErrSelfConnection, err)
	case strings.Contains(msg, "connections_strength_check"):
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidStrength, err)
	case strings.Contains(msg, "connections_type_check"):
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidConnectionType, err)
	case strings.Contains(msg, "23514"):
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidProfile, err)
	}
	return err
}

// errEmptyResult is returned when a write echoes no row.
var errEmptyResult = errors.New("no row returned")

// single returns the only element of rows or ErrNotFound.
func single[T any](rows []T) (T, error) {
	var zero T
	if len(rows) == 0 {
		return zero, fmt.Errorf("%w: %w", apperrors.ErrNotFound, errEmptyResult)
	}
	return rows[0], nil
}
