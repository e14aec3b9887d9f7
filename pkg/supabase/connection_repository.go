package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shambu-network/shambu/pkg/logging"
	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/repositories"
)

type connectionRepository struct {
	c *Client
}

// NewConnectionRepository creates a Supabase-backed connection repository.
func NewConnectionRepository(c *Client) repositories.ConnectionRepository {
	return &connectionRepository{c: c}
}

func (r *connectionRepository) ListBySource(ctx context.Context, sourceID string) ([]models.ConnectionRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []models.ConnectionRow
	_, err := r.c.from(tableConnections).
		Select("*", countNone, false).
		Eq("source_id", sourceID).
		Order("created_at", ascending).
		Order("id", ascending).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", translateError(err))
	}
	if rows == nil {
		rows = []models.ConnectionRow{}
	}
	return rows, nil
}

func (r *connectionRepository) Create(ctx context.Context, in models.ConnectionInsert) (models.ConnectionRow, error) {
	if err := ctx.Err(); err != nil {
		return models.ConnectionRow{}, err
	}
	var rows []models.ConnectionRow
	_, err := r.c.from(tableConnections).
		Insert(in, false, "", returnRepresentation, countNone).
		ExecuteTo(&rows)
	if err != nil {
		return models.ConnectionRow{}, fmt.Errorf("failed to create connection: %w", translateError(err))
	}
	return single(rows)
}

func (r *connectionRepository) Update(ctx context.Context, sourceID, id string, in models.ConnectionUpdate) (models.ConnectionRow, error) {
	if err := ctx.Err(); err != nil {
		return models.ConnectionRow{}, err
	}
	var rows []models.ConnectionRow
	_, err := r.c.from(tableConnections).
		Update(in, returnRepresentation, countNone).
		Eq("id", id).
		Eq("source_id", sourceID).
		ExecuteTo(&rows)
	if err != nil {
		return models.ConnectionRow{}, fmt.Errorf("failed to update connection %s: %w", id, translateError(err))
	}
	row, err := single(rows)
	if err != nil {
		return models.ConnectionRow{}, fmt.Errorf("connection %s: %w", id, err)
	}
	return row, nil
}

func (r *connectionRepository) Delete(ctx context.Context, sourceID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []models.ConnectionRow
	_, err := r.c.from(tableConnections).
		Delete(returnRepresentation, countNone).
		Eq("id", id).
		Eq("source_id", sourceID).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to delete connection %s: %w", id, translateError(err))
	}
	if _, err := single(rows); err != nil {
		return fmt.Errorf("connection %s: %w", id, err)
	}
	return nil
}

type findConnectionsArgs struct {
	StartID  string `json:"start_id"`
	MaxDepth int    `json:"max_depth"`
}

// FindConnections calls the find_connections database function.
func (r *connectionRepository) FindConnections(ctx context.Context, startID string, maxDepth int) ([]models.ConnectionRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	body := r.c.api.Rpc("find_connections", countNone, findConnectionsArgs{StartID: startID, MaxDepth: maxDepth})

	rows := []models.ConnectionRow{}
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		// Rpc reports failures as a JSON error object instead of an array.
		rpcErr := fmt.Errorf("rpc find_connections: %s", logging.TruncateString(body, 200))
		return nil, fmt.Errorf("failed to find connections: %w", translateError(rpcErr))
	}
	return rows, nil
}

var _ repositories.ConnectionRepository = (*connectionRepository)(nil)
