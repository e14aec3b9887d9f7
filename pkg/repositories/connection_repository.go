package repositories

import (
	"context"
	"fmt"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/database"
	"github.com/shambu-network/shambu/pkg/models"
)

// ConnectionRepository defines the interface for connection data access.
type ConnectionRepository interface {
	// ListBySource returns sourceID's outgoing connections oldest first.
	ListBySource(ctx context.Context, sourceID string) ([]models.ConnectionRow, error)

	// Create inserts a connection and returns the persisted row.
	Create(ctx context.Context, in models.ConnectionInsert) (models.ConnectionRow, error)

	// Update patches type and/or strength of sourceID's connection id and
	// returns the persisted row. A connection owned by another profile is
	// ErrNotFound.
	Update(ctx context.Context, sourceID, id string, in models.ConnectionUpdate) (models.ConnectionRow, error)

	// Delete removes sourceID's connection id.
	Delete(ctx context.Context, sourceID, id string) error

	// FindConnections walks outgoing edges from startID up to maxDepth hops.
	FindConnections(ctx context.Context, startID string, maxDepth int) ([]models.ConnectionRow, error)
}

type connectionRepository struct {
	db *database.DB
}

// NewConnectionRepository creates a PostgreSQL connection repository.
func NewConnectionRepository(db *database.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) ListBySource(ctx context.Context, sourceID string) ([]models.ConnectionRow, error) {
	uid, err := parseID(sourceID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT to_jsonb(c)
		FROM connections c
		WHERE c.source_id = $1
		ORDER BY c.created_at, c.id`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", translateError(err))
	}
	out, err := collectJSON[models.ConnectionRow](rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return out, nil
}

func (r *connectionRepository) Create(ctx context.Context, in models.ConnectionInsert) (models.ConnectionRow, error) {
	src, err := parseID(in.SourceID)
	if err != nil {
		return models.ConnectionRow{}, err
	}
	dst, err := parseID(in.TargetID)
	if err != nil {
		return models.ConnectionRow{}, err
	}
	metadata, err := jsonParam(in.Metadata)
	if err != nil {
		return models.ConnectionRow{}, err
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO connections (source_id, target_id, connection_type, strength, metadata)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING to_jsonb(connections.*)`,
		src, dst, string(in.ConnectionType), in.Strength, metadata)
	out, err := scanJSON[models.ConnectionRow](row)
	if err != nil {
		return models.ConnectionRow{}, fmt.Errorf("failed to create connection: %w", err)
	}
	return out, nil
}

func (r *connectionRepository) Update(ctx context.Context, sourceID, id string, in models.ConnectionUpdate) (models.ConnectionRow, error) {
	uid, err := parseID(id)
	if err != nil {
		return models.ConnectionRow{}, err
	}
	sid, err := parseID(sourceID)
	if err != nil {
		return models.ConnectionRow{}, err
	}
	var connType *string
	if in.ConnectionType != nil {
		s := string(*in.ConnectionType)
		connType = &s
	}

	row := r.db.QueryRow(ctx, `
		UPDATE connections SET
			connection_type = COALESCE($2, connection_type),
			strength        = COALESCE($3, strength)
		WHERE id = $1 AND source_id = $4
		RETURNING to_jsonb(connections.*)`,
		uid, connType, in.Strength, sid)
	out, err := scanJSON[models.ConnectionRow](row)
	if err != nil {
		return models.ConnectionRow{}, fmt.Errorf("failed to update connection %s: %w", id, err)
	}
	return out, nil
}

func (r *connectionRepository) Delete(ctx context.Context, sourceID, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	sid, err := parseID(sourceID)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM connections WHERE id = $1 AND source_id = $2`, uid, sid)
	if err != nil {
		return fmt.Errorf("failed to delete connection %s: %w", id, translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *connectionRepository) FindConnections(ctx context.Context, startID string, maxDepth int) ([]models.ConnectionRow, error) {
	uid, err := parseID(startID)
	if err != nil {
		return nil, err
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	rows, err := r.db.Query(ctx, `SELECT to_jsonb(f) FROM find_connections($1, $2) f`, uid, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to find connections: %w", translateError(err))
	}
	out, err := collectJSON[models.ConnectionRow](rows)
	if err != nil {
		return nil, fmt.Errorf("failed to find connections: %w", err)
	}
	return out, nil
}

var _ ConnectionRepository = (*connectionRepository)(nil)
