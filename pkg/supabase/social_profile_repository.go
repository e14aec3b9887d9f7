package supabase

import (
	"context"
	"fmt"

	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/repositories"
)

type socialProfileRepository struct {
	c *Client
}

// NewSocialProfileRepository creates a Supabase-backed social profile repository.
func NewSocialProfileRepository(c *Client) repositories.SocialProfileRepository {
	return &socialProfileRepository{c: c}
}

func (r *socialProfileRepository) ListByProfile(ctx context.Context, profileID string) ([]models.SocialProfileRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []models.SocialProfileRow
	_, err := r.c.from(tableSocialProfiles).
		Select("*", countNone, false).
		Eq("profile_id", profileID).
		Order("created_at", ascending).
		Order("id", ascending).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list social profiles: %w", translateError(err))
	}
	if rows == nil {
		rows = []models.SocialProfileRow{}
	}
	return rows, nil
}

func (r *socialProfileRepository) Create(ctx context.Context, in models.SocialProfileInsert) (models.SocialProfileRow, error) {
	if err := ctx.Err(); err != nil {
		return models.SocialProfileRow{}, err
	}
	var rows []models.SocialProfileRow
	_, err := r.c.from(tableSocialProfiles).
		Insert(in, false, "", returnRepresentation, countNone).
		ExecuteTo(&rows)
	if err != nil {
		return models.SocialProfileRow{}, fmt.Errorf("failed to create social profile: %w", translateError(err))
	}
	return single(rows)
}

func (r *socialProfileRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []models.SocialProfileRow
	_, err := r.c.from(tableSocialProfiles).
		Delete(returnRepresentation, countNone).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to delete social profile %s: %w", id, translateError(err))
	}
	if _, err := single(rows); err != nil {
		return fmt.Errorf("social profile %s: %w", id, err)
	}
	return nil
}

var _ repositories.SocialProfileRepository = (*socialProfileRepository)(nil)
