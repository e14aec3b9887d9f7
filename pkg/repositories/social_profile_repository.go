package repositories

import (
	"context"
	"fmt"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/database"
	"github.com/shambu-network/shambu/pkg/models"
)

// SocialProfileRepository defines the interface for social profile data access.
// Used by the import path; the views read social profiles nested in profiles.
type SocialProfileRepository interface {
	ListByProfile(ctx context.Context, profileID string) ([]models.SocialProfileRow, error)
	Create(ctx context.Context, in models.SocialProfileInsert) (models.SocialProfileRow, error)
	Delete(ctx context.Context, id string) error
}

type socialProfileRepository struct {
	db *database.DB
}

// NewSocialProfileRepository creates a PostgreSQL social profile repository.
func NewSocialProfileRepository(db *database.DB) SocialProfileRepository {
	return &socialProfileRepository{db: db}
}

func (r *socialProfileRepository) ListByProfile(ctx context.Context, profileID string) ([]models.SocialProfileRow, error) {
	uid, err := parseID(profileID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT to_jsonb(s)
		FROM social_profiles s
		WHERE s.profile_id = $1
		ORDER BY s.created_at, s.id`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list social profiles: %w", translateError(err))
	}
	out, err := collectJSON[models.SocialProfileRow](rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list social profiles: %w", err)
	}
	return out, nil
}

func (r *socialProfileRepository) Create(ctx context.Context, in models.SocialProfileInsert) (models.SocialProfileRow, error) {
	uid, err := parseID(in.ProfileID)
	if err != nil {
		return models.SocialProfileRow{}, err
	}
	metadata, err := jsonParam(in.Metadata)
	if err != nil {
		return models.SocialProfileRow{}, err
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO social_profiles (profile_id, platform, username, url, metadata)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING to_jsonb(social_profiles.*)`,
		uid, in.Platform, in.Username, in.URL, metadata)
	out, err := scanJSON[models.SocialProfileRow](row)
	if err != nil {
		return models.SocialProfileRow{}, fmt.Errorf("failed to create social profile: %w", err)
	}
	return out, nil
}

func (r *socialProfileRepository) Delete(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM social_profiles WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("failed to delete social profile %s: %w", id, translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("social profile %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

var _ SocialProfileRepository = (*socialProfileRepository)(nil)
