package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/database"
	"github.com/shambu-network/shambu/pkg/models"
)

// ProfileRepository defines the interface for profile data access.
// Reads return storage rows; callers convert them with the mapper.
type ProfileRepository interface {
	// List returns every profile ordered by full_name then id, with nested
	// social_profiles and connections. A non-empty query filters by name.
	List(ctx context.Context, query string) ([]models.ProfileRow, error)

	// GetByID returns one profile with nested collections.
	GetByID(ctx context.Context, id string) (models.ProfileRow, error)

	// Search is the candidate lookup: a name match excluding excludeID,
	// capped to limit rows, without nested collections.
	Search(ctx context.Context, query, excludeID string, limit int) ([]models.ProfileRow, error)

	Create(ctx context.Context, in models.ProfileInsert) (models.ProfileRow, error)
	Update(ctx context.Context, id string, in models.ProfileUpdate) (models.ProfileRow, error)
	Delete(ctx context.Context, id string) error
}

// profileSelect builds the nested row document for alias p.
const profileSelect = `
	to_jsonb(p) || jsonb_build_object(
		'social_profiles', COALESCE((
			SELECT jsonb_agg(to_jsonb(s) ORDER BY s.created_at, s.id)
			FROM social_profiles s
			WHERE s.profile_id = p.id
		), '[]'::jsonb),
		'connections', COALESCE((
			SELECT jsonb_agg(to_jsonb(c) ORDER BY c.created_at, c.id)
			FROM connections c
			WHERE c.source_id = p.id
		), '[]'::jsonb)
	)`

// nameMatch matches $1 as full-text words or as a case-insensitive prefix ($2).
const nameMatch = `(to_tsvector('simple', p.full_name) @@ plainto_tsquery('simple', $1) OR p.full_name ILIKE $2)`

type profileRepository struct {
	db *database.DB
}

// NewProfileRepository creates a PostgreSQL profile repository.
func NewProfileRepository(db *database.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func prefixPattern(q string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return escaped + "%"
}

func (r *profileRepository) List(ctx context.Context, query string) ([]models.ProfileRow, error) {
	query = strings.TrimSpace(query)
	sql := `SELECT ` + profileSelect + ` FROM profiles p`
	var args []any
	if query != "" {
		sql += ` WHERE ` + nameMatch
		args = append(args, query, prefixPattern(query))
	}
	sql += ` ORDER BY p.full_name, p.id`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", translateError(err))
	}
	out, err := collectJSON[models.ProfileRow](rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return out, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (models.ProfileRow, error) {
	uid, err := parseID(id)
	if err != nil {
		return models.ProfileRow{}, err
	}
	row := r.db.QueryRow(ctx, `SELECT `+profileSelect+` FROM profiles p WHERE p.id = $1`, uid)
	out, err := scanJSON[models.ProfileRow](row)
	if err != nil {
		return models.ProfileRow{}, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	return out, nil
}

func (r *profileRepository) Search(ctx context.Context, query, excludeID string, limit int) ([]models.ProfileRow, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.ProfileRow{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	sql := `
		SELECT to_jsonb(p)
		FROM profiles p
		WHERE ` + nameMatch + `
		  AND p.id::text <> $3
		ORDER BY p.full_name, p.id
		LIMIT $4`

	rows, err := r.db.Query(ctx, sql, query, prefixPattern(query), excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", translateError(err))
	}
	out, err := collectJSON[models.ProfileRow](rows)
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}
	return out, nil
}

func (r *profileRepository) Create(ctx context.Context, in models.ProfileInsert) (models.ProfileRow, error) {
	metadata, err := jsonParam(in.Metadata)
	if err != nil {
		return models.ProfileRow{}, err
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO profiles (full_name, email, avatar_url, metadata)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING to_jsonb(profiles.*)`,
		in.FullName, in.Email, in.AvatarURL, metadata)
	out, err := scanJSON[models.ProfileRow](row)
	if err != nil {
		return models.ProfileRow{}, fmt.Errorf("failed to create profile: %w", err)
	}
	return out, nil
}

// Update changes only the non-nil columns of in.
func (r *profileRepository) Update(ctx context.Context, id string, in models.ProfileUpdate) (models.ProfileRow, error) {
	uid, err := parseID(id)
	if err != nil {
		return models.ProfileRow{}, err
	}
	if in.IsEmpty() {
		return r.GetByID(ctx, id)
	}
	metadata, err := jsonParam(in.Metadata)
	if err != nil {
		return models.ProfileRow{}, err
	}

	row := r.db.QueryRow(ctx, `
		UPDATE profiles SET
			full_name  = COALESCE($2, full_name),
			email      = COALESCE($3, email),
			avatar_url = COALESCE($4, avatar_url),
			metadata   = COALESCE($5::jsonb, metadata)
		WHERE id = $1
		RETURNING to_jsonb(profiles.*)`,
		uid, in.FullName, in.Email, in.AvatarURL, metadata)
	out, err := scanJSON[models.ProfileRow](row)
	if err != nil {
		return models.ProfileRow{}, fmt.Errorf("failed to update profile %s: %w", id, err)
	}
	return out, nil
}

// Delete removes the profile. Social profiles and connections cascade.
func (r *profileRepository) Delete(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", id, translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

var _ ProfileRepository = (*profileRepository)(nil)
