package supabase

import (
	"context"
	"fmt"
	"strings"

	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/repositories"
)

type profileRepository struct {
	c *Client
}

// NewProfileRepository creates a Supabase-backed profile repository.
func NewProfileRepository(c *Client) repositories.ProfileRepository {
	return &profileRepository{c: c}
}

// The PostgREST client does not take a context; ctx only gates the call.

func (r *profileRepository) List(ctx context.Context, query string) ([]models.ProfileRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := r.c.from(tableProfiles).Select(profileSelect, countNone, false)
	if query = strings.TrimSpace(query); query != "" {
		q = q.TextSearch("full_name", query, "simple", "plain")
	}
	q = q.Order("full_name", ascending).Order("id", ascending)

	var rows []models.ProfileRow
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", translateError(err))
	}
	if rows == nil {
		rows = []models.ProfileRow{}
	}
	return rows, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (models.ProfileRow, error) {
	if err := ctx.Err(); err != nil {
		return models.ProfileRow{}, err
	}
	var rows []models.ProfileRow
	_, err := r.c.from(tableProfiles).
		Select(profileSelect, countNone, false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return models.ProfileRow{}, fmt.Errorf("failed to get profile %s: %w", id, translateError(err))
	}
	row, err := single(rows)
	if err != nil {
		return models.ProfileRow{}, fmt.Errorf("profile %s: %w", id, err)
	}
	return row, nil
}

// Search runs a full-text match and falls back to a name prefix when the
// words match nothing.
func (r *profileRepository) Search(ctx context.Context, query, excludeID string, limit int) ([]models.ProfileRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.ProfileRow{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	run := func(prefix bool) ([]models.ProfileRow, error) {
		q := r.c.from(tableProfiles).Select("*", countNone, false)
		if prefix {
			q = q.Ilike("full_name", escapeLike(query)+"*")
		} else {
			q = q.TextSearch("full_name", query, "simple", "plain")
		}
		if excludeID != "" {
			q = q.Neq("id", excludeID)
		}
		var rows []models.ProfileRow
		_, err := q.Order("full_name", ascending).Limit(limit, "").ExecuteTo(&rows)
		return rows, err
	}

	rows, err := run(false)
	if err == nil && len(rows) == 0 {
		rows, err = run(true)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", translateError(err))
	}
	if rows == nil {
		rows = []models.ProfileRow{}
	}
	return rows, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *profileRepository) Create(ctx context.Context, in models.ProfileInsert) (models.ProfileRow, error) {
	if err := ctx.Err(); err != nil {
		return models.ProfileRow{}, err
	}
	var rows []models.ProfileRow
	_, err := r.c.from(tableProfiles).
		Insert(in, false, "", returnRepresentation, countNone).
		ExecuteTo(&rows)
	if err != nil {
		return models.ProfileRow{}, fmt.Errorf("failed to create profile: %w", translateError(err))
	}
	return single(rows)
}

func (r *profileRepository) Update(ctx context.Context, id string, in models.ProfileUpdate) (models.ProfileRow, error) {
	if err := ctx.Err(); err != nil {
		return models.ProfileRow{}, err
	}
	if in.IsEmpty() {
		return r.GetByID(ctx, id)
	}
	var rows []models.ProfileRow
	_, err := r.c.from(tableProfiles).
		Update(in, returnRepresentation, countNone).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return models.ProfileRow{}, fmt.Errorf("failed to update profile %s: %w", id, translateError(err))
	}
	row, err := single(rows)
	if err != nil {
		return models.ProfileRow{}, fmt.Errorf("profile %s: %w", id, err)
	}
	return row, nil
}

func (r *profileRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []models.ProfileRow
	_, err := r.c.from(tableProfiles).
		Delete(returnRepresentation, countNone).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", id, translateError(err))
	}
	if _, err := single(rows); err != nil {
		return fmt.Errorf("profile %s: %w", id, err)
	}
	return nil
}

var _ repositories.ProfileRepository = (*profileRepository)(nil)
