package views

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/mapper"
	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/realtime"
	"github.com/shambu-network/shambu/pkg/repositories"
)

// ProfileListView caches the full profile collection ordered by full name.
//
// Profile writes are followed by a full Fetch: the read query embeds social
// profiles and connections that a write does not echo back. Remove drops the
// entry by id once the delete is acknowledged.
type ProfileListView struct {
	profiles repositories.ProfileRepository
	filter   string
	logger   *zap.Logger
	*collection[models.Profile]
}

// NewProfileListView creates an idle view. filter is passed to the read query
// as its optional name filter; "" loads everything.
func NewProfileListView(profiles repositories.ProfileRepository, filter string, logger *zap.Logger) *ProfileListView {
	v := &ProfileListView{
		profiles: profiles,
		filter:   filter,
		logger:   logger.Named("profile_list"),
	}
	v.collection = newCollection("profiles", v.load, logger)
	return v
}

func (v *ProfileListView) load(ctx context.Context) ([]models.Profile, error) {
	rows, err := v.profiles.List(ctx, v.filter)
	if err != nil {
		return nil, err
	}
	return mapper.Profiles(rows)
}

// Fetch replaces the cache with the backend's collection. On failure the
// previous collection stays readable and the view enters StateError.
func (v *ProfileListView) Fetch(ctx context.Context) error {
	return v.fetch(ctx)
}

// Retry is the explicit recovery from StateError. It fetches unconditionally.
func (v *ProfileListView) Retry(ctx context.Context) error {
	if state, _ := v.status(); state == StateError {
		v.logger.Info("Retrying failed fetch")
	}
	return v.fetch(ctx)
}

// Profiles returns the cached collection in fetch order.
func (v *ProfileListView) Profiles() []models.Profile {
	return cloneProfiles(v.snapshot())
}

// State returns the current lifecycle state.
func (v *ProfileListView) State() State {
	s, _ := v.status()
	return s
}

// Err returns the error of the last failed fetch, or nil once a fetch succeeds.
func (v *ProfileListView) Err() error {
	_, err := v.status()
	return err
}

// Search filters the cached collection without touching the backend. It
// matches query case-insensitively against full name, email, title and
// company. An empty query returns the whole collection.
func (v *ProfileListView) Search(query string) []models.Profile {
	return cloneProfiles(FilterProfiles(v.snapshot(), query))
}

// FilterProfiles returns the profiles matching query, preserving order.
func FilterProfiles(profiles []models.Profile, query string) []models.Profile {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return profiles
	}
	out := make([]models.Profile, 0)
	for _, p := range profiles {
		if matchesProfile(&p, q) {
			out = append(out, p)
		}
	}
	return out
}

func matchesProfile(p *models.Profile, q string) bool {
	fields := []string{p.FullName, p.Title(), p.Company()}
	if p.Email != nil {
		fields = append(fields, *p.Email)
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Create validates and inserts draft, then refetches. The created profile is
// returned even when the refetch fails; the error then wraps ErrFetchFailed.
func (v *ProfileListView) Create(ctx context.Context, draft models.ProfileDraft) (models.Profile, error) {
	if err := draft.Validate(); err != nil {
		return models.Profile{}, err
	}

	row, err := v.profiles.Create(ctx, mapper.ProfileInsert(draft))
	if err := observeWrite("profile_create", err); err != nil {
		v.logger.Error("Failed to create profile", zap.Error(err))
		return models.Profile{}, err
	}
	created, err := mapper.Profile(row)
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to map created profile: %w", err)
	}
	v.logger.Info("Created profile", zap.String("profile_id", created.ID))

	if err := v.fetch(ctx); err != nil {
		return created, err
	}
	return v.refreshed(created), nil
}

// Update applies patch to profile id, then refetches.
func (v *ProfileListView) Update(ctx context.Context, id string, patch models.ProfilePatch) (models.Profile, error) {
	if err := patch.Validate(); err != nil {
		return models.Profile{}, err
	}
	update := mapper.ProfileUpdate(patch)
	if update.IsEmpty() {
		return models.Profile{}, fmt.Errorf("%w: patch changes nothing", apperrors.ErrInvalidProfile)
	}

	row, err := v.profiles.Update(ctx, id, update)
	if err := observeWrite("profile_update", err); err != nil {
		v.logger.Error("Failed to update profile", zap.String("profile_id", id), zap.Error(err))
		return models.Profile{}, err
	}
	updated, err := mapper.Profile(row)
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to map updated profile: %w", err)
	}
	v.logger.Info("Updated profile", zap.String("profile_id", id))

	if err := v.fetch(ctx); err != nil {
		return updated, err
	}
	return v.refreshed(updated), nil
}

// Remove deletes profile id and then drops it from the cache, along with the
// connections other cached profiles had to it.
func (v *ProfileListView) Remove(ctx context.Context, id string) error {
	if err := observeWrite("profile_delete", v.profiles.Delete(ctx, id)); err != nil {
		v.logger.Error("Failed to delete profile", zap.String("profile_id", id), zap.Error(err))
		return err
	}
	v.mutate(func(items []models.Profile) []models.Profile {
		out := make([]models.Profile, 0, len(items))
		for _, p := range items {
			if p.ID == id {
				continue
			}
			if slices.ContainsFunc(p.Connections, func(c models.Connection) bool { return c.TargetID == id }) {
				p.Connections = slices.DeleteFunc(slices.Clone(p.Connections), func(c models.Connection) bool {
					return c.TargetID == id
				})
			}
			out = append(out, p)
		}
		return out
	})
	v.logger.Info("Deleted profile", zap.String("profile_id", id))
	return nil
}

// OnExternalChange refetches in response to a backend change. The event
// payload itself is not used.
func (v *ProfileListView) OnExternalChange(ctx context.Context, e realtime.Event) error {
	return v.onChange(ctx, e)
}

// Watch fetches and then refetches on every profile, social profile or
// connection change until ctx is cancelled or the view is closed.
func (v *ProfileListView) Watch(ctx context.Context, hub *realtime.Hub) error {
	return v.watch(ctx, hub, []realtime.Scope{
		{Table: realtime.TableProfiles},
		{Table: realtime.TableSocialProfiles},
		{Table: realtime.TableConnections},
	})
}

// OnRefresh registers fn to run after every cache change.
func (v *ProfileListView) OnRefresh(fn func()) {
	v.setOnRefresh(fn)
}

// Close tears the view down. Its subscription is released before Close
// returns and results of fetches still in flight are discarded.
func (v *ProfileListView) Close() {
	v.close()
}

// refreshed returns the cached copy of p after a refetch, or p itself when the
// refetched collection does not contain it.
func (v *ProfileListView) refreshed(p models.Profile) models.Profile {
	for _, cached := range v.snapshot() {
		if cached.ID == p.ID {
			return cloneProfile(cached)
		}
	}
	return p
}

func cloneProfiles(in []models.Profile) []models.Profile {
	out := make([]models.Profile, len(in))
	for i := range in {
		out[i] = cloneProfile(in[i])
	}
	return out
}

func cloneProfile(p models.Profile) models.Profile {
	p.SocialProfiles = slices.Clone(p.SocialProfiles)
	p.Connections = slices.Clone(p.Connections)
	return p
}
