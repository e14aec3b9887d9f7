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

// CandidateLimit caps SearchProfiles results.
const CandidateLimit = 5

// ConnectionsView caches one profile's outgoing connections.
//
// Every connection write returns the persisted row, so the cache is patched
// in place from it: appended on insert, replaced on update and dropped on
// delete. The result is what a Fetch right after the write would return.
type ConnectionsView struct {
	profileID   string
	connections repositories.ConnectionRepository
	profiles    repositories.ProfileRepository
	logger      *zap.Logger
	*collection[models.Connection]
}

// NewConnectionsView creates an idle view over profileID's connections.
func NewConnectionsView(profileID string, connections repositories.ConnectionRepository, profiles repositories.ProfileRepository, logger *zap.Logger) *ConnectionsView {
	v := &ConnectionsView{
		profileID:   profileID,
		connections: connections,
		profiles:    profiles,
		logger:      logger.Named("connections").With(zap.String("profile_id", profileID)),
	}
	v.collection = newCollection("connections", v.load, logger.With(zap.String("profile_id", profileID)))
	return v
}

func (v *ConnectionsView) load(ctx context.Context) ([]models.Connection, error) {
	rows, err := v.connections.ListBySource(ctx, v.profileID)
	if err != nil {
		return nil, err
	}
	return mapper.Connections(rows)
}

// ProfileID returns the source profile of the watched connections.
func (v *ConnectionsView) ProfileID() string { return v.profileID }

// Fetch replaces the cache with the profile's connections, oldest first.
func (v *ConnectionsView) Fetch(ctx context.Context) error {
	return v.fetch(ctx)
}

// Connections returns the cached connections.
func (v *ConnectionsView) Connections() []models.Connection {
	return v.snapshot()
}

func (v *ConnectionsView) State() State {
	s, _ := v.status()
	return s
}

func (v *ConnectionsView) Err() error {
	_, err := v.status()
	return err
}

// AddConnection connects the profile to targetID with the default type and
// strength.
func (v *ConnectionsView) AddConnection(ctx context.Context, targetID string) (models.Connection, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return models.Connection{}, fmt.Errorf("%w: target profile id is required", apperrors.ErrInvalidConnection)
	}
	if targetID == v.profileID {
		return models.Connection{}, apperrors.ErrSelfConnection
	}

	row, err := v.connections.Create(ctx, mapper.ConnectionInsert(v.profileID, targetID))
	if err := observeWrite("connection_create", err); err != nil {
		v.logger.Error("Failed to add connection", zap.String("target_id", targetID), zap.Error(err))
		return models.Connection{}, err
	}
	created, err := mapper.Connection(row)
	if err != nil {
		return models.Connection{}, fmt.Errorf("failed to map created connection: %w", err)
	}

	v.mutate(func(items []models.Connection) []models.Connection {
		if i := indexOf(items, created.ID); i >= 0 {
			items[i] = created
			return items
		}
		return append(items, created)
	})
	v.logger.Info("Added connection",
		zap.String("connection_id", created.ID),
		zap.String("target_id", targetID))
	return created, nil
}

// UpdateConnectionType changes only the type of connection id.
func (v *ConnectionsView) UpdateConnectionType(ctx context.Context, id string, t models.ConnectionType) (models.Connection, error) {
	return v.UpdateConnection(ctx, id, &t, nil)
}

// UpdateConnectionStrength changes only the strength of connection id.
// Values outside [0, 1] are clamped before the write; NaN is rejected.
func (v *ConnectionsView) UpdateConnectionStrength(ctx context.Context, id string, strength float64) (models.Connection, error) {
	return v.UpdateConnection(ctx, id, nil, &strength)
}

// UpdateConnection patches type and strength of connection id in a single
// backend write. Nil fields are left unchanged. Both fields are validated
// before anything is written.
func (v *ConnectionsView) UpdateConnection(ctx context.Context, id string, t *models.ConnectionType, strength *float64) (models.Connection, error) {
	var in models.ConnectionUpdate
	if t != nil {
		if !t.IsValid() {
			return models.Connection{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidConnectionType, *t)
		}
		in.ConnectionType = t
	}
	if strength != nil {
		clamped, err := models.ClampStrength(*strength)
		if err != nil {
			return models.Connection{}, err
		}
		if clamped != *strength {
			v.logger.Debug("Clamped connection strength",
				zap.String("connection_id", id),
				zap.Float64("requested", *strength),
				zap.Float64("clamped", clamped))
		}
		in.Strength = &clamped
	}
	if in.ConnectionType == nil && in.Strength == nil {
		return models.Connection{}, fmt.Errorf("%w: type or strength is required", apperrors.ErrInvalidConnection)
	}

	operation := "connection_update"
	switch {
	case in.Strength == nil:
		operation = "connection_update_type"
	case in.ConnectionType == nil:
		operation = "connection_update_strength"
	}
	return v.update(ctx, operation, id, in)
}

func (v *ConnectionsView) update(ctx context.Context, operation, id string, in models.ConnectionUpdate) (models.Connection, error) {
	row, err := v.connections.Update(ctx, v.profileID, id, in)
	if err := observeWrite(operation, err); err != nil {
		v.logger.Error("Failed to update connection", zap.String("connection_id", id), zap.Error(err))
		return models.Connection{}, err
	}
	updated, err := mapper.Connection(row)
	if err != nil {
		return models.Connection{}, fmt.Errorf("failed to map updated connection: %w", err)
	}

	v.mutate(func(items []models.Connection) []models.Connection {
		if i := indexOf(items, updated.ID); i >= 0 {
			items[i] = updated
		}
		return items
	})
	return updated, nil
}

// RemoveConnection deletes connection id, then drops it from the cache.
func (v *ConnectionsView) RemoveConnection(ctx context.Context, id string) error {
	if err := observeWrite("connection_delete", v.connections.Delete(ctx, v.profileID, id)); err != nil {
		v.logger.Error("Failed to remove connection", zap.String("connection_id", id), zap.Error(err))
		return err
	}
	v.mutate(func(items []models.Connection) []models.Connection {
		return slices.DeleteFunc(items, func(c models.Connection) bool { return c.ID == id })
	})
	v.logger.Info("Removed connection", zap.String("connection_id", id))
	return nil
}

// SearchProfiles looks up connection targets on the backend by name. The
// profile itself is excluded and at most CandidateLimit profiles are returned.
// A blank query returns no candidates without a backend call.
func (v *ConnectionsView) SearchProfiles(ctx context.Context, query string) ([]models.Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Profile{}, nil
	}
	rows, err := v.profiles.Search(ctx, query, v.profileID, CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: candidate search: %w", apperrors.ErrFetchFailed, err)
	}
	return mapper.Profiles(rows)
}

// OnExternalChange refetches in response to a backend change.
func (v *ConnectionsView) OnExternalChange(ctx context.Context, e realtime.Event) error {
	return v.onChange(ctx, e)
}

// Watch fetches and then refetches on changes to this profile's connections.
func (v *ConnectionsView) Watch(ctx context.Context, hub *realtime.Hub) error {
	return v.watch(ctx, hub, []realtime.Scope{
		{Table: realtime.TableConnections, RowID: v.profileID},
	})
}

func (v *ConnectionsView) OnRefresh(fn func()) {
	v.setOnRefresh(fn)
}

// Close tears the view down; see ProfileListView.Close.
func (v *ConnectionsView) Close() {
	v.close()
}

func indexOf(items []models.Connection, id string) int {
	return slices.IndexFunc(items, func(c models.Connection) bool { return c.ID == id })
}
