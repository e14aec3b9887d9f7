package views

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/realtime"
)

func loadedConnections(t *testing.T, rows ...models.ConnectionRow) (*ConnectionsView, *mockConnectionRepository, *mockProfileRepository) {
	t.Helper()
	conns := &mockConnectionRepository{
		list: func(ctx context.Context, sourceID string) ([]models.ConnectionRow, error) {
			return rows, nil
		},
	}
	profiles := &mockProfileRepository{}
	v := NewConnectionsView("p-1", conns, profiles, zap.NewNop())
	require.NoError(t, v.Fetch(context.Background()))
	return v, conns, profiles
}

func connectionIDs(conns []models.Connection) []string {
	out := make([]string, len(conns))
	for i, c := range conns {
		out[i] = c.ID
	}
	return out
}

func TestConnectionsView_Fetch(t *testing.T) {
	var gotSource string
	conns := &mockConnectionRepository{
		list: func(ctx context.Context, sourceID string) ([]models.ConnectionRow, error) {
			gotSource = sourceID
			return []models.ConnectionRow{connectionRow("c-1", "p-1", "p-2"), connectionRow("c-2", "p-1", "p-3")}, nil
		},
	}
	v := NewConnectionsView("p-1", conns, &mockProfileRepository{}, zap.NewNop())
	require.NoError(t, v.Fetch(context.Background()))

	assert.Equal(t, "p-1", gotSource)
	assert.Equal(t, []string{"c-1", "c-2"}, connectionIDs(v.Connections()))
	assert.Equal(t, StateReady, v.State())
}

func TestConnectionsView_AddConnectionDefaults(t *testing.T) {
	v, conns, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"))

	c, err := v.AddConnection(context.Background(), "p-3")
	require.NoError(t, err)

	assert.Equal(t, models.ConnectionProfessional, c.Type)
	assert.Equal(t, 0.5, c.Strength)
	assert.Equal(t, "p-1", c.SourceID)
	assert.Equal(t, "p-3", c.TargetID)
	assert.Equal(t, []string{"c-1", "c-new"}, connectionIDs(v.Connections()))
	assert.Equal(t, 1, conns.count("ListBySource"), "the echoed row patches the cache")
}

func TestConnectionsView_AddConnectionAlreadyFetched(t *testing.T) {
	v, _, _ := loadedConnections(t, connectionRow("c-new", "p-1", "p-3"))

	_, err := v.AddConnection(context.Background(), "p-3")
	require.NoError(t, err)
	assert.Equal(t, []string{"c-new"}, connectionIDs(v.Connections()))
}

func TestConnectionsView_AddConnectionRejected(t *testing.T) {
	v, conns, _ := loadedConnections(t)

	_, err := v.AddConnection(context.Background(), "p-1")
	assert.True(t, errors.Is(err, apperrors.ErrSelfConnection))

	_, err = v.AddConnection(context.Background(), " ")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConnection))
	assert.False(t, errors.Is(err, apperrors.ErrNotFound), "a blank target is a validation error")

	assert.Zero(t, conns.count("Create"))

	conns.create = func(ctx context.Context, in models.ConnectionInsert) (models.ConnectionRow, error) {
		return models.ConnectionRow{}, apperrors.ErrNotFound
	}
	_, err = v.AddConnection(context.Background(), "p-missing")
	assert.True(t, errors.Is(err, apperrors.ErrWriteFailed))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Empty(t, v.Connections())
}

func TestConnectionsView_UpdateConnectionStrength(t *testing.T) {
	tests := []struct {
		name      string
		requested float64
		persisted float64
	}{
		{"in range", 0.8, 0.8},
		{"above one clamps", 1.7, 1},
		{"below zero clamps", -0.3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, conns, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"))

			c, err := v.UpdateConnectionStrength(context.Background(), "c-1", tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.persisted, c.Strength)

			require.Len(t, conns.updates, 1)
			require.NotNil(t, conns.updates[0].Strength)
			assert.Equal(t, tt.persisted, *conns.updates[0].Strength)
			assert.Nil(t, conns.updates[0].ConnectionType, "only strength is written")
			assert.Equal(t, tt.persisted, v.Connections()[0].Strength)
		})
	}
}

func TestConnectionsView_UpdateConnectionStrengthNaN(t *testing.T) {
	v, conns, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"))

	_, err := v.UpdateConnectionStrength(context.Background(), "c-1", math.NaN())
	assert.True(t, errors.Is(err, apperrors.ErrInvalidStrength))
	assert.Zero(t, conns.count("Update"))
	assert.Equal(t, 0.5, v.Connections()[0].Strength)
}

func TestConnectionsView_UpdateConnectionType(t *testing.T) {
	v, conns, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"))

	c, err := v.UpdateConnectionType(context.Background(), "c-1", models.ConnectionAcademic)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionAcademic, c.Type)
	assert.Equal(t, models.ConnectionAcademic, v.Connections()[0].Type)
	require.Len(t, conns.updates, 1)
	assert.Nil(t, conns.updates[0].Strength, "only type is written")

	_, err = v.UpdateConnectionType(context.Background(), "c-1", models.ConnectionType("RIVAL"))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConnectionType))
	assert.Equal(t, 1, conns.count("Update"))
}

func TestConnectionsView_UpdateConnectionSingleWrite(t *testing.T) {
	v, conns, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"))
	family := models.ConnectionFamily
	strength := 1.4

	c, err := v.UpdateConnection(context.Background(), "c-1", &family, &strength)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionFamily, c.Type)
	assert.Equal(t, 1.0, c.Strength)

	require.Len(t, conns.updates, 1, "both fields go out in one write")
	require.NotNil(t, conns.updates[0].ConnectionType)
	require.NotNil(t, conns.updates[0].Strength)
	assert.Equal(t, models.ConnectionFamily, *conns.updates[0].ConnectionType)
	assert.Equal(t, 1.0, *conns.updates[0].Strength)
}

func TestConnectionsView_UpdateConnectionValidatesBeforeWriting(t *testing.T) {
	v, conns, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"))
	rival := models.ConnectionType("RIVAL")
	strength := 0.9
	nan := math.NaN()
	family := models.ConnectionFamily

	_, err := v.UpdateConnection(context.Background(), "c-1", &rival, &strength)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConnectionType))

	_, err = v.UpdateConnection(context.Background(), "c-1", &family, &nan)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidStrength))

	_, err = v.UpdateConnection(context.Background(), "c-1", nil, nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConnection))

	assert.Zero(t, conns.count("Update"), "nothing is written when either field is invalid")
	assert.Equal(t, models.ConnectionProfessional, v.Connections()[0].Type)
}

func TestConnectionsView_WritesScopedToProfile(t *testing.T) {
	v, conns, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"))
	var updateSource, deleteSource string
	conns.update = func(ctx context.Context, sourceID, id string, in models.ConnectionUpdate) (models.ConnectionRow, error) {
		updateSource = sourceID
		return connectionRow(id, sourceID, "p-2"), nil
	}
	conns.remove = func(ctx context.Context, sourceID, id string) error {
		deleteSource = sourceID
		return nil
	}

	_, err := v.UpdateConnectionStrength(context.Background(), "c-1", 0.7)
	require.NoError(t, err)
	require.NoError(t, v.RemoveConnection(context.Background(), "c-1"))

	assert.Equal(t, "p-1", updateSource)
	assert.Equal(t, "p-1", deleteSource)
}

func TestConnectionsView_UpdateOtherProfilesConnection(t *testing.T) {
	v, conns, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"))
	conns.update = func(ctx context.Context, sourceID, id string, in models.ConnectionUpdate) (models.ConnectionRow, error) {
		return models.ConnectionRow{}, apperrors.ErrNotFound
	}

	_, err := v.UpdateConnectionStrength(context.Background(), "c-foreign", 0.9)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, []string{"c-1"}, connectionIDs(v.Connections()))
}

func TestConnectionsView_UpdateFailureLeavesCache(t *testing.T) {
	v, conns, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"))
	conns.update = func(ctx context.Context, sourceID, id string, in models.ConnectionUpdate) (models.ConnectionRow, error) {
		return models.ConnectionRow{}, errBackend
	}

	_, err := v.UpdateConnectionType(context.Background(), "c-1", models.ConnectionFamily)
	assert.True(t, errors.Is(err, apperrors.ErrWriteFailed))
	assert.Equal(t, models.ConnectionProfessional, v.Connections()[0].Type)
}

func TestConnectionsView_RemoveConnection(t *testing.T) {
	v, _, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"), connectionRow("c-2", "p-1", "p-3"))

	require.NoError(t, v.RemoveConnection(context.Background(), "c-1"))
	assert.Equal(t, []string{"c-2"}, connectionIDs(v.Connections()))
}

func TestConnectionsView_RemoveConnectionFailureKeepsEntry(t *testing.T) {
	v, conns, _ := loadedConnections(t, connectionRow("c-1", "p-1", "p-2"))
	conns.remove = func(ctx context.Context, sourceID, id string) error { return errBackend }

	err := v.RemoveConnection(context.Background(), "c-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrWriteFailed))
	assert.Equal(t, []string{"c-1"}, connectionIDs(v.Connections()))
}

func TestConnectionsView_SearchProfiles(t *testing.T) {
	v, _, profiles := loadedConnections(t)
	var gotQuery, gotExclude string
	var gotLimit int
	profiles.search = func(ctx context.Context, query, excludeID string, limit int) ([]models.ProfileRow, error) {
		gotQuery, gotExclude, gotLimit = query, excludeID, limit
		return []models.ProfileRow{profileRow("p-2", "Alan Turing")}, nil
	}

	got, err := v.SearchProfiles(context.Background(), "  alan ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alan Turing"}, names(got))
	assert.Equal(t, "alan", gotQuery)
	assert.Equal(t, "p-1", gotExclude)
	assert.Equal(t, CandidateLimit, gotLimit)

	got, err = v.SearchProfiles(context.Background(), " ")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, profiles.count("Search"))

	profiles.search = func(ctx context.Context, query, excludeID string, limit int) ([]models.ProfileRow, error) {
		return nil, errBackend
	}
	_, err = v.SearchProfiles(context.Background(), "alan")
	assert.True(t, errors.Is(err, apperrors.ErrFetchFailed))
}

func TestConnectionsView_WatchScopedToProfile(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop())
	conns := &mockConnectionRepository{}
	v := NewConnectionsView("p-1", conns, &mockProfileRepository{}, zap.NewNop())
	refreshed := make(chan struct{}, 8)
	v.OnRefresh(func() { refreshed <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Watch(ctx, hub) }()

	wait := func(msg string) {
		t.Helper()
		select {
		case <-refreshed:
		case <-time.After(2 * time.Second):
			t.Fatal(msg)
		}
	}
	wait("initial fetch did not happen")

	hub.Publish(realtime.Event{Table: realtime.TableConnections, Op: realtime.OpInsert, RowID: "c-9", ProfileID: "p-2"})
	hub.Publish(realtime.Event{Table: realtime.TableProfiles, Op: realtime.OpUpdate, RowID: "p-1"})
	hub.Publish(realtime.Event{Table: realtime.TableConnections, Op: realtime.OpInsert, RowID: "c-3", ProfileID: "p-1"})
	wait("own connection change did not trigger a refetch")
	assert.Equal(t, 2, conns.count("ListBySource"), "other scopes are ignored")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	assert.Equal(t, 0, hub.Subscribers())
}
