package views

import (
	"context"
	"errors"
	"sync"

	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/repositories"
)

var errBackend = errors.New("connection reset by peer")

const testTimestamp = "2024-05-01T09:30:00.000000+00:00"

func profileRow(id, name string) models.ProfileRow {
	return models.ProfileRow{
		ID:        id,
		FullName:  name,
		CreatedAt: testTimestamp,
		UpdatedAt: testTimestamp,
	}
}

func connectionRow(id, source, target string) models.ConnectionRow {
	return models.ConnectionRow{
		ID:             id,
		SourceID:       source,
		TargetID:       target,
		ConnectionType: string(models.DefaultConnectionType),
		Strength:       models.DefaultConnectionStrength,
		CreatedAt:      testTimestamp,
	}
}

// mockProfileRepository is a configurable ProfileRepository. Nil funcs
// return zero values.
type mockProfileRepository struct {
	mu     sync.Mutex
	calls  map[string]int
	list   func(ctx context.Context, query string) ([]models.ProfileRow, error)
	search func(ctx context.Context, query, excludeID string, limit int) ([]models.ProfileRow, error)
	create func(ctx context.Context, in models.ProfileInsert) (models.ProfileRow, error)
	update func(ctx context.Context, id string, in models.ProfileUpdate) (models.ProfileRow, error)
	remove func(ctx context.Context, id string) error
}

var _ repositories.ProfileRepository = (*mockProfileRepository)(nil)

func (m *mockProfileRepository) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockProfileRepository) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockProfileRepository) List(ctx context.Context, query string) ([]models.ProfileRow, error) {
	m.record("List")
	if m.list == nil {
		return []models.ProfileRow{}, nil
	}
	return m.list(ctx, query)
}

func (m *mockProfileRepository) GetByID(ctx context.Context, id string) (models.ProfileRow, error) {
	m.record("GetByID")
	return profileRow(id, "Profile "+id), nil
}

func (m *mockProfileRepository) Search(ctx context.Context, query, excludeID string, limit int) ([]models.ProfileRow, error) {
	m.record("Search")
	if m.search == nil {
		return []models.ProfileRow{}, nil
	}
	return m.search(ctx, query, excludeID, limit)
}

func (m *mockProfileRepository) Create(ctx context.Context, in models.ProfileInsert) (models.ProfileRow, error) {
	m.record("Create")
	if m.create == nil {
		return profileRow("p-new", in.FullName), nil
	}
	return m.create(ctx, in)
}

func (m *mockProfileRepository) Update(ctx context.Context, id string, in models.ProfileUpdate) (models.ProfileRow, error) {
	m.record("Update")
	if m.update == nil {
		return profileRow(id, "Updated"), nil
	}
	return m.update(ctx, id, in)
}

func (m *mockProfileRepository) Delete(ctx context.Context, id string) error {
	m.record("Delete")
	if m.remove == nil {
		return nil
	}
	return m.remove(ctx, id)
}

// mockConnectionRepository is a configurable ConnectionRepository.
type mockConnectionRepository struct {
	mu      sync.Mutex
	calls   map[string]int
	updates []models.ConnectionUpdate
	list    func(ctx context.Context, sourceID string) ([]models.ConnectionRow, error)
	create  func(ctx context.Context, in models.ConnectionInsert) (models.ConnectionRow, error)
	update  func(ctx context.Context, sourceID, id string, in models.ConnectionUpdate) (models.ConnectionRow, error)
	remove  func(ctx context.Context, sourceID, id string) error
}

var _ repositories.ConnectionRepository = (*mockConnectionRepository)(nil)

func (m *mockConnectionRepository) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockConnectionRepository) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockConnectionRepository) ListBySource(ctx context.Context, sourceID string) ([]models.ConnectionRow, error) {
	m.record("ListBySource")
	if m.list == nil {
		return []models.ConnectionRow{}, nil
	}
	return m.list(ctx, sourceID)
}

func (m *mockConnectionRepository) Create(ctx context.Context, in models.ConnectionInsert) (models.ConnectionRow, error) {
	m.record("Create")
	if m.create != nil {
		return m.create(ctx, in)
	}
	row := connectionRow("c-new", in.SourceID, in.TargetID)
	row.ConnectionType = string(in.ConnectionType)
	row.Strength = in.Strength
	return row, nil
}

func (m *mockConnectionRepository) Update(ctx context.Context, sourceID, id string, in models.ConnectionUpdate) (models.ConnectionRow, error) {
	m.record("Update")
	m.mu.Lock()
	m.updates = append(m.updates, in)
	m.mu.Unlock()
	if m.update != nil {
		return m.update(ctx, sourceID, id, in)
	}
	row := connectionRow(id, sourceID, "p-2")
	if in.ConnectionType != nil {
		row.ConnectionType = string(*in.ConnectionType)
	}
	if in.Strength != nil {
		row.Strength = *in.Strength
	}
	return row, nil
}

func (m *mockConnectionRepository) Delete(ctx context.Context, sourceID, id string) error {
	m.record("Delete")
	if m.remove == nil {
		return nil
	}
	return m.remove(ctx, sourceID, id)
}

func (m *mockConnectionRepository) FindConnections(ctx context.Context, startID string, maxDepth int) ([]models.ConnectionRow, error) {
	m.record("FindConnections")
	return []models.ConnectionRow{}, nil
}

// gatedList returns list funcs whose nth call blocks until gates[n] is closed.
// entered[n] is closed once call n has started.
type gatedList struct {
	mu      sync.Mutex
	n       int
	gates   []chan struct{}
	entered []chan struct{}
	results [][]models.ProfileRow
}

func newGatedList(results ...[]models.ProfileRow) *gatedList {
	g := &gatedList{results: results}
	for range results {
		g.gates = append(g.gates, make(chan struct{}))
		g.entered = append(g.entered, make(chan struct{}))
	}
	return g
}

func (g *gatedList) list(ctx context.Context, _ string) ([]models.ProfileRow, error) {
	g.mu.Lock()
	i := g.n
	g.n++
	g.mu.Unlock()
	if i >= len(g.results) {
		return g.results[len(g.results)-1], nil
	}
	close(g.entered[i])
	select {
	case <-g.gates[i]:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.results[i], nil
}
