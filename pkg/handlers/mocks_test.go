package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/repositories"
)

const testTimestamp = "2024-05-01T09:30:00Z"

// memStore is an in-memory backend implementing the profile and connection
// repositories with the same ordering rules as PostgreSQL.
type memStore struct {
	mu                sync.Mutex
	seq               int
	profiles          map[string]models.ProfileRow
	connections       []models.ConnectionRow
	connectionUpdates int
	failReads         error
	failWrites        error
}

func newMemStore() *memStore {
	return &memStore{profiles: make(map[string]models.ProfileRow)}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) addProfile(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("p")
	s.profiles[id] = models.ProfileRow{ID: id, FullName: name, CreatedAt: testTimestamp, UpdatedAt: testTimestamp}
	return id
}

func (s *memStore) withNested(p models.ProfileRow) models.ProfileRow {
	p.SocialProfiles = []models.SocialProfileRow{}
	p.Connections = []models.ConnectionRow{}
	for _, c := range s.connections {
		if c.SourceID == p.ID {
			p.Connections = append(p.Connections, c)
		}
	}
	return p
}

func (s *memStore) sorted(match func(models.ProfileRow) bool) []models.ProfileRow {
	out := []models.ProfileRow{}
	for _, p := range s.profiles {
		if match(p) {
			out = append(out, s.withNested(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memStore) List(ctx context.Context, query string) ([]models.ProfileRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	q := strings.ToLower(query)
	return s.sorted(func(p models.ProfileRow) bool { return strings.Contains(strings.ToLower(p.FullName), q) }), nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (models.ProfileRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return models.ProfileRow{}, apperrors.ErrNotFound
	}
	return s.withNested(p), nil
}

func (s *memStore) Search(ctx context.Context, query, excludeID string, limit int) ([]models.ProfileRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	out := s.sorted(func(p models.ProfileRow) bool {
		return p.ID != excludeID && strings.Contains(strings.ToLower(p.FullName), q)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Create(ctx context.Context, in models.ProfileInsert) (models.ProfileRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return models.ProfileRow{}, s.failWrites
	}
	row := models.ProfileRow{
		ID: s.nextID("p"), FullName: in.FullName, Email: in.Email, AvatarURL: in.AvatarURL,
		Metadata: in.Metadata, CreatedAt: testTimestamp, UpdatedAt: testTimestamp,
	}
	s.profiles[row.ID] = row
	return row, nil
}

func (s *memStore) Update(ctx context.Context, id string, in models.ProfileUpdate) (models.ProfileRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return models.ProfileRow{}, apperrors.ErrNotFound
	}
	if in.FullName != nil {
		p.FullName = *in.FullName
	}
	if in.Email != nil {
		p.Email = in.Email
	}
	s.profiles[id] = p
	return p, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	if _, ok := s.profiles[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.profiles, id)
	kept := s.connections[:0]
	for _, c := range s.connections {
		if c.SourceID != id && c.TargetID != id {
			kept = append(kept, c)
		}
	}
	s.connections = kept
	return nil
}

// connStore adapts memStore to ConnectionRepository; the method sets of the
// two interfaces overlap.
type connStore struct{ *memStore }

func (s connStore) ListBySource(ctx context.Context, sourceID string) ([]models.ConnectionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	out := []models.ConnectionRow{}
	for _, c := range s.connections {
		if c.SourceID == sourceID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s connStore) Create(ctx context.Context, in models.ConnectionInsert) (models.ConnectionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[in.TargetID]; !ok {
		return models.ConnectionRow{}, apperrors.ErrNotFound
	}
	row := models.ConnectionRow{
		ID: s.nextID("c"), SourceID: in.SourceID, TargetID: in.TargetID,
		ConnectionType: string(in.ConnectionType), Strength: in.Strength, CreatedAt: testTimestamp,
	}
	s.connections = append(s.connections, row)
	return row, nil
}

func (s connStore) Update(ctx context.Context, sourceID, id string, in models.ConnectionUpdate) (models.ConnectionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionUpdates++
	if s.failWrites != nil {
		return models.ConnectionRow{}, s.failWrites
	}
	for i, c := range s.connections {
		if c.ID != id || c.SourceID != sourceID {
			continue
		}
		if in.ConnectionType != nil {
			c.ConnectionType = string(*in.ConnectionType)
		}
		if in.Strength != nil {
			c.Strength = *in.Strength
		}
		s.connections[i] = c
		return c, nil
	}
	return models.ConnectionRow{}, apperrors.ErrNotFound
}

func (s connStore) Delete(ctx context.Context, sourceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	for i, c := range s.connections {
		if c.ID == id && c.SourceID == sourceID {
			s.connections = append(s.connections[:i], s.connections[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (s connStore) FindConnections(ctx context.Context, startID string, maxDepth int) ([]models.ConnectionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frontier := map[string]bool{startID: true}
	seen := map[string]bool{}
	var out []models.ConnectionRow
	for depth := 0; depth < maxDepth; depth++ {
		next := map[string]bool{}
		for _, c := range s.connections {
			if frontier[c.SourceID] && !seen[c.ID] {
				seen[c.ID] = true
				out = append(out, c)
				next[c.TargetID] = true
			}
		}
		frontier = next
	}
	return out, nil
}

var (
	_ repositories.ProfileRepository    = (*memStore)(nil)
	_ repositories.ConnectionRepository = connStore{}
)
