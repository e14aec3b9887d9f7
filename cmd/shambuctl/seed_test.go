package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/repositories"
)

const testTimestamp = "2024-05-01T09:30:00Z"

const seedYAML = `
profiles:
  - key: ada
    full_name: Ada Lovelace
    email: ada@example.com
    metadata:
      title: Analyst
      company: Analytical Engines
    social_profiles:
      - platform: github
        username: ada
        url: https://github.com/ada
  - key: babbage
    full_name: Charles Babbage
connections:
  - source: ada
    target: babbage
    type: academic
    strength: 1.4
  - source: babbage
    target: ada
`

type fakeProfiles struct {
	repositories.ProfileRepository
	created []models.ProfileInsert
	failOn  string
}

func (f *fakeProfiles) Create(ctx context.Context, in models.ProfileInsert) (models.ProfileRow, error) {
	if in.FullName == f.failOn {
		return models.ProfileRow{}, errors.New("backend down")
	}
	f.created = append(f.created, in)
	return models.ProfileRow{
		ID:        fmt.Sprintf("p-%d", len(f.created)),
		FullName:  in.FullName,
		CreatedAt: testTimestamp,
		UpdatedAt: testTimestamp,
	}, nil
}

type fakeSocials struct {
	repositories.SocialProfileRepository
	created []models.SocialProfileInsert
}

func (f *fakeSocials) Create(ctx context.Context, in models.SocialProfileInsert) (models.SocialProfileRow, error) {
	f.created = append(f.created, in)
	return models.SocialProfileRow{ID: "s-1", ProfileID: in.ProfileID, CreatedAt: testTimestamp, UpdatedAt: testTimestamp}, nil
}

type fakeConnections struct {
	repositories.ConnectionRepository
	created []models.ConnectionInsert
}

func (f *fakeConnections) Create(ctx context.Context, in models.ConnectionInsert) (models.ConnectionRow, error) {
	f.created = append(f.created, in)
	return models.ConnectionRow{ID: "c-1", SourceID: in.SourceID, TargetID: in.TargetID, CreatedAt: testTimestamp}, nil
}

func newTestSeeder() (*seeder, *fakeProfiles, *fakeSocials, *fakeConnections) {
	p, s, c := &fakeProfiles{}, &fakeSocials{}, &fakeConnections{}
	return &seeder{profiles: p, socials: s, connections: c, logger: zap.NewNop()}, p, s, c
}

func TestSeeder_Run(t *testing.T) {
	f, err := parseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)

	s, profiles, socials, conns := newTestSeeder()
	sum, err := s.run(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, importSummary{Profiles: 2, SocialProfiles: 1, Connections: 2}, sum)

	require.Len(t, profiles.created, 2)
	assert.Equal(t, "Ada Lovelace", profiles.created[0].FullName)
	assert.Equal(t, map[string]any{"title": "Analyst", "company": "Analytical Engines"}, profiles.created[0].Metadata)
	assert.Nil(t, profiles.created[1].Email)

	require.Len(t, socials.created, 1)
	assert.Equal(t, "p-1", socials.created[0].ProfileID)

	require.Len(t, conns.created, 2)
	assert.Equal(t, models.ConnectionInsert{
		SourceID: "p-1", TargetID: "p-2", ConnectionType: models.ConnectionAcademic, Strength: 1,
	}, conns.created[0])
	assert.Equal(t, models.DefaultConnectionType, conns.created[1].ConnectionType)
	assert.Equal(t, models.DefaultConnectionStrength, conns.created[1].Strength)
}

func TestSeeder_StopsAtFirstFailure(t *testing.T) {
	f, err := parseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)

	s, profiles, _, conns := newTestSeeder()
	profiles.failOn = "Charles Babbage"

	sum, err := s.run(context.Background(), f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "babbage")
	assert.Equal(t, 1, sum.Profiles)
	assert.Empty(t, conns.created)
}

func TestSeedFile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
		is      error
	}{
		{
			name:    "missing key",
			yaml:    "profiles:\n  - full_name: Ada\n",
			wantErr: "key is required",
		},
		{
			name:    "duplicate key",
			yaml:    "profiles:\n  - {key: a, full_name: Ada}\n  - {key: a, full_name: Ada Again}\n",
			wantErr: "duplicate key",
		},
		{
			name: "blank name",
			yaml: "profiles:\n  - {key: a, full_name: '  '}\n",
			is:   apperrors.ErrInvalidProfile,
		},
		{
			name: "bad email",
			yaml: "profiles:\n  - {key: a, full_name: Ada, email: nope}\n",
			is:   apperrors.ErrInvalidProfile,
		},
		{
			name:    "unknown connection endpoint",
			yaml:    "profiles:\n  - {key: a, full_name: Ada}\nconnections:\n  - {source: a, target: b}\n",
			wantErr: "unknown profile key",
		},
		{
			name:    "self connection",
			yaml:    "profiles:\n  - {key: a, full_name: Ada}\nconnections:\n  - {source: a, target: a}\n",
			wantErr: "cannot connect to itself",
		},
		{
			name: "bad connection type",
			yaml: "profiles:\n  - {key: a, full_name: Ada}\n  - {key: b, full_name: Bob}\nconnections:\n  - {source: a, target: b, type: ENEMY}\n",
			is:   apperrors.ErrInvalidConnectionType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseSeed(strings.NewReader(tt.yaml))
			require.NoError(t, err)
			err = f.validate()
			require.Error(t, err)
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestParseSeed_RejectsUnknownFields(t *testing.T) {
	_, err := parseSeed(strings.NewReader("profiles:\n  - {key: a, name: Ada}\n"))
	assert.Error(t, err)
}

func TestParseSeed_Empty(t *testing.T) {
	f, err := parseSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Profiles)
}

func TestPrintProfiles(t *testing.T) {
	md := &models.ProfileMetadata{Title: "Analyst", Company: "Analytical Engines"}
	var buf bytes.Buffer
	require.NoError(t, printProfiles(&buf, []models.Profile{
		{ID: "p-1", FullName: "Ada Lovelace", Metadata: md, Connections: []models.Connection{{ID: "c-1"}}},
	}))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "Analytical Engines")
	assert.Contains(t, out, "1 profile(s)")
}
