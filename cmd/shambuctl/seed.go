package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/shambu-network/shambu/pkg/mapper"
	"github.com/shambu-network/shambu/pkg/models"
	"github.com/shambu-network/shambu/pkg/repositories"
)

// seedFile is the import format. Profiles are referenced by key from
// connections; keys never reach the backend.
//
//	profiles:
//	  - key: ada
//	    full_name: Ada Lovelace
//	    metadata: {title: Analyst, company: Analytical Engines}
//	    social_profiles:
//	      - {platform: github, username: ada, url: https://github.com/ada}
//	connections:
//	  - {source: ada, target: babbage, type: ACADEMIC, strength: 0.8}
type seedFile struct {
	Profiles    []seedProfile    `yaml:"profiles"`
	Connections []seedConnection `yaml:"connections"`
}

type seedProfile struct {
	Key            string         `yaml:"key"`
	FullName       string         `yaml:"full_name"`
	Email          string         `yaml:"email"`
	AvatarURL      string         `yaml:"avatar_url"`
	Metadata       map[string]any `yaml:"metadata"`
	SocialProfiles []seedSocial   `yaml:"social_profiles"`
}

type seedSocial struct {
	Platform string `yaml:"platform"`
	Username string `yaml:"username"`
	URL      string `yaml:"url"`
}

type seedConnection struct {
	Source   string   `yaml:"source"`
	Target   string   `yaml:"target"`
	Type     string   `yaml:"type"`
	Strength *float64 `yaml:"strength"`
}

// importSummary counts the rows written.
type importSummary struct {
	Profiles       int
	SocialProfiles int
	Connections    int
}

type seeder struct {
	profiles    repositories.ProfileRepository
	socials     repositories.SocialProfileRepository
	connections repositories.ConnectionRepository
	logger      *zap.Logger
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// validate checks the whole file before anything is written.
func (f *seedFile) validate() error {
	keys := make(map[string]bool, len(f.Profiles))
	for i, p := range f.Profiles {
		if strings.TrimSpace(p.Key) == "" {
			return fmt.Errorf("profiles[%d]: key is required", i)
		}
		if keys[p.Key] {
			return fmt.Errorf("profiles[%d]: duplicate key %q", i, p.Key)
		}
		keys[p.Key] = true
		draft, err := p.draft()
		if err != nil {
			return fmt.Errorf("profiles[%d] (%s): %w", i, p.Key, err)
		}
		if err := draft.Validate(); err != nil {
			return fmt.Errorf("profiles[%d] (%s): %w", i, p.Key, err)
		}
	}
	for i, c := range f.Connections {
		if !keys[c.Source] || !keys[c.Target] {
			return fmt.Errorf("connections[%d]: unknown profile key %q -> %q", i, c.Source, c.Target)
		}
		if c.Source == c.Target {
			return fmt.Errorf("connections[%d]: profile %q cannot connect to itself", i, c.Source)
		}
		if _, err := c.insert("", ""); err != nil {
			return fmt.Errorf("connections[%d]: %w", i, err)
		}
	}
	return nil
}

func (p seedProfile) draft() (models.ProfileDraft, error) {
	d := models.ProfileDraft{FullName: p.FullName}
	if p.Email != "" {
		d.Email = &p.Email
	}
	if p.AvatarURL != "" {
		d.AvatarURL = &p.AvatarURL
	}
	if p.Metadata != nil {
		md, err := models.MetadataFromMap(p.Metadata)
		if err != nil {
			return d, err
		}
		d.Metadata = md
	}
	return d, nil
}

func (c seedConnection) insert(sourceID, targetID string) (models.ConnectionInsert, error) {
	in := mapper.ConnectionInsert(sourceID, targetID)
	if c.Type != "" {
		t, err := models.ParseConnectionType(c.Type)
		if err != nil {
			return in, err
		}
		in.ConnectionType = t
	}
	if c.Strength != nil {
		s, err := models.ClampStrength(*c.Strength)
		if err != nil {
			return in, err
		}
		in.Strength = s
	}
	return in, nil
}

// run writes profiles, then their social profiles, then connections. It
// stops at the first failure; rows already written are left in place.
func (s *seeder) run(ctx context.Context, f *seedFile) (importSummary, error) {
	var sum importSummary
	if err := f.validate(); err != nil {
		return sum, err
	}

	ids := make(map[string]string, len(f.Profiles))
	for _, p := range f.Profiles {
		draft, _ := p.draft()
		if err := draft.Validate(); err != nil {
			return sum, err
		}
		row, err := s.profiles.Create(ctx, mapper.ProfileInsert(draft))
		if err != nil {
			return sum, fmt.Errorf("failed to create profile %s: %w", p.Key, err)
		}
		ids[p.Key] = row.ID
		sum.Profiles++
		s.logger.Debug("Imported profile", zap.String("key", p.Key), zap.String("id", row.ID))

		for _, sp := range p.SocialProfiles {
			if _, err := s.socials.Create(ctx, models.SocialProfileInsert{
				ProfileID: row.ID,
				Platform:  sp.Platform,
				Username:  sp.Username,
				URL:       sp.URL,
			}); err != nil {
				return sum, fmt.Errorf("failed to create %s profile for %s: %w", sp.Platform, p.Key, err)
			}
			sum.SocialProfiles++
		}
	}

	for _, c := range f.Connections {
		in, _ := c.insert(ids[c.Source], ids[c.Target])
		if _, err := s.connections.Create(ctx, in); err != nil {
			return sum, fmt.Errorf("failed to connect %s -> %s: %w", c.Source, c.Target, err)
		}
		sum.Connections++
	}
	return sum, nil
}
