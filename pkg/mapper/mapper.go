// Package mapper converts between storage rows and domain models.
// All functions are pure: no I/O, no shared state, identical output for
// identical input.
package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/models"
)

// timestampLayouts are tried in order. PostgreSQL to_jsonb and PostgREST emit
// the first; the text form is what a raw ::text cast produces.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
}

// ParseTimestamp parses a backend timestamp string. Zone-less values are UTC.
func ParseTimestamp(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is empty", apperrors.ErrInvalidTimestamp, field)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s=%q", apperrors.ErrInvalidTimestamp, field, value)
}

// Profile maps a profiles row, including nested collections, to a domain Profile.
func Profile(row models.ProfileRow) (models.Profile, error) {
	if row.ID == "" {
		return models.Profile{}, fmt.Errorf("%w: profile id is empty", apperrors.ErrMalformedRow)
	}
	if strings.TrimSpace(row.FullName) == "" {
		return models.Profile{}, fmt.Errorf("%w: profile %s has empty full_name", apperrors.ErrMalformedRow, row.ID)
	}

	createdAt, err := ParseTimestamp("created_at", row.CreatedAt)
	if err != nil {
		return models.Profile{}, fmt.Errorf("profile %s: %w", row.ID, err)
	}
	updatedAt, err := ParseTimestamp("updated_at", row.UpdatedAt)
	if err != nil {
		return models.Profile{}, fmt.Errorf("profile %s: %w", row.ID, err)
	}

	metadata, err := models.MetadataFromMap(row.Metadata)
	if err != nil {
		return models.Profile{}, fmt.Errorf("profile %s: %w", row.ID, err)
	}

	socials := make([]models.SocialProfile, 0, len(row.SocialProfiles))
	for _, sr := range row.SocialProfiles {
		sp, err := SocialProfile(sr)
		if err != nil {
			return models.Profile{}, fmt.Errorf("profile %s: %w", row.ID, err)
		}
		socials = append(socials, sp)
	}

	connections := make([]models.Connection, 0, len(row.Connections))
	for _, cr := range row.Connections {
		c, err := Connection(cr)
		if err != nil {
			return models.Profile{}, fmt.Errorf("profile %s: %w", row.ID, err)
		}
		connections = append(connections, c)
	}

	return models.Profile{
		ID:             row.ID,
		FullName:       row.FullName,
		Email:          cloneString(row.Email),
		AvatarURL:      cloneString(row.AvatarURL),
		Metadata:       metadata,
		SocialProfiles: socials,
		Connections:    connections,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Profiles maps rows in order. Either every row maps or none are returned.
func Profiles(rows []models.ProfileRow) ([]models.Profile, error) {
	out := make([]models.Profile, 0, len(rows))
	for _, r := range rows {
		p, err := Profile(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SocialProfile maps a social_profiles row.
func SocialProfile(row models.SocialProfileRow) (models.SocialProfile, error) {
	if row.ID == "" {
		return models.SocialProfile{}, fmt.Errorf("%w: social profile id is empty", apperrors.ErrMalformedRow)
	}
	createdAt, err := ParseTimestamp("created_at", row.CreatedAt)
	if err != nil {
		return models.SocialProfile{}, fmt.Errorf("social profile %s: %w", row.ID, err)
	}
	updatedAt, err := ParseTimestamp("updated_at", row.UpdatedAt)
	if err != nil {
		return models.SocialProfile{}, fmt.Errorf("social profile %s: %w", row.ID, err)
	}
	return models.SocialProfile{
		ID:        row.ID,
		ProfileID: row.ProfileID,
		Platform:  row.Platform,
		Username:  row.Username,
		URL:       row.URL,
		Metadata:  row.Metadata,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// Connection maps a connections row.
func Connection(row models.ConnectionRow) (models.Connection, error) {
	if row.ID == "" || row.SourceID == "" || row.TargetID == "" {
		return models.Connection{}, fmt.Errorf("%w: connection %q missing id or endpoint", apperrors.ErrMalformedRow, row.ID)
	}
	ct := models.ConnectionType(row.ConnectionType)
	if !ct.IsValid() {
		return models.Connection{}, fmt.Errorf("%w: connection %s has type %q", apperrors.ErrMalformedRow, row.ID, row.ConnectionType)
	}
	createdAt, err := ParseTimestamp("created_at", row.CreatedAt)
	if err != nil {
		return models.Connection{}, fmt.Errorf("connection %s: %w", row.ID, err)
	}
	return models.Connection{
		ID:        row.ID,
		SourceID:  row.SourceID,
		TargetID:  row.TargetID,
		Type:      ct,
		Strength:  row.Strength,
		Metadata:  row.Metadata,
		CreatedAt: createdAt,
	}, nil
}

// Connections maps connection rows in order.
func Connections(rows []models.ConnectionRow) ([]models.Connection, error) {
	out := make([]models.Connection, 0, len(rows))
	for _, r := range rows {
		c, err := Connection(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ProfileInsert converts a validated draft into its storage write shape.
func ProfileInsert(d models.ProfileDraft) models.ProfileInsert {
	return models.ProfileInsert{
		FullName:  d.FullName,
		Email:     cloneString(d.Email),
		AvatarURL: cloneString(d.AvatarURL),
		Metadata:  d.Metadata.ToMap(),
	}
}

// ProfileUpdate converts a validated patch into its storage write shape.
func ProfileUpdate(p models.ProfilePatch) models.ProfileUpdate {
	return models.ProfileUpdate{
		FullName:  cloneString(p.FullName),
		Email:     cloneString(p.Email),
		AvatarURL: cloneString(p.AvatarURL),
		Metadata:  p.Metadata.ToMap(),
	}
}

// ConnectionInsert builds a connection with the default type and strength.
func ConnectionInsert(sourceID, targetID string) models.ConnectionInsert {
	return models.ConnectionInsert{
		SourceID:       sourceID,
		TargetID:       targetID,
		ConnectionType: models.DefaultConnectionType,
		Strength:       models.DefaultConnectionStrength,
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
