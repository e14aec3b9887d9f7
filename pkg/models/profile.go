package models

import "time"

// Profile is a person or organization node in the network graph.
type Profile struct {
	ID             string           `json:"id"`
	FullName       string           `json:"fullName"`
	Email          *string          `json:"email,omitempty"`
	AvatarURL      *string          `json:"avatarUrl,omitempty"`
	Metadata       *ProfileMetadata `json:"metadata,omitempty"`
	SocialProfiles []SocialProfile  `json:"socialProfiles"`
	Connections    []Connection     `json:"connections"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Title returns the metadata title, or "" when none is set.
func (p *Profile) Title() string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata.Title
}

// Company returns the metadata company, or "" when none is set.
func (p *Profile) Company() string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata.Company
}

// SocialProfile is an account on an external platform owned by a Profile.
type SocialProfile struct {
	ID        string         `json:"id"`
	ProfileID string         `json:"profileId"`
	Platform  string         `json:"platform"`
	Username  string         `json:"username"`
	URL       string         `json:"url"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
