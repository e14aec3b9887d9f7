package models

// ProfileRow is a profiles row as returned by the read query, with nested
// collections embedded. Timestamps are the backend's ISO 8601 strings.
type ProfileRow struct {
	ID             string             `json:"id"`
	FullName       string             `json:"full_name"`
	Email          *string            `json:"email"`
	AvatarURL      *string            `json:"avatar_url"`
	Metadata       map[string]any     `json:"metadata"`
	CreatedAt      string             `json:"created_at"`
	UpdatedAt      string             `json:"updated_at"`
	SocialProfiles []SocialProfileRow `json:"social_profiles,omitempty"`
	Connections    []ConnectionRow    `json:"connections,omitempty"`
}

// SocialProfileRow is a social_profiles row.
type SocialProfileRow struct {
	ID        string         `json:"id"`
	ProfileID string         `json:"profile_id"`
	Platform  string         `json:"platform"`
	Username  string         `json:"username"`
	URL       string         `json:"url"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// ConnectionRow is a connections row.
type ConnectionRow struct {
	ID             string         `json:"id"`
	SourceID       string         `json:"source_id"`
	TargetID       string         `json:"target_id"`
	ConnectionType string         `json:"connection_type"`
	Strength       float64        `json:"strength"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      string         `json:"created_at"`
}

// ProfileInsert is the write shape for a new profiles row.
type ProfileInsert struct {
	FullName  string         `json:"full_name"`
	Email     *string        `json:"email,omitempty"`
	AvatarURL *string        `json:"avatar_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ProfileUpdate carries only the columns being changed.
type ProfileUpdate struct {
	FullName  *string        `json:"full_name,omitempty"`
	Email     *string        `json:"email,omitempty"`
	AvatarURL *string        `json:"avatar_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u *ProfileUpdate) IsEmpty() bool {
	return u.FullName == nil && u.Email == nil && u.AvatarURL == nil && u.Metadata == nil
}

// SocialProfileInsert is the write shape for a new social_profiles row.
type SocialProfileInsert struct {
	ProfileID string         `json:"profile_id"`
	Platform  string         `json:"platform"`
	Username  string         `json:"username"`
	URL       string         `json:"url"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ConnectionInsert is the write shape for a new connections row.
type ConnectionInsert struct {
	SourceID       string         `json:"source_id"`
	TargetID       string         `json:"target_id"`
	ConnectionType ConnectionType `json:"connection_type"`
	Strength       float64        `json:"strength"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ConnectionUpdate patches the two mutable connection columns.
type ConnectionUpdate struct {
	ConnectionType *ConnectionType `json:"connection_type,omitempty"`
	Strength       *float64        `json:"strength,omitempty"`
}
