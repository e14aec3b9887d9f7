// Package realtime delivers backend row-change notifications to in-process
// subscribers. A Source turns a backend feed into Events, the Hub fans them out
// and each Subscription filters by the scopes it registered.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"

	// OpResync is emitted after a source reconnects. Changes may have been
	// missed while it was down, so every subscriber should refetch.
	OpResync Op = "RESYNC"
)

// Tables watched by the views.
const (
	TableProfiles       = "profiles"
	TableSocialProfiles = "social_profiles"
	TableConnections    = "connections"
)

// Event is a single row change. ProfileID is the profile the row belongs to:
// the row id for profiles, profile_id for social_profiles and source_id for
// connections.
type Event struct {
	Table      string    `json:"table"`
	Op         Op        `json:"op"`
	RowID      string    `json:"id,omitempty"`
	ProfileID  string    `json:"profile_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Scope selects events for one table, optionally narrowed to a single
// profile. RowID matches either the row id or the owning profile id.
type Scope struct {
	Table string
	RowID string
}

// Matches reports whether e falls within s. Resync events match every scope.
func (s Scope) Matches(e Event) bool {
	if e.Op == OpResync {
		return true
	}
	if s.Table != e.Table {
		return false
	}
	if s.RowID == "" {
		return true
	}
	return s.RowID == e.RowID || s.RowID == e.ProfileID
}

// ParseNotification decodes the JSON payload written by the shambu_changes
// trigger.
func ParseNotification(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode change payload: %w", err)
	}
	if e.Table == "" || e.Op == "" {
		return Event{}, fmt.Errorf("change payload missing table or op: %s", payload)
	}
	e.ReceivedAt = time.Now()
	return e, nil
}

// profileIDFor extracts the owning profile id from a changed record.
func profileIDFor(table string, record map[string]any) string {
	var key string
	switch table {
	case TableProfiles:
		key = "id"
	case TableSocialProfiles:
		key = "profile_id"
	case TableConnections:
		key = "source_id"
	default:
		return ""
	}
	s, _ := record[key].(string)
	return s
}
