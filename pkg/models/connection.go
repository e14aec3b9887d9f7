package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shambu-network/shambu/pkg/apperrors"
)

// ConnectionType classifies the relationship behind a Connection.
type ConnectionType string

const (
	ConnectionProfessional ConnectionType = "PROFESSIONAL"
	ConnectionSocial       ConnectionType = "SOCIAL"
	ConnectionAcademic     ConnectionType = "ACADEMIC"
	ConnectionFamily       ConnectionType = "FAMILY"
	ConnectionOther        ConnectionType = "OTHER"
)

// Defaults applied to connections created from the connection manager.
const (
	DefaultConnectionType     = ConnectionProfessional
	DefaultConnectionStrength = 0.5
)

// ValidConnectionTypes contains all valid connection type values.
var ValidConnectionTypes = []ConnectionType{
	ConnectionProfessional,
	ConnectionSocial,
	ConnectionAcademic,
	ConnectionFamily,
	ConnectionOther,
}

// IsValid reports whether t is one of ValidConnectionTypes.
func (t ConnectionType) IsValid() bool {
	for _, v := range ValidConnectionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseConnectionType parses a connection type case-insensitively.
func ParseConnectionType(s string) (ConnectionType, error) {
	t := ConnectionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidConnectionType, s)
	}
	return t, nil
}

// Connection is a directed, typed, weighted edge between two profiles.
// Only Type and Strength change after creation.
type Connection struct {
	ID        string         `json:"id"`
	SourceID  string         `json:"sourceId"`
	TargetID  string         `json:"targetId"`
	Type      ConnectionType `json:"type"`
	Strength  float64        `json:"strength"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// StrengthPercent returns the strength as a rounded percentage in [0, 100].
func (c *Connection) StrengthPercent() int {
	return StrengthPercent(c.Strength)
}

// StrengthPercent converts a unit-interval strength to a rounded percentage.
// Out-of-range values are clamped so a surface never shows more than 100.
func StrengthPercent(strength float64) int {
	if math.IsNaN(strength) || strength <= 0 {
		return 0
	}
	if strength >= 1 {
		return 100
	}
	return int(math.Round(strength * 100))
}

// ClampStrength clamps s to [0, 1]. NaN cannot be clamped and is rejected.
func ClampStrength(s float64) (float64, error) {
	if math.IsNaN(s) {
		return 0, fmt.Errorf("%w: NaN", apperrors.ErrInvalidStrength)
	}
	return math.Max(0, math.Min(1, s)), nil
}
