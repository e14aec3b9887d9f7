package models

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/shambu-network/shambu/pkg/apperrors"
)

// Reserved metadata keys read by the application.
const (
	MetadataKeyTitle   = "title"
	MetadataKeyCompany = "company"
)

// ProfileMetadata holds the typed title and company plus any other keys
// stored alongside them.
type ProfileMetadata struct {
	Title   string
	Company string
	Extra   map[string]any
}

// MetadataFromMap splits a storage metadata object into known keys and extras.
// A nil map yields nil. Non-string title or company values are malformed.
func MetadataFromMap(m map[string]any) (*ProfileMetadata, error) {
	if m == nil {
		return nil, nil
	}
	md := &ProfileMetadata{}
	for k, v := range m {
		switch k {
		case MetadataKeyTitle, MetadataKeyCompany:
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: metadata.%s must be a string, got %T", apperrors.ErrMalformedRow, k, v)
			}
			if k == MetadataKeyTitle {
				md.Title = s
			} else {
				md.Company = s
			}
		default:
			if md.Extra == nil {
				md.Extra = make(map[string]any)
			}
			md.Extra[k] = v
		}
	}
	return md, nil
}

// ToMap returns the storage representation. Empty title or company are omitted.
func (m *ProfileMetadata) ToMap() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m.Extra)+2)
	maps.Copy(out, m.Extra)
	if m.Title != "" {
		out[MetadataKeyTitle] = m.Title
	}
	if m.Company != "" {
		out[MetadataKeyCompany] = m.Company
	}
	return out
}

// MarshalJSON flattens Extra next to title and company.
func (m ProfileMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

// UnmarshalJSON accepts a flat object and splits it like MetadataFromMap.
func (m *ProfileMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	md, err := MetadataFromMap(raw)
	if err != nil {
		return err
	}
	if md == nil {
		*m = ProfileMetadata{}
		return nil
	}
	*m = *md
	return nil
}
