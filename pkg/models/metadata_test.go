package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shambu-network/shambu/pkg/apperrors"
)

func TestMetadataFromMap_SplitsKnownKeys(t *testing.T) {
	md, err := MetadataFromMap(map[string]any{
		"title":    "Engineer",
		"company":  "Analytical Engines Ltd",
		"location": "London",
	})
	require.NoError(t, err)
	require.NotNil(t, md)

	assert.Equal(t, "Engineer", md.Title)
	assert.Equal(t, "Analytical Engines Ltd", md.Company)
	assert.Equal(t, map[string]any{"location": "London"}, md.Extra)
}

func TestMetadataFromMap_Nil(t *testing.T) {
	md, err := MetadataFromMap(nil)
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestMetadataFromMap_NonStringTitle(t *testing.T) {
	_, err := MetadataFromMap(map[string]any{"title": 42.0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedRow))
}

func TestProfileMetadata_JSONFlattensExtra(t *testing.T) {
	md := ProfileMetadata{
		Title: "Mathematician",
		Extra: map[string]any{"born": "1815"},
	}

	data, err := json.Marshal(md)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Mathematician","born":"1815"}`, string(data))

	var decoded ProfileMetadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, md, decoded)
}

func TestProfile_TitleAndCompany(t *testing.T) {
	p := Profile{FullName: "Ada Lovelace"}
	assert.Equal(t, "", p.Title())
	assert.Equal(t, "", p.Company())

	p.Metadata = &ProfileMetadata{Title: "Countess", Company: "Babbage & Co"}
	assert.Equal(t, "Countess", p.Title())
	assert.Equal(t, "Babbage & Co", p.Company())
}
