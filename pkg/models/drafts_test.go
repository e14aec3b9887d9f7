package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shambu-network/shambu/pkg/apperrors"
)

func strPtr(s string) *string { return &s }

func TestProfileDraft_Validate(t *testing.T) {
	d := ProfileDraft{
		FullName:  "  Alan Turing ",
		Email:     strPtr(""),
		AvatarURL: strPtr("https://example.com/alan.png"),
	}
	require.NoError(t, d.Validate())

	assert.Equal(t, "Alan Turing", d.FullName)
	assert.Nil(t, d.Email, "blank email should be normalized away")
	require.NotNil(t, d.AvatarURL)
}

func TestProfileDraft_Validate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		draft ProfileDraft
	}{
		{"blank name", ProfileDraft{FullName: "   "}},
		{"bad email", ProfileDraft{FullName: "Ada", Email: strPtr("not-an-email")}},
		{"bad avatar", ProfileDraft{FullName: "Ada", AvatarURL: strPtr("nope")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidProfile))
		})
	}
}

func TestProfilePatch_Validate(t *testing.T) {
	p := ProfilePatch{Email: strPtr("ada@example.com")}
	require.NoError(t, p.Validate())

	blank := ProfilePatch{FullName: strPtr(" ")}
	err := blank.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidProfile))
}

func TestProfileUpdate_IsEmpty(t *testing.T) {
	assert.True(t, (&ProfileUpdate{}).IsEmpty())
	assert.False(t, (&ProfileUpdate{FullName: strPtr("x")}).IsEmpty())
}
