package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shambu-network/shambu/pkg/apperrors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ProfileDraft is the user-supplied input for a new profile.
type ProfileDraft struct {
	FullName  string           `json:"fullName" validate:"required"`
	Email     *string          `json:"email,omitempty" validate:"omitempty,email"`
	AvatarURL *string          `json:"avatarUrl,omitempty" validate:"omitempty,url"`
	Metadata  *ProfileMetadata `json:"metadata,omitempty"`
}

// Normalize trims fields and turns blank optional strings into nil.
func (d *ProfileDraft) Normalize() {
	d.FullName = strings.TrimSpace(d.FullName)
	d.Email = blankToNil(d.Email)
	d.AvatarURL = blankToNil(d.AvatarURL)
}

// Validate normalizes and checks the draft.
func (d *ProfileDraft) Validate() error {
	d.Normalize()
	return validationError(validate.Struct(d))
}

// ProfilePatch is a partial update. Nil fields are left unchanged.
type ProfilePatch struct {
	FullName  *string          `json:"fullName,omitempty" validate:"omitempty,min=1"`
	Email     *string          `json:"email,omitempty" validate:"omitempty,email"`
	AvatarURL *string          `json:"avatarUrl,omitempty" validate:"omitempty,url"`
	Metadata  *ProfileMetadata `json:"metadata,omitempty"`
}

// Validate normalizes and checks the patch. A present full name must not be blank.
func (p *ProfilePatch) Validate() error {
	if p.FullName != nil {
		trimmed := strings.TrimSpace(*p.FullName)
		if trimmed == "" {
			return fmt.Errorf("%w: fullName is required", apperrors.ErrInvalidProfile)
		}
		p.FullName = &trimmed
	}
	p.Email = blankToNil(p.Email)
	p.AvatarURL = blankToNil(p.AvatarURL)
	return validationError(validate.Struct(p))
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidProfile, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required", "min":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email", field))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidProfile, strings.Join(msgs, "; "))
}
