package admin

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/media"
	"github.com/ehr/portal/internal/platform/result"
)

// ImageFolder is the bucket folder holding admin pictures.
const ImageFolder = "admins"

// ErrNotFound is returned when no admins row matches an id.
var ErrNotFound = fmt.Errorf("admin: %w", result.ErrNotFound)

// Admin is a portal administrator profile. Its id matches the auth user id.
type Admin struct {
	ID              uuid.UUID `json:"id"`
	FullName        string    `json:"full_name" validate:"required,person_name"`
	Email           string    `json:"email" validate:"required,email_addr"`
	Phone           string    `json:"phone" validate:"phone"`
	ProfileURL      string    `json:"profile_url"`
	Password        string    `json:"password,omitempty" validate:"password"`
	ConfirmPassword string    `json:"confirm_password,omitempty" validate:"omitempty,eqfield=Password"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (a *Admin) DisplayImage() string {
	return media.DisplaySource(a.ProfileURL)
}

// Values renders the profile as form values for an edit modal.
func (a *Admin) Values() map[string]string {
	return map[string]string{
		"full_name": a.FullName,
		"email":     a.Email,
		"phone":     a.Phone,
	}
}
