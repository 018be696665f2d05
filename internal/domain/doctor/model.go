package doctor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/media"
	"github.com/ehr/portal/internal/platform/result"
)

// Staff roles stored on a doctors row.
const (
	RoleDoctor = auth.RoleDoctor
	RoleNurse  = auth.RoleNurse
)

// ImageFolder is the bucket folder holding staff pictures.
const ImageFolder = "doctors"

// ErrNotFound is returned when no doctors row matches an id.
var ErrNotFound = fmt.Errorf("doctor: %w", result.ErrNotFound)

// Doctor is a doctor or nurse on the staff list. Password and
// ConfirmPassword are accepted on create to register sign-in credentials and
// are never stored on the row.
type Doctor struct {
	ID              uuid.UUID `json:"id"`
	FullName        string    `json:"full_name" validate:"required,person_name"`
	Email           string    `json:"email" validate:"required,email_addr"`
	Phone           string    `json:"phone" validate:"phone"`
	Role            string    `json:"role" validate:"required,oneof=doctor nurse"`
	Specialization  string    `json:"specialization" validate:"max=128"`
	Description     string    `json:"description" validate:"description"`
	ProfileURL      string    `json:"profile_url"`
	Password        string    `json:"password,omitempty" validate:"password"`
	ConfirmPassword string    `json:"confirm_password,omitempty" validate:"omitempty,eqfield=Password"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DisplayImage is the profile picture source to render.
func (d *Doctor) DisplayImage() string {
	return media.DisplaySource(d.ProfileURL)
}

// Values renders the record as form values for an edit modal.
func (d *Doctor) Values() map[string]string {
	return map[string]string{
		"full_name":      d.FullName,
		"email":          d.Email,
		"phone":          d.Phone,
		"role":           d.Role,
		"specialization": d.Specialization,
		"description":    d.Description,
	}
}

// ApplyTitle prefixes a staff name with its role title: "Dr. " for doctors
// and "Nur. " for nurses. Names already carrying the title, in any case and
// written with a dot or a space, are left alone, as are other roles.
func ApplyTitle(name, role string) string {
	title, dotted, spaced, ok := titleFor(role)
	if !ok {
		return name
	}
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, dotted) || strings.HasPrefix(lower, spaced) {
		return name
	}
	return title + name
}

// StripTitle removes the role title ApplyTitle recognises, leaving the name
// as it was typed.
func StripTitle(name, role string) string {
	_, dotted, spaced, ok := titleFor(role)
	if !ok {
		return name
	}
	lower := strings.ToLower(name)
	for _, prefix := range []string{dotted, spaced} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(name[len(prefix):])
		}
	}
	return name
}

func titleFor(role string) (title, dotted, spaced string, ok bool) {
	switch role {
	case RoleDoctor:
		return "Dr. ", "dr.", "dr ", true
	case RoleNurse:
		return "Nur. ", "nur.", "nur ", true
	}
	return "", "", "", false
}
