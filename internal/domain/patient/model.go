package patient

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/media"
	"github.com/ehr/portal/internal/platform/result"
)

// ErrNotFound is returned when no patients row matches an id.
var ErrNotFound = fmt.Errorf("patient: %w", result.ErrNotFound)

// ImageFolder names patient pictures; inline images ignore it.
const ImageFolder = "patients"

// Patient is an expecting mother under a doctor's care. ProfileURL holds an
// inline data URI. The password pair registers portal credentials on create
// and is never stored on the row.
type Patient struct {
	ID          uuid.UUID  `json:"id"`
	FullName    string     `json:"full_name" validate:"required,person_name"`
	Email       string     `json:"email" validate:"required,email_addr"`
	Phone       string     `json:"phone" validate:"phone"`
	Age         int        `json:"age" validate:"gte=0,lte=120"`
	Address     string     `json:"address" validate:"max=500"`
	DoctorID    *uuid.UUID `json:"doctor_id"`
	Description string     `json:"description" validate:"description"`
	ProfileURL  string     `json:"profile_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Password        string `json:"password,omitempty" validate:"password"`
	ConfirmPassword string `json:"confirm_password,omitempty" validate:"omitempty,eqfield=Password"`
}

// DisplayImage is the profile picture source to render.
func (p *Patient) DisplayImage() string {
	return media.DisplaySource(p.ProfileURL)
}

// Values renders the record as form values for an edit modal.
func (p *Patient) Values() map[string]string {
	v := map[string]string{
		"full_name":   p.FullName,
		"email":       p.Email,
		"phone":       p.Phone,
		"age":         strconv.Itoa(p.Age),
		"address":     p.Address,
		"doctor_id":   "",
		"description": p.Description,
	}
	if p.DoctorID != nil {
		v["doctor_id"] = p.DoctorID.String()
	}
	return v
}
