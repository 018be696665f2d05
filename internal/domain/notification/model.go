package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/result"
)

// Notification types.
const (
	TypeInfo        = "info"
	TypeReminder    = "reminder"
	TypeAlert       = "alert"
	TypeAppointment = "appointment"
)

var ErrNotFound = fmt.Errorf("notification: %w", result.ErrNotFound)

// Notification is one inbox entry. The json names match the columns so rows
// encoded by the insert trigger decode straight into it.
type Notification struct {
	ID            uuid.UUID `json:"id"`
	RecipientID   uuid.UUID `json:"recipient_id" validate:"required"`
	RecipientRole string    `json:"recipient_role" validate:"required,oneof=admin doctor nurse patient"`
	Title         string    `json:"title" validate:"required,max=200"`
	Message       string    `json:"message" validate:"required,max=2000"`
	Type          string    `json:"type" validate:"oneof=info reminder alert appointment"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}

// Contact is where out-of-app deliveries for a recipient go.
type Contact struct {
	Name  string
	Email string
	Phone string
}
