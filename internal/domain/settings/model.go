package settings

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/result"
)

var ErrNotFound = fmt.Errorf("settings: %w", result.ErrNotFound)

// Defaults applied when a user's settings row is first provisioned.
const (
	DefaultReminderHours = 24
	DefaultTheme         = "light"
	DefaultLanguage      = "en"
	DefaultTimezone      = "UTC"
	DefaultCalendarView  = "week"
)

// Settings are one user's portal preferences.
type Settings struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	UserRole           string    `json:"user_role" validate:"required,oneof=admin doctor nurse patient"`
	EmailNotifications bool      `json:"email_notifications"`
	AppNotifications   bool      `json:"app_notifications"`
	SMSNotifications   bool      `json:"sms_notifications"`
	ReminderHours      int       `json:"reminder_hours" validate:"gte=1,lte=168"`
	Theme              string    `json:"theme" validate:"required,oneof=light dark system"`
	Language           string    `json:"language" validate:"required,oneof=en es fr de pt"`
	Timezone           string    `json:"timezone" validate:"required,max=64"`
	CalendarView       string    `json:"calendar_view" validate:"required,oneof=day week month"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Defaults returns the settings a new user starts with: email and in-app
// notifications on, SMS off.
func Defaults(userID uuid.UUID, role string) *Settings {
	return &Settings{
		UserID:             userID,
		UserRole:           role,
		EmailNotifications: true,
		AppNotifications:   true,
		SMSNotifications:   false,
		ReminderHours:      DefaultReminderHours,
		Theme:              DefaultTheme,
		Language:           DefaultLanguage,
		Timezone:           DefaultTimezone,
		CalendarView:       DefaultCalendarView,
	}
}

// Values renders the settings as form values for an edit modal.
func (s *Settings) Values() map[string]string {
	return map[string]string{
		"email_notifications": strconv.FormatBool(s.EmailNotifications),
		"app_notifications":   strconv.FormatBool(s.AppNotifications),
		"sms_notifications":   strconv.FormatBool(s.SMSNotifications),
		"reminder_hours":      strconv.Itoa(s.ReminderHours),
		"theme":               s.Theme,
		"language":            s.Language,
		"timezone":            s.Timezone,
		"calendar_view":       s.CalendarView,
	}
}
