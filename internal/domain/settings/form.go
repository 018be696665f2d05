package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/form"
	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/internal/platform/validation"
)

func FormSpecs() []form.Spec {
	return []form.Spec{
		{Name: "email_notifications", Label: "Email notifications", Default: "true"},
		{Name: "app_notifications", Label: "App notifications", Default: "true"},
		{Name: "sms_notifications", Label: "SMS notifications", Default: "false"},
		{Name: "reminder_hours", Label: "Reminder hours", Required: true, Rule: validation.WholeNumberRule(1, 168)},
		{Name: "theme", Label: "Theme", Required: true, Default: DefaultTheme},
		{Name: "language", Label: "Language", Required: true, Default: DefaultLanguage},
		{Name: "timezone", Label: "Timezone", Required: true, Default: DefaultTimezone},
		{Name: "calendar_view", Label: "Calendar view", Required: true, Default: DefaultCalendarView},
	}
}

func build(v map[string]string) (*Settings, error) {
	s := &Settings{
		Theme:        v["theme"],
		Language:     v["language"],
		Timezone:     v["timezone"],
		CalendarView: v["calendar_view"],
	}
	for name, dst := range map[string]*bool{
		"email_notifications": &s.EmailNotifications,
		"app_notifications":   &s.AppNotifications,
		"sms_notifications":   &s.SMSNotifications,
	} {
		raw := strings.TrimSpace(v[name])
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", name, raw, err)
		}
		*dst = b
	}
	raw := strings.TrimSpace(v["reminder_hours"])
	if msg := validation.WholeNumber(raw); msg != "" {
		return nil, validation.Errors{"reminder_hours": msg}
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse reminder_hours: %w", err)
	}
	s.ReminderHours = int(hours)
	return s, nil
}

// NewModal wires the settings modal to svc. Settings are only edited; the
// row itself is provisioned by FetchSettings.
func NewModal(svc *Service, refresh func(), logger zerolog.Logger) *form.Modal[*Settings] {
	return form.NewModal(form.New(FormSpecs()...), form.Config[*Settings]{
		Build: build,
		Update: func(ctx context.Context, id string, s *Settings) result.Result[*Settings] {
			uid, err := uuid.Parse(id)
			if err != nil {
				return result.Fail[*Settings](fmt.Errorf("invalid user id %q", id))
			}
			return svc.UpdateSettings(ctx, uid, s)
		},
		Refresh:        refresh,
		SuccessMessage: "Settings saved successfully",
		Logger:         logger,
	})
}
