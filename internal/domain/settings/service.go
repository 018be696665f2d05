package settings

import (
	"context"
	"errors"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/internal/platform/validation"
)

type Service struct {
	repo     Repository
	validate *validation.Validator
	logger   zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validation.New(),
		logger:   logger.With().Str("service", "settings").Logger(),
	}
}

// FetchSettings returns the user's settings, provisioning the defaults under
// role the first time they are asked for.
func (s *Service) FetchSettings(ctx context.Context, userID uuid.UUID, role string) result.Result[*Settings] {
	return result.Capture(s.logger, "fetch_settings", func() (*Settings, error) {
		current, err := s.repo.Get(ctx, userID)
		if err == nil {
			return current, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		role = strings.ToLower(strings.TrimSpace(role))
		if !auth.ValidRole(role) {
			return nil, validation.Errors{"user_role": "User role must be one of: admin, doctor, nurse, patient"}
		}
		provisioned, err := s.repo.Provision(ctx, Defaults(userID, role))
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("user_id", userID.String()).Str("role", role).Msg("provisioned default settings")
		return provisioned, nil
	})
}

// UpdateSettings replaces the preferences of an existing settings row. The
// stored role is kept.
func (s *Service) UpdateSettings(ctx context.Context, userID uuid.UUID, in *Settings) result.Result[*Settings] {
	return result.Capture(s.logger, "update_settings", func() (*Settings, error) {
		if in == nil {
			return nil, errors.New("settings payload is required")
		}
		current, err := s.repo.Get(ctx, userID)
		if err != nil {
			return nil, err
		}

		in.ID = current.ID
		in.UserID = userID
		in.UserRole = current.UserRole
		normalize(in)
		if err := s.validate.Struct(in); err != nil {
			return nil, err
		}
		if _, err := time.LoadLocation(in.Timezone); err != nil {
			return nil, validation.Errors{"timezone": "Please select a valid timezone"}
		}
		if err := s.repo.Update(ctx, in); err != nil {
			return nil, err
		}
		return in, nil
	})
}

// Channels reports whether the user wants email and SMS copies of their
// notifications.
func (s *Service) Channels(ctx context.Context, userID uuid.UUID, role string) (email, sms bool, err error) {
	res := s.FetchSettings(ctx, userID, role)
	if !res.Success() {
		return false, false, res.Err()
	}
	return res.Data().EmailNotifications, res.Data().SMSNotifications, nil
}

func normalize(in *Settings) {
	in.Theme = strings.ToLower(strings.TrimSpace(in.Theme))
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	in.Timezone = strings.TrimSpace(in.Timezone)
	in.CalendarView = strings.ToLower(strings.TrimSpace(in.CalendarView))
}
