package doctor

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/dispatch"
	"github.com/ehr/portal/internal/platform/media"
	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/internal/platform/validation"
	"github.com/ehr/portal/pkg/pagination"
)

// Registrar creates sign-in credentials for a new staff member.
type Registrar interface {
	Register(ctx context.Context, id uuid.UUID, email, password, role string) result.Result[*auth.User]
}

// Mailer queues templated messages.
type Mailer interface {
	EnqueueTemplate(ctx context.Context, ch dispatch.Channel, recipient, templateID string, data map[string]string) error
}

type Service struct {
	repo      Repository
	images    media.Strategy
	validate  *validation.Validator
	registrar Registrar
	mailer    Mailer
	logger    zerolog.Logger
}

func NewService(repo Repository, images media.Strategy, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		images:   images,
		validate: validation.New(),
		logger:   logger.With().Str("service", "doctor").Logger(),
	}
}

// SetRegistrar enables credential creation when a new record carries a
// password.
func (s *Service) SetRegistrar(r Registrar) { s.registrar = r }

// SetMailer enables the welcome email for newly registered staff.
func (s *Service) SetMailer(m Mailer) { s.mailer = m }

func (s *Service) FetchDoctor(ctx context.Context, id uuid.UUID) result.Result[*Doctor] {
	return result.Capture(s.logger, "fetch_doctor", func() (*Doctor, error) {
		return s.repo.GetByID(ctx, id)
	})
}

// ListDoctors pages through staff, optionally restricted to one role.
func (s *Service) ListDoctors(ctx context.Context, role string, limit, offset int) result.Result[pagination.Page[*Doctor]] {
	return result.Capture(s.logger, "list_doctors", func() (pagination.Page[*Doctor], error) {
		if role != "" && role != RoleDoctor && role != RoleNurse {
			return pagination.Page[*Doctor]{}, validation.Errors{"role": "Role must be one of: doctor, nurse"}
		}
		p := pagination.New(limit, offset)
		items, total, err := s.repo.List(ctx, role, p.Limit, p.Offset)
		if err != nil {
			return pagination.Page[*Doctor]{}, err
		}
		return pagination.NewPage(items, total, p), nil
	})
}

// AddDoctor inserts a staff record. When the payload carries a password and
// a registrar is set, credentials are created under the same id; a failed
// registration removes the record again.
func (s *Service) AddDoctor(ctx context.Context, d *Doctor) result.Result[*Doctor] {
	return result.Capture(s.logger, "add_doctor", func() (*Doctor, error) {
		if d == nil {
			return nil, errors.New("doctor payload is required")
		}
		normalize(d)
		if err := s.check(d); err != nil {
			return nil, err
		}

		password := d.Password
		d.Password, d.ConfirmPassword = "", ""
		d.ID = uuid.Nil
		if err := s.repo.Create(ctx, d); err != nil {
			return nil, err
		}

		if password != "" && s.registrar != nil {
			reg := s.registrar.Register(ctx, d.ID, d.Email, password, d.Role)
			if !reg.Success() {
				if err := s.repo.Delete(ctx, d.ID); err != nil {
					s.logger.Error().Err(err).Str("doctor_id", d.ID.String()).Msg("roll back staff record")
				}
				return nil, reg.Err()
			}
			s.welcome(ctx, d)
		}
		return d, nil
	})
}

// check validates d with its role title removed from the name, so a titled
// name is held to the same limits as the name the form accepted.
func (s *Service) check(d *Doctor) error {
	cp := *d
	cp.FullName = StripTitle(d.FullName, d.Role)
	return s.validate.Struct(&cp)
}

func (s *Service) welcome(ctx context.Context, d *Doctor) {
	if s.mailer == nil {
		return
	}
	err := s.mailer.EnqueueTemplate(ctx, dispatch.ChannelEmail, d.Email, dispatch.TemplateWelcome,
		map[string]string{"name": d.FullName, "email": d.Email})
	if err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", d.ID.String()).Msg("queue welcome email")
	}
}

// UpdateDoctor replaces the editable columns of id. The profile picture is
// changed only through UploadDoctorImage.
func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, d *Doctor) result.Result[*Doctor] {
	return result.Capture(s.logger, "update_doctor", func() (*Doctor, error) {
		if d == nil {
			return nil, errors.New("doctor payload is required")
		}
		normalize(d)
		d.Password, d.ConfirmPassword = "", ""
		if err := s.check(d); err != nil {
			return nil, err
		}
		d.ID = id
		if err := s.repo.Update(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	})
}

// DeleteDoctor removes the record and its stored picture.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) result.Result[*Doctor] {
	return result.Capture(s.logger, "delete_doctor", func() (*Doctor, error) {
		d, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return nil, err
		}
		s.release(ctx, d.ProfileURL)
		return d, nil
	})
}

// UploadDoctorImage stores img in the bucket and points the record at it.
// The image is checked before anything is stored, and the previous object is
// removed only after the record points at the new one.
func (s *Service) UploadDoctorImage(ctx context.Context, id uuid.UUID, img media.Image) result.Result[*Doctor] {
	var url string
	res := result.Capture(s.logger, "upload_doctor_image", func() (*Doctor, error) {
		if err := media.CheckSize(img); err != nil {
			return nil, err
		}
		d, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		url, err = s.images.Store(ctx, ImageFolder, id.String(), img)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SetProfileURL(ctx, id, url); err != nil {
			s.release(ctx, url)
			return nil, err
		}

		prev := d.ProfileURL
		d.ProfileURL = url
		if prev != url {
			s.release(ctx, prev)
		}
		return d, nil
	})
	if !res.Success() {
		return res
	}
	return result.OkURL(res.Data(), url)
}

func (s *Service) release(ctx context.Context, stored string) {
	if stored == "" {
		return
	}
	if err := s.images.Release(ctx, stored); err != nil {
		s.logger.Warn().Err(err).Str("object", stored).Msg("release image")
	}
}

func normalize(d *Doctor) {
	d.FullName = strings.TrimSpace(d.FullName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
	d.Role = strings.ToLower(strings.TrimSpace(d.Role))
	d.Specialization = strings.TrimSpace(d.Specialization)
	d.Description = strings.TrimSpace(d.Description)
}
