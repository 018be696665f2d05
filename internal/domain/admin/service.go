package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/media"
	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/internal/platform/validation"
	"github.com/ehr/portal/pkg/pagination"
)

// Registrar creates sign-in credentials for a new admin.
type Registrar interface {
	Register(ctx context.Context, id uuid.UUID, email, password, role string) result.Result[*auth.User]
}

type Service struct {
	repo      Repository
	images    media.Strategy
	validate  *validation.Validator
	registrar Registrar
	logger    zerolog.Logger
}

func NewService(repo Repository, images media.Strategy, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		images:   images,
		validate: validation.New(),
		logger:   logger.With().Str("service", "admin").Logger(),
	}
}

func (s *Service) SetRegistrar(r Registrar) { s.registrar = r }

func (s *Service) FetchAdmin(ctx context.Context, id uuid.UUID) result.Result[*Admin] {
	return result.Capture(s.logger, "fetch_admin", func() (*Admin, error) {
		return s.repo.GetByID(ctx, id)
	})
}

func (s *Service) ListAdmins(ctx context.Context, limit, offset int) result.Result[pagination.Page[*Admin]] {
	return result.Capture(s.logger, "list_admins", func() (pagination.Page[*Admin], error) {
		p := pagination.New(limit, offset)
		items, total, err := s.repo.List(ctx, p.Limit, p.Offset)
		if err != nil {
			return pagination.Page[*Admin]{}, err
		}
		return pagination.NewPage(items, total, p), nil
	})
}

// AddAdmin inserts a profile and, when a password is given, registers admin
// credentials under the same id. A failed registration removes the profile.
func (s *Service) AddAdmin(ctx context.Context, a *Admin) result.Result[*Admin] {
	return result.Capture(s.logger, "add_admin", func() (*Admin, error) {
		if a == nil {
			return nil, errors.New("admin payload is required")
		}
		normalize(a)
		if err := s.validate.Struct(a); err != nil {
			return nil, err
		}

		password := a.Password
		a.Password, a.ConfirmPassword = "", ""
		a.ID = uuid.Nil
		if err := s.repo.Create(ctx, a); err != nil {
			return nil, err
		}

		if password != "" && s.registrar != nil {
			reg := s.registrar.Register(ctx, a.ID, a.Email, password, auth.RoleAdmin)
			if !reg.Success() {
				if err := s.repo.Delete(ctx, a.ID); err != nil {
					s.logger.Error().Err(err).Str("admin_id", a.ID.String()).Msg("roll back admin profile")
				}
				return nil, reg.Err()
			}
		}
		return a, nil
	})
}

func (s *Service) UpdateAdmin(ctx context.Context, id uuid.UUID, a *Admin) result.Result[*Admin] {
	return result.Capture(s.logger, "update_admin", func() (*Admin, error) {
		if a == nil {
			return nil, errors.New("admin payload is required")
		}
		normalize(a)
		a.Password, a.ConfirmPassword = "", ""
		if err := s.validate.Struct(a); err != nil {
			return nil, err
		}
		a.ID = id
		if err := s.repo.Update(ctx, a); err != nil {
			return nil, err
		}
		return a, nil
	})
}

// UploadAdminImage stores img in the bucket under admins/ and points the
// profile at it, removing the previous object afterwards.
func (s *Service) UploadAdminImage(ctx context.Context, id uuid.UUID, img media.Image) result.Result[*Admin] {
	var url string
	res := result.Capture(s.logger, "upload_admin_image", func() (*Admin, error) {
		if err := media.CheckSize(img); err != nil {
			return nil, err
		}
		a, err := s.repo.GetByID(ctx, id)
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

		prev := a.ProfileURL
		a.ProfileURL = url
		if prev != url {
			s.release(ctx, prev)
		}
		return a, nil
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

func normalize(a *Admin) {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Phone = strings.TrimSpace(a.Phone)
}
