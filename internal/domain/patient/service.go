package patient

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

// Registrar creates sign-in credentials for a new patient.
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

// NewService stores pictures with images; the portal uses media.Inline so
// the data URI lives on the row.
func NewService(repo Repository, images media.Strategy, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		images:   images,
		validate: validation.New(),
		logger:   logger.With().Str("service", "patient").Logger(),
	}
}

func (s *Service) SetRegistrar(r Registrar) { s.registrar = r }

func (s *Service) FetchPatient(ctx context.Context, id uuid.UUID) result.Result[*Patient] {
	return result.Capture(s.logger, "fetch_patient", func() (*Patient, error) {
		return s.repo.GetByID(ctx, id)
	})
}

// ListPatients pages through patients, restricted to one doctor's list when
// doctorID is not uuid.Nil.
func (s *Service) ListPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) result.Result[pagination.Page[*Patient]] {
	return result.Capture(s.logger, "list_patients", func() (pagination.Page[*Patient], error) {
		p := pagination.New(limit, offset)
		items, total, err := s.repo.List(ctx, doctorID, p.Limit, p.Offset)
		if err != nil {
			return pagination.Page[*Patient]{}, err
		}
		return pagination.NewPage(items, total, p), nil
	})
}

func (s *Service) AddPatient(ctx context.Context, p *Patient) result.Result[*Patient] {
	return result.Capture(s.logger, "add_patient", func() (*Patient, error) {
		if p == nil {
			return nil, errors.New("patient payload is required")
		}
		normalize(p)
		if err := s.validate.Struct(p); err != nil {
			return nil, err
		}

		password := p.Password
		p.Password, p.ConfirmPassword = "", ""
		p.ID = uuid.Nil
		if err := s.repo.Create(ctx, p); err != nil {
			return nil, err
		}

		if password != "" && s.registrar != nil {
			reg := s.registrar.Register(ctx, p.ID, p.Email, password, auth.RolePatient)
			if !reg.Success() {
				if err := s.repo.Delete(ctx, p.ID); err != nil {
					s.logger.Error().Err(err).Str("patient_id", p.ID.String()).Msg("roll back patient record")
				}
				return nil, reg.Err()
			}
		}
		return p, nil
	})
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, p *Patient) result.Result[*Patient] {
	return result.Capture(s.logger, "update_patient", func() (*Patient, error) {
		if p == nil {
			return nil, errors.New("patient payload is required")
		}
		normalize(p)
		p.Password, p.ConfirmPassword = "", ""
		if err := s.validate.Struct(p); err != nil {
			return nil, err
		}
		p.ID = id
		if err := s.repo.Update(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	})
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) result.Result[*Patient] {
	return result.Capture(s.logger, "delete_patient", func() (*Patient, error) {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return nil, err
		}
		if err := s.images.Release(ctx, p.ProfileURL); err != nil {
			s.logger.Warn().Err(err).Str("patient_id", id.String()).Msg("release image")
		}
		return p, nil
	})
}

// UploadPatientImage encodes img and stores it on the row. The returned URL
// is the data URI itself.
func (s *Service) UploadPatientImage(ctx context.Context, id uuid.UUID, img media.Image) result.Result[*Patient] {
	var stored string
	res := result.Capture(s.logger, "upload_patient_image", func() (*Patient, error) {
		if err := media.CheckSize(img); err != nil {
			return nil, err
		}
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		stored, err = s.images.Store(ctx, ImageFolder, id.String(), img)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SetProfileURL(ctx, id, stored); err != nil {
			return nil, err
		}
		if prev := p.ProfileURL; prev != "" && prev != stored {
			if err := s.images.Release(ctx, prev); err != nil {
				s.logger.Warn().Err(err).Str("patient_id", id.String()).Msg("release image")
			}
		}
		p.ProfileURL = stored
		return p, nil
	})
	if !res.Success() {
		return res
	}
	return result.OkURL(res.Data(), stored)
}

func normalize(p *Patient) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address = strings.TrimSpace(p.Address)
	p.Description = strings.TrimSpace(p.Description)
	if p.DoctorID != nil && *p.DoctorID == uuid.Nil {
		p.DoctorID = nil
	}
}
