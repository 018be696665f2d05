package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for patients.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// Update writes every column except profile_url.
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List filters by assigned doctor when doctorID is not uuid.Nil.
	List(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error)
	SetProfileURL(ctx context.Context, id uuid.UUID, url string) error
}
