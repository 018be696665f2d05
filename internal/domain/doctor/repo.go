package doctor

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for staff records.
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// Update writes every column except profile_url.
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List filters by role when role is non-empty.
	List(ctx context.Context, role string, limit, offset int) ([]*Doctor, int, error)
	SetProfileURL(ctx context.Context, id uuid.UUID, url string) error
}
