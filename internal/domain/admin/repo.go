package admin

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for admin profiles.
type Repository interface {
	Create(ctx context.Context, a *Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
	// Update writes every column except profile_url.
	Update(ctx context.Context, a *Admin) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Admin, int, error)
	SetProfileURL(ctx context.Context, id uuid.UUID, url string) error
}
