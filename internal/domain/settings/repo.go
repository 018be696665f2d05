package settings

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Get(ctx context.Context, userID uuid.UUID) (*Settings, error)
	// Provision inserts s unless the user already has a row, and returns
	// whichever row is stored afterwards.
	Provision(ctx context.Context, s *Settings) (*Settings, error)
	// Update writes the preference columns; user_role is never changed.
	Update(ctx context.Context, s *Settings) error
}
