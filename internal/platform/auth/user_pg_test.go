package auth

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/db/dbtest"
)

func TestMain(m *testing.M) {
	os.Exit(dbtest.Main(m))
}

func TestUserRepoPG(t *testing.T) {
	repo := NewUserRepoPG(dbtest.Pool(t))
	ctx := context.Background()
	email := "Kim-" + uuid.New().String()[:8] + "@Example.com "

	u := &User{Email: email, PasswordHash: "hash-1", Role: RoleDoctor}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, &User{Email: email, PasswordHash: "x", Role: RoleNurse}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	got, err := repo.GetByEmail(ctx, strings.ToUpper(email))
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != u.ID || got.Email != strings.ToLower(strings.TrimSpace(email)) {
		t.Errorf("unexpected user %+v", got)
	}

	if err := repo.UpdatePassword(ctx, u.ID, "hash-2"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if got, _ = repo.GetByID(ctx, u.ID); got.PasswordHash != "hash-2" {
		t.Errorf("expected new hash, got %q", got.PasswordHash)
	}
	if err := repo.UpdatePassword(ctx, uuid.New(), "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
