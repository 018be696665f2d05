package doctor

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/db/dbtest"
)

func TestMain(m *testing.M) {
	os.Exit(dbtest.Main(m))
}

func uniqueEmail(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8] + "@example.com"
}

func TestRepoPG_Lifecycle(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewRepo(pool)

	d := &Doctor{FullName: "Nur. Ann Lee", Email: uniqueEmail("ann"), Role: RoleNurse, Specialization: "Midwifery"}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.ID == uuid.Nil || d.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", d)
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Role != RoleNurse || got.Specialization != "Midwifery" {
		t.Errorf("unexpected row %+v", got)
	}

	got.Role = RoleDoctor
	got.Phone = "+15550100"
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Role != RoleDoctor || got.Phone != "+15550100" || got.UpdatedAt.Before(d.UpdatedAt) {
		t.Errorf("unexpected updated row %+v", got)
	}

	if err := repo.SetProfileURL(ctx, d.ID, "http://localhost:8000/storage/v1/object/public/avatars/doctors/x.png"); err != nil {
		t.Fatalf("set profile url: %v", err)
	}

	doctors, _, err := repo.List(ctx, RoleDoctor, 1000, 0)
	if err != nil {
		t.Fatalf("list doctors: %v", err)
	}
	if !containsDoctor(doctors, d.ID) {
		t.Error("expected the record under its new role")
	}
	nurses, _, err := repo.List(ctx, RoleNurse, 1000, 0)
	if err != nil {
		t.Fatalf("list nurses: %v", err)
	}
	if containsDoctor(nurses, d.ID) {
		t.Error("record must not be listed under its old role")
	}

	if err := repo.Delete(ctx, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRepoPG_ConstraintErrors(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewRepo(pool)

	email := uniqueEmail("dup")
	if err := repo.Create(ctx, &Doctor{FullName: "Dr. Kim", Email: email, Role: RoleDoctor}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, &Doctor{FullName: "Dr. Kim Two", Email: email, Role: RoleDoctor}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
	if err := repo.Update(ctx, &Doctor{ID: uuid.New(), FullName: "Nobody", Email: uniqueEmail("none"), Role: RoleDoctor}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.SetProfileURL(ctx, uuid.New(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func containsDoctor(items []*Doctor, id uuid.UUID) bool {
	for _, d := range items {
		if d.ID == id {
			return true
		}
	}
	return false
}
