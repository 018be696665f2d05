package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/domain/admin"
	"github.com/ehr/portal/internal/domain/doctor"
	"github.com/ehr/portal/internal/domain/notification"
	"github.com/ehr/portal/internal/domain/patient"
	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/result"
)

// contactDirectory looks notification recipients up in the record table
// that matches their role.
type contactDirectory struct {
	doctors  func(context.Context, uuid.UUID) result.Result[*doctor.Doctor]
	patients func(context.Context, uuid.UUID) result.Result[*patient.Patient]
	admins   func(context.Context, uuid.UUID) result.Result[*admin.Admin]
}

func newContactDirectory(doctors *doctor.Service, patients *patient.Service, admins *admin.Service) *contactDirectory {
	return &contactDirectory{
		doctors:  doctors.FetchDoctor,
		patients: patients.FetchPatient,
		admins:   admins.FetchAdmin,
	}
}

func (d *contactDirectory) Contact(ctx context.Context, id uuid.UUID, role string) (notification.Contact, error) {
	switch role {
	case auth.RoleDoctor, auth.RoleNurse:
		rec, err := d.doctors(ctx, id).Unwrap()
		if err != nil {
			return notification.Contact{}, err
		}
		return notification.Contact{Name: rec.FullName, Email: rec.Email, Phone: rec.Phone}, nil
	case auth.RolePatient:
		rec, err := d.patients(ctx, id).Unwrap()
		if err != nil {
			return notification.Contact{}, err
		}
		return notification.Contact{Name: rec.FullName, Email: rec.Email, Phone: rec.Phone}, nil
	case auth.RoleAdmin:
		rec, err := d.admins(ctx, id).Unwrap()
		if err != nil {
			return notification.Contact{}, err
		}
		return notification.Contact{Name: rec.FullName, Email: rec.Email, Phone: rec.Phone}, nil
	}
	return notification.Contact{}, fmt.Errorf("no contact lookup for role %q", role)
}
