package patient

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/form"
	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/internal/platform/validation"
)

func FormSpecs() []form.Spec {
	return []form.Spec{
		{Name: "full_name", Label: "Full name", Required: true, Rule: validation.NameRule()},
		{Name: "email", Label: "Email", Required: true, Rule: validation.EmailRule()},
		{Name: "phone", Label: "Phone", Rule: validation.PhoneRule()},
		{Name: "age", Label: "Age", Rule: validation.NumberRule(0, 120)},
		{Name: "address", Label: "Address"},
		{Name: "doctor_id", Label: "Doctor"},
		{Name: "description", Label: "Description", Rule: validation.DescriptionRule()},
		{Name: "password", Label: "Password", Rule: validation.PasswordRule(), Masked: true},
		{Name: "confirm_password", Label: "Confirm password", Rule: validation.ConfirmRule("password"), Masked: true},
	}
}

func build(v map[string]string) (*Patient, error) {
	p := &Patient{
		FullName:        v["full_name"],
		Email:           v["email"],
		Phone:           v["phone"],
		Address:         v["address"],
		Description:     v["description"],
		Password:        v["password"],
		ConfirmPassword: v["confirm_password"],
	}
	if age := strings.TrimSpace(v["age"]); age != "" {
		f, err := strconv.ParseFloat(age, 64)
		if err != nil {
			return nil, fmt.Errorf("parse age %q: %w", age, err)
		}
		p.Age = int(f)
	}
	if id := strings.TrimSpace(v["doctor_id"]); id != "" {
		uid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse doctor_id %q: %w", id, err)
		}
		p.DoctorID = &uid
	}
	return p, nil
}

// NewModal wires the patient modal to svc.
func NewModal(svc *Service, refresh func(), logger zerolog.Logger) *form.Modal[*Patient] {
	return form.NewModal(form.New(FormSpecs()...), form.Config[*Patient]{
		Build:  build,
		Create: svc.AddPatient,
		Update: func(ctx context.Context, id string, p *Patient) result.Result[*Patient] {
			uid, err := uuid.Parse(id)
			if err != nil {
				return result.Fail[*Patient](fmt.Errorf("invalid patient id %q", id))
			}
			return svc.UpdatePatient(ctx, uid, p)
		},
		Refresh:        refresh,
		SuccessMessage: "Patient saved successfully",
		Logger:         logger,
	})
}
