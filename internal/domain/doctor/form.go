package doctor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/form"
	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/internal/platform/validation"
)

// FormSpecs are the fields of the staff modal. The password pair is optional
// and only used when a record is created.
func FormSpecs() []form.Spec {
	return []form.Spec{
		{Name: "full_name", Label: "Full name", Required: true, Rule: validation.NameRule()},
		{Name: "email", Label: "Email", Required: true, Rule: validation.EmailRule()},
		{Name: "phone", Label: "Phone", Rule: validation.PhoneRule()},
		{Name: "role", Label: "Role", Required: true, Default: RoleDoctor},
		{Name: "specialization", Label: "Specialization"},
		{Name: "description", Label: "Description", Rule: validation.DescriptionRule()},
		{Name: "password", Label: "Password", Rule: validation.PasswordRule(), Masked: true},
		{Name: "confirm_password", Label: "Confirm password", Rule: validation.ConfirmRule("password"), Masked: true},
	}
}

// NewModal wires the staff modal to svc. New staff get their role title
// once, right before the record is sent. Edits keep the name as entered.
func NewModal(svc *Service, refresh func(), logger zerolog.Logger) *form.Modal[*Doctor] {
	return form.NewModal(form.New(FormSpecs()...), form.Config[*Doctor]{
		Build: func(v map[string]string) (*Doctor, error) {
			return &Doctor{
				FullName:        v["full_name"],
				Email:           v["email"],
				Phone:           v["phone"],
				Role:            v["role"],
				Specialization:  v["specialization"],
				Description:     v["description"],
				Password:        v["password"],
				ConfirmPassword: v["confirm_password"],
			}, nil
		},
		Prepare: func(mode form.Mode, d **Doctor) {
			if mode == form.ModeCreate {
				(*d).FullName = ApplyTitle((*d).FullName, (*d).Role)
			}
		},
		Create: svc.AddDoctor,
		Update: func(ctx context.Context, id string, d *Doctor) result.Result[*Doctor] {
			uid, err := uuid.Parse(id)
			if err != nil {
				return result.Fail[*Doctor](fmt.Errorf("invalid doctor id %q", id))
			}
			return svc.UpdateDoctor(ctx, uid, d)
		},
		Refresh:        refresh,
		SuccessMessage: "Staff member saved successfully",
		Logger:         logger,
	})
}
