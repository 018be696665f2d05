package admin

import (
	"context"
	"fmt"

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
		{Name: "password", Label: "Password", Rule: validation.PasswordRule(), Masked: true},
		{Name: "confirm_password", Label: "Confirm password", Rule: validation.ConfirmRule("password"), Masked: true},
	}
}

func NewModal(svc *Service, refresh func(), logger zerolog.Logger) *form.Modal[*Admin] {
	return form.NewModal(form.New(FormSpecs()...), form.Config[*Admin]{
		Build: func(v map[string]string) (*Admin, error) {
			return &Admin{
				FullName:        v["full_name"],
				Email:           v["email"],
				Phone:           v["phone"],
				Password:        v["password"],
				ConfirmPassword: v["confirm_password"],
			}, nil
		},
		Create: svc.AddAdmin,
		Update: func(ctx context.Context, id string, a *Admin) result.Result[*Admin] {
			uid, err := uuid.Parse(id)
			if err != nil {
				return result.Fail[*Admin](fmt.Errorf("invalid admin id %q", id))
			}
			return svc.UpdateAdmin(ctx, uid, a)
		},
		Refresh:        refresh,
		SuccessMessage: "Profile updated successfully",
		Logger:         logger,
	})
}
