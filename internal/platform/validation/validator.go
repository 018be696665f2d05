package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Custom struct tags backed by the portal validators.
const (
	TagEmail       = "email_addr"
	TagPassword    = "password"
	TagName        = "person_name"
	TagDescription = "description"
	TagPhone       = "phone"
)

// Errors maps a payload field (its json name) to the first message for it.
type Errors map[string]string

// Error returns the lone message for a single field, or a summary.
func (e Errors) Error() string {
	if len(e) == 1 {
		for _, msg := range e {
			return msg
		}
	}
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator validates request payload structs with go-playground/validator,
// reporting messages identical to the ones forms show.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator with the portal tags registered.
func New() *Validator {
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	v.registerCustomRules()
	return v
}

func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagEmail, stringRule(Email))
	_ = v.validate.RegisterValidation(TagPassword, stringRule(Password))
	_ = v.validate.RegisterValidation(TagName, stringRule(Name))
	_ = v.validate.RegisterValidation(TagDescription, stringRule(Description))
	_ = v.validate.RegisterValidation(TagPhone, stringRule(Phone))
}

// stringRule adapts a message-returning validator to a go-playground func.
// Empty strings pass so that `required` alone decides emptiness.
func stringRule(fn func(string) string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return fn(value) == ""
	}
}

// Struct validates s and returns nil or an Errors map.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate payload: %w", err)
	}

	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	str, _ := fe.Value().(string)
	switch fe.Tag() {
	case "required":
		return Label(fe.Field()) + " is required"
	case TagEmail:
		return Email(str)
	case TagPassword:
		return Password(str)
	case TagName:
		return Name(str)
	case TagDescription:
		return Description(str)
	case TagPhone:
		return Phone(str)
	case "min", "gte":
		return "Value must be at least " + fe.Param()
	case "max", "lte":
		return "Value must be no more than " + fe.Param()
	case "eqfield":
		return MsgPasswordMismatch
	case "oneof":
		return Label(fe.Field()) + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return Label(fe.Field()) + " is invalid"
	}
}

// Label turns a field key such as "full_name" into "Full name".
func Label(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
