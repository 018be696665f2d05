package validation

import "math"

// Kind selects which validator a Rule runs.
type Kind int

const (
	KindNone Kind = iota
	KindEmail
	KindPassword
	KindName
	KindDescription
	KindPhone
	KindNumber
	KindConfirm
)

func (k Kind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindPassword:
		return "password"
	case KindName:
		return "name"
	case KindDescription:
		return "description"
	case KindPhone:
		return "phone"
	case KindNumber:
		return "number"
	case KindConfirm:
		return "confirm"
	default:
		return "none"
	}
}

// Rule is a validator bound to its static parameters. The zero Rule
// validates nothing.
type Rule struct {
	Kind Kind
	Min  float64
	Max  float64
	// Whole restricts a KindNumber rule to integers.
	Whole bool
	// Field names the sibling field a KindConfirm rule compares against.
	Field string
}

func EmailRule() Rule       { return Rule{Kind: KindEmail} }
func PasswordRule() Rule    { return Rule{Kind: KindPassword} }
func NameRule() Rule        { return Rule{Kind: KindName} }
func DescriptionRule() Rule { return Rule{Kind: KindDescription} }
func PhoneRule() Rule       { return Rule{Kind: KindPhone} }

// NumberRule bounds a numeric field. Pass math.Inf(1) for an open upper bound.
func NumberRule(min, max float64) Rule {
	return Rule{Kind: KindNumber, Min: min, Max: max}
}

// WholeNumberRule bounds a field that must hold an integer.
func WholeNumberRule(min, max float64) Rule {
	return Rule{Kind: KindNumber, Min: min, Max: max, Whole: true}
}

// DefaultNumberRule accepts any non-negative number.
func DefaultNumberRule() Rule {
	return NumberRule(0, math.Inf(1))
}

// ConfirmRule requires the value to equal the value of field.
func ConfirmRule(field string) Rule {
	return Rule{Kind: KindConfirm, Field: field}
}

// IsZero reports whether the rule validates nothing.
func (r Rule) IsZero() bool { return r.Kind == KindNone }

// Check runs the rule against value. lookup resolves sibling field values for
// KindConfirm and may be nil for every other kind.
func (r Rule) Check(value string, lookup func(field string) string) string {
	switch r.Kind {
	case KindEmail:
		return Email(value)
	case KindPassword:
		return Password(value)
	case KindName:
		return Name(value)
	case KindDescription:
		return Description(value)
	case KindPhone:
		return Phone(value)
	case KindNumber:
		if msg := Number(value, r.Min, r.Max); msg != "" || !r.Whole {
			return msg
		}
		return WholeNumber(value)
	case KindConfirm:
		var other string
		if lookup != nil {
			other = lookup(r.Field)
		}
		return ConfirmPassword(other, value)
	default:
		return ""
	}
}
