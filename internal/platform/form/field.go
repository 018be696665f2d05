// Package form models portal input controls and the modal submit workflow:
// fields pair a value with a validation rule and a touched flag, a Form
// groups fields, and a Modal drives validate -> remote call -> reset.
package form

import (
	"strings"

	"github.com/ehr/portal/internal/platform/validation"
)

// State is the per-field lifecycle. Once touched a field never returns to
// Untouched.
type State int

const (
	Untouched State = iota
	TouchedValid
	TouchedInvalid
)

func (s State) String() string {
	switch s {
	case TouchedValid:
		return "touched-valid"
	case TouchedInvalid:
		return "touched-invalid"
	default:
		return "untouched"
	}
}

// Spec declares a field.
type Spec struct {
	Name     string
	Label    string
	Required bool
	Rule     validation.Rule
	// Masked marks password-style inputs whose text is hidden by default.
	Masked  bool
	Default string
}

// Display is what an input renders: a valid mark, an invalid mark with its
// message, or neither.
type Display struct {
	Valid   bool
	Invalid bool
	Error   string
}

// Field is a single input control.
type Field struct {
	spec    Spec
	value   string
	touched bool
	shown   bool
	message string
	valid   bool
	lookup  func(string) string
}

// NewField builds a field holding its default value.
func NewField(spec Spec) *Field {
	f := &Field{spec: spec, value: spec.Default}
	f.recompute()
	return f
}

func (f *Field) Name() string  { return f.spec.Name }
func (f *Field) Label() string { return f.spec.Label }
func (f *Field) Value() string { return f.value }
func (f *Field) Touched() bool { return f.touched }

// Set records a change. The first change touches the field.
func (f *Field) Set(value string) {
	f.value = value
	f.touched = true
	f.recompute()
}

// Blur records focus leaving the field.
func (f *Field) Blur() {
	f.touched = true
	f.recompute()
}

// Load replaces the value without touching the field, as when an edit form
// is filled from a stored record.
func (f *Field) Load(value string) {
	f.value = value
	f.recompute()
}

// ToggleMask flips show/hide for masked fields. Validation is unaffected.
func (f *Field) ToggleMask() {
	if f.spec.Masked {
		f.shown = !f.shown
	}
}

// Revealed reports whether the field text should be shown in clear.
func (f *Field) Revealed() bool {
	return !f.spec.Masked || f.shown
}

func (f *Field) State() State {
	if !f.touched {
		return Untouched
	}
	if f.message != "" {
		return TouchedInvalid
	}
	return TouchedValid
}

// Display returns the visible state. Untouched empty fields surface nothing.
func (f *Field) Display() Display {
	if !f.touched && f.value == "" {
		return Display{}
	}
	if f.message != "" {
		return Display{Invalid: true, Error: f.message}
	}
	return Display{Valid: f.valid}
}

// Check evaluates the field regardless of touched state, the way a submit
// does.
func (f *Field) Check() string {
	f.recompute()
	return f.message
}

func (f *Field) recompute() {
	empty := strings.TrimSpace(f.value) == ""
	switch {
	case f.spec.Required && empty:
		f.message = f.spec.Label + " is required"
		f.valid = false
	case !f.spec.Rule.IsZero() && !empty:
		f.message = f.spec.Rule.Check(f.value, f.lookup)
		f.valid = f.message == ""
	case empty:
		// neutral: nothing to report, nothing to approve
		f.message = ""
		f.valid = false
	default:
		f.message = ""
		f.valid = true
	}
}

func (f *Field) reset() {
	f.value = f.spec.Default
	f.touched = false
	f.shown = false
	f.recompute()
}
