package form

import (
	"fmt"
)

// Form is an ordered set of fields sharing one value namespace, so that
// confirm rules can see their sibling.
type Form struct {
	order  []string
	fields map[string]*Field
}

// New builds a form from field specs. Field names must be unique.
func New(specs ...Spec) *Form {
	f := &Form{fields: make(map[string]*Field, len(specs))}
	for _, s := range specs {
		if _, dup := f.fields[s.Name]; dup {
			panic(fmt.Sprintf("form: duplicate field %q", s.Name))
		}
		field := &Field{spec: s, value: s.Default}
		field.lookup = f.Get
		field.recompute()
		f.order = append(f.order, s.Name)
		f.fields[s.Name] = field
	}
	return f
}

// Field returns the named field or nil.
func (f *Form) Field(name string) *Field {
	return f.fields[name]
}

// Get returns the current value of name, "" for unknown fields.
func (f *Form) Get(name string) string {
	if fl, ok := f.fields[name]; ok {
		return fl.value
	}
	return ""
}

// Set changes a field as a user would. Unknown names are ignored.
func (f *Form) Set(name, value string) {
	if fl, ok := f.fields[name]; ok {
		fl.Set(value)
		f.refreshDependents(name)
	}
}

// Fill sets every known field in values, in field order, as a user would.
func (f *Form) Fill(values map[string]string) {
	for _, name := range f.order {
		if v, ok := values[name]; ok {
			f.Set(name, v)
		}
	}
}

// Blur touches a field.
func (f *Form) Blur(name string) {
	if fl, ok := f.fields[name]; ok {
		fl.Blur()
	}
}

// Load fills the form from stored values without touching any field.
func (f *Form) Load(values map[string]string) {
	for name, v := range values {
		if fl, ok := f.fields[name]; ok {
			fl.Load(v)
		}
	}
}

// Values snapshots every field value.
func (f *Form) Values() map[string]string {
	out := make(map[string]string, len(f.order))
	for _, name := range f.order {
		out[name] = f.fields[name].value
	}
	return out
}

// Validate checks every field and returns the messages keyed by field name.
// An empty map means the form may be submitted.
func (f *Form) Validate() map[string]string {
	errs := make(map[string]string)
	for _, name := range f.order {
		fl := f.fields[name]
		fl.touched = true
		if msg := fl.Check(); msg != "" {
			errs[name] = msg
		}
	}
	return errs
}

// Errors returns the messages currently visible on the form.
func (f *Form) Errors() map[string]string {
	errs := make(map[string]string)
	for _, name := range f.order {
		if d := f.fields[name].Display(); d.Error != "" {
			errs[name] = d.Error
		}
	}
	return errs
}

// Reset restores every field to its default and untouched state.
func (f *Form) Reset() {
	for _, name := range f.order {
		f.fields[name].reset()
	}
}

// refreshDependents re-checks confirm fields that compare against name.
func (f *Form) refreshDependents(name string) {
	for _, other := range f.order {
		fl := f.fields[other]
		if fl.spec.Rule.Field == name {
			fl.recompute()
		}
	}
}
