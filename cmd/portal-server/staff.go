package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ehr/portal/internal/domain/doctor"
	"github.com/ehr/portal/internal/platform/form"
)

// addStaff submits values through the staff modal and prints the outcome.
func addStaff(ctx context.Context, out io.Writer, m *form.Modal[*doctor.Doctor], values map[string]string) error {
	m.OpenCreate()
	m.Form().Fill(values)
	sub, err := m.Submit(ctx)
	if err != nil {
		return err
	}

	if len(sub.Fields) > 0 {
		names := make([]string, 0, len(sub.Fields))
		for name := range sub.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  --%s: %s\n", name, sub.Fields[name])
		}
		return errors.New("staff details are invalid")
	}
	if !sub.Result.Success() {
		return errors.New(m.SubmitError())
	}

	d := sub.Result.Data()
	fmt.Fprintf(out, "%s\n  created %s (%s) <%s>\n", m.SuccessMessage(), d.FullName, d.Role, d.Email)
	fmt.Fprintf(out, "  id: %s\n", d.ID)
	return nil
}
