package scenario

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"encdelta/internal/driver"
	"encdelta/internal/meta"
)

// Mismatch reports a generation whose outcome differs from its expectations.
type Mismatch struct {
	Step    int
	Name    string
	Details []string
}

func (m *Mismatch) Error() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (generation %d): %s", m.Name, m.Step, strings.Join(m.Details, "; "))
}

// Empty reports whether nothing is checked.
func (e ExpectSpec) Empty() bool {
	return e.Error == "" && e.Log == nil && e.Map == nil && len(e.Slots) == 0 &&
		len(e.Locals) == 0 && len(e.StateMachine) == 0 && len(e.Members) == 0 && len(e.Added) == 0
}

// Check compares the outcome of applying s with its expectations. A
// rejection is a mismatch unless the expectations name one of its
// diagnostics; errors other than rejections are returned as they are.
func (s Step) Check(res *driver.Result, err error) error {
	var details []string
	if err != nil {
		var rej *driver.RejectError
		if !errors.As(err, &rej) {
			return err
		}
		if s.Expect.Error == "" {
			details = append(details, "unexpected rejection: "+err.Error())
		} else if !rej.Diagnostics.HasID(s.Expect.Error) {
			details = append(details, fmt.Sprintf("rejected without %s: %v", s.Expect.Error, err))
		}
		return s.mismatch(details)
	}
	if s.Expect.Error != "" {
		return s.mismatch([]string{fmt.Sprintf("accepted, want %s", s.Expect.Error)})
	}

	if s.Expect.Log != nil {
		details = append(details, compareLines("EncLog", s.Expect.Log, res.Delta.LogLines())...)
	}
	if s.Expect.Map != nil {
		details = append(details, compareLines("EncMap", s.Expect.Map, res.Delta.MapLines())...)
	}
	for _, key := range slices.Sorted(maps.Keys(s.Expect.Slots)) {
		m, ok := res.Methods[key]
		if !ok {
			details = append(details, fmt.Sprintf("%s: not emitted", key))
			continue
		}
		if want := s.Expect.Slots[key]; !slices.Equal(want, m.Slots) {
			details = append(details, fmt.Sprintf("%s: slots %v, want %v", key, m.Slots, want))
		}
	}
	for _, key := range slices.Sorted(maps.Keys(s.Expect.Locals)) {
		m, ok := res.Methods[key]
		if !ok {
			details = append(details, fmt.Sprintf("%s: not emitted", key))
			continue
		}
		details = append(details, compareLines(key+" locals", s.Expect.Locals[key], m.Signature.Lines())...)
	}
	for _, key := range slices.Sorted(maps.Keys(s.Expect.StateMachine)) {
		m, ok := res.Methods[key]
		if !ok {
			details = append(details, fmt.Sprintf("%s: not emitted", key))
			continue
		}
		if want := s.Expect.StateMachine[key]; m.StateMachine != want {
			details = append(details, fmt.Sprintf("%s: state machine %q, want %q", key, m.StateMachine, want))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(s.Expect.Members)) {
		details = append(details, compareLines(name+" members", s.Expect.Members[name], res.MemberNames(name))...)
	}
	for _, name := range slices.Sorted(maps.Keys(s.Expect.Added)) {
		t, ok := meta.ParseTable(name)
		if !ok {
			details = append(details, fmt.Sprintf("unknown table %q", name))
			continue
		}
		if got, want := res.Delta.Added(t), s.Expect.Added[name]; got != want {
			details = append(details, fmt.Sprintf("%d rows added to %s, want %d", got, t, want))
		}
	}
	return s.mismatch(details)
}

func (s Step) mismatch(details []string) error {
	if len(details) == 0 {
		return nil
	}
	return &Mismatch{Step: s.Index, Name: s.Name, Details: details}
}

func compareLines(what string, want, got []string) []string {
	if slices.Equal(want, got) {
		return nil
	}
	var out []string
	for i := range max(len(want), len(got)) {
		switch {
		case i >= len(got):
			out = append(out, fmt.Sprintf("%s[%d]: missing %s", what, i, want[i]))
		case i >= len(want):
			out = append(out, fmt.Sprintf("%s[%d]: unexpected %s", what, i, got[i]))
		case want[i] != got[i]:
			out = append(out, fmt.Sprintf("%s[%d]: %s, want %s", what, i, got[i], want[i]))
		}
	}
	return out
}
