package diag

import (
	"strings"
)

// FormatShort renders diagnostics one per line in a stable order:
// "error ENC1006 C.F() cannot update ...". Notes follow their diagnostic.
func FormatShort(diags []Diagnostic, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}
	bag := NewBag(len(diags))
	for _, d := range diags {
		bag.Add(d)
	}
	bag.Sort()

	var sb strings.Builder
	for i, d := range bag.Items() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		writeLine(&sb, strings.ToLower(d.Severity.String()), d.Code, d.Primary, d.Message)
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			sb.WriteByte('\n')
			writeLine(&sb, "note", d.Code, n.Subject, n.Msg)
		}
	}
	return sb.String()
}

func writeLine(sb *strings.Builder, sev string, code Code, subject Subject, msg string) {
	sb.WriteString(sev)
	sb.WriteByte(' ')
	sb.WriteString(code.ID())
	sb.WriteByte(' ')
	sb.WriteString(subject.String())
	sb.WriteByte(' ')
	sb.WriteString(strings.Join(strings.Fields(msg), " "))
}
