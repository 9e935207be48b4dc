// Package delta assembles the metadata rows of one generation and writes them
// out as EncLog and EncMap entries.
package delta

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"encdelta/internal/meta"
)

// Row is one row the delta adds or rewrites.
type Row struct {
	Handle meta.Handle
	// Parent is the row that announces this one with an Add* operation.
	Parent meta.Handle
	Key    string
	Update bool
}

// Delta is the complete metadata difference of one generation.
type Delta struct {
	Generation int
	EncID      uuid.UUID
	BaseID     uuid.UUID
	Order      string
	Log        []meta.LogEntry
	Map        []meta.MapEntry
	Rows       []Row
	// Sizes are the cumulative row counts after the delta is applied.
	Sizes meta.TableSizes
	// References added by this delta, keyed like baseline references.
	References   map[string]meta.Handle
	PropertyMaps map[string]meta.RowID
	EventMaps    map[string]meta.RowID
}

// Added counts the new rows of table t.
func (d *Delta) Added(t meta.TableIndex) int {
	n := 0
	for _, r := range d.Rows {
		if r.Handle.Table == t && !r.Update {
			n++
		}
	}
	return n
}

// Updated lists the rows the delta rewrites.
func (d *Delta) Updated() []meta.Handle {
	var out []meta.Handle
	for _, r := range d.Rows {
		if r.Update {
			out = append(out, r.Handle)
		}
	}
	return out
}

// Row finds the row recorded for a handle.
func (d *Delta) Row(h meta.Handle) (Row, bool) {
	for _, r := range d.Rows {
		if r.Handle == h {
			return r, true
		}
	}
	return Row{}, false
}

// LogLines renders the EncLog the way EnC tests print it.
func (d *Delta) LogLines() []string {
	out := make([]string, len(d.Log))
	for i, e := range d.Log {
		out[i] = e.String()
	}
	return out
}

// MapLines renders the EncMap the way EnC tests print it.
func (d *Delta) MapLines() []string {
	out := make([]string, len(d.Map))
	for i, e := range d.Map {
		out[i] = e.String()
	}
	return out
}

func (d *Delta) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "generation %d (%s)\n", d.Generation, d.EncID)
	for _, line := range d.LogLines() {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}
