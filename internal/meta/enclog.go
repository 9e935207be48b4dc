package meta

import (
	"fmt"
	"slices"
)

// Operation is the EnC edit code carried by an EncLog entry.
type Operation uint8

const (
	OpDefault Operation = iota
	OpAddField
	OpAddMethod
	OpAddParameter
	OpAddProperty
	OpAddEvent
)

var opNames = [...]string{
	OpDefault:      "Default",
	OpAddField:     "AddField",
	OpAddMethod:    "AddMethod",
	OpAddParameter: "AddParameter",
	OpAddProperty:  "AddProperty",
	OpAddEvent:     "AddEvent",
}

func (op Operation) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Operation(%d)", uint8(op))
}

// AddOpFor returns the operation that announces a new child row of table t
// on its parent's log entry.
func AddOpFor(t TableIndex) (Operation, bool) {
	switch t {
	case TableField:
		return OpAddField, true
	case TableMethodDef:
		return OpAddMethod, true
	case TableParam:
		return OpAddParameter, true
	case TableProperty:
		return OpAddProperty, true
	case TableEvent:
		return OpAddEvent, true
	}
	return OpDefault, false
}

// LogEntry is one EncLog row.
type LogEntry struct {
	Row   RowID
	Table TableIndex
	Op    Operation
}

// Handle returns the handle the entry refers to.
func (e LogEntry) Handle() Handle { return Handle{Table: e.Table, Row: e.Row} }

func (e LogEntry) String() string {
	return fmt.Sprintf("Row(%d, TableIndex.%s, EditAndContinueOperation.%s)", e.Row, e.Table, e.Op)
}

// MapEntry is one EncMap row.
type MapEntry struct {
	Table TableIndex
	Row   RowID
}

// Handle returns the handle the entry refers to.
func (e MapEntry) Handle() Handle { return Handle{Table: e.Table, Row: e.Row} }

func (e MapEntry) String() string {
	return fmt.Sprintf("Handle(%d, TableIndex.%s)", e.Row, e.Table)
}

// SortMap orders EncMap entries by (table, row) and drops duplicates.
func SortMap(entries []MapEntry) []MapEntry {
	slices.SortFunc(entries, func(a, b MapEntry) int {
		if a.Table != b.Table {
			return int(a.Table) - int(b.Table)
		}
		switch {
		case a.Row < b.Row:
			return -1
		case a.Row > b.Row:
			return 1
		}
		return 0
	})
	return slices.Compact(entries)
}
