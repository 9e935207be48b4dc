package meta

import "fmt"

// RowID is a 1-based row number inside one table.
type RowID uint32

// NoRowID marks the absence of a row.
const NoRowID RowID = 0

// IsValid reports whether the row id refers to an allocated row.
func (r RowID) IsValid() bool { return r != NoRowID }

// Handle addresses one row of one table.
type Handle struct {
	Table TableIndex
	Row   RowID
}

// NilHandle is the zero handle.
var NilHandle Handle

// MakeHandle builds a handle for table t and row r.
func MakeHandle(t TableIndex, r RowID) Handle { return Handle{Table: t, Row: r} }

// IsNil reports whether h addresses no row.
func (h Handle) IsNil() bool { return !h.Row.IsValid() }

// Token returns the metadata token: table in the high byte, row in the low 24 bits.
func (h Handle) Token() uint32 {
	return uint32(h.Table)<<24 | uint32(h.Row)&0x00FFFFFF
}

// Less orders handles by table index, then row.
func (h Handle) Less(other Handle) bool {
	if h.Table != other.Table {
		return h.Table < other.Table
	}
	return h.Row < other.Row
}

func (h Handle) String() string {
	return fmt.Sprintf("%s(0x%08X)", h.Table, h.Token())
}
