package meta

import (
	"fmt"
	"strings"
)

// TableSizes holds the cumulative row count of every table.
type TableSizes [TableCount]uint32

// Get returns the row count of table t.
func (s TableSizes) Get(t TableIndex) uint32 {
	if int(t) >= TableCount {
		return 0
	}
	return s[t]
}

// Set overrides the row count of table t.
func (s *TableSizes) Set(t TableIndex, n uint32) {
	if int(t) >= TableCount {
		panic(fmt.Sprintf("meta: table index 0x%02X out of range", uint8(t)))
	}
	s[t] = n
}

// Contains reports whether h names a row that already exists.
func (s TableSizes) Contains(h Handle) bool {
	return h.Row.IsValid() && uint32(h.Row) <= s.Get(h.Table)
}

// Shrunk reports the first table whose row count in next is below the one in s.
func (s TableSizes) Shrunk(next TableSizes) (TableIndex, bool) {
	for i := range s {
		if next[i] < s[i] {
			return TableIndex(i), true
		}
	}
	return 0, false
}

func (s TableSizes) String() string {
	var sb strings.Builder
	for i, n := range s {
		if n == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%d", TableIndex(i), n)
	}
	return sb.String()
}
