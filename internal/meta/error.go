package meta

import "fmt"

// AppendOnlyViolation is the panic payload raised when a delta would rewrite
// or skip an existing row.
type AppendOnlyViolation struct {
	Handle Handle
	Base   uint32
	Reason string
}

func (e *AppendOnlyViolation) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("append-only violation on %s (baseline rows=%d): %s", e.Handle, e.Base, e.Reason)
}
