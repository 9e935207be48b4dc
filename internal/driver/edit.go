package driver

import (
	"fmt"

	"encdelta/internal/baseline"
	"encdelta/internal/delta"
	"encdelta/internal/diag"
	"encdelta/internal/locals"
	"encdelta/internal/meta"
	"encdelta/internal/observ"
	"encdelta/internal/statemachine"
)

// EditKind is the kind of a symbol edit.
type EditKind uint8

const (
	EditInsert EditKind = iota + 1
	EditUpdate
)

func (k EditKind) String() string {
	switch k {
	case EditInsert:
		return "insert"
	case EditUpdate:
		return "update"
	}
	return "unknown"
}

// ParseEditKind converts a string to EditKind.
func ParseEditKind(s string) (EditKind, bool) {
	switch s {
	case "insert":
		return EditInsert, true
	case "update":
		return EditUpdate, true
	}
	return 0, false
}

// SymbolEdit is one change the caller asks to apply. OldKey is ignored for
// inserts. SyntaxMap maps positions of the new body to the old one; nil means
// identity.
type SymbolEdit struct {
	Kind           EditKind
	OldKey         string
	NewKey         string
	SyntaxMap      locals.NodeCorrespondence
	PreserveLocals bool
}

// Options tune one EmitDifference call.
type Options struct {
	// Order is the EncLog emission order; the zero value means observed.
	Order meta.EmissionOrder
	// Jobs bounds per-method parallelism; 0 means GOMAXPROCS.
	Jobs int
	// Equivalence decides slot type compatibility; nil means exact.
	Equivalence    locals.TypeEquivalence
	MaxDiagnostics int
	Sink           ProgressSink
}

func (o Options) order() meta.EmissionOrder {
	if len(o.Order.Groups) == 0 {
		return meta.ObservedOrder()
	}
	return o.Order
}

// MethodResult is what the emitter needs to write one method body.
type MethodResult struct {
	Key    string
	Handle meta.Handle
	// Signature is the local signature of the body; for a state machine it is
	// the signature of MoveNext.
	Signature    locals.Signature
	Slots        []int
	Reused       int
	SignatureRow meta.RowID
	StateMachine string
}

// Result is the outcome of one accepted generation.
type Result struct {
	Generation *baseline.Generation
	Delta      *delta.Delta
	Methods    map[string]MethodResult
	// MemberSets are keyed by the qualified name of the synthesized type.
	MemberSets map[string]statemachine.MemberSet
	Timings    observ.Report
}

// MemberNames renders the member set of a synthesized type.
func (r *Result) MemberNames(typeName string) []string {
	set, ok := r.MemberSets[typeName]
	if !ok {
		return nil
	}
	return set.Names(r.Generation.Arena())
}

// EditErrorKind enumerates malformed edit batches.
type EditErrorKind uint8

const (
	EditErrUnknownSymbol EditErrorKind = iota + 1
	EditErrDuplicate
	EditErrAlreadyDefined
	EditErrUnsupported
	EditErrRename
	EditErrMissingContainer
	EditErrPositionOutOfRange
	EditErrSyntaxMapOutOfRange
	EditErrMissingBody
)

func (k EditErrorKind) code() diag.Code {
	switch k {
	case EditErrUnknownSymbol:
		return diag.EncUnknownSymbol
	case EditErrDuplicate:
		return diag.EncDuplicateEdit
	case EditErrAlreadyDefined:
		return diag.EncAlreadyDefined
	case EditErrUnsupported:
		return diag.EncUnsupportedEdit
	case EditErrRename:
		return diag.EncRenameNotSupported
	case EditErrMissingContainer:
		return diag.EncMissingContainer
	case EditErrPositionOutOfRange:
		return diag.EncPositionOutOfRange
	case EditErrSyntaxMapOutOfRange:
		return diag.EncSyntaxMapOutOfRange
	case EditErrMissingBody:
		return diag.EncMissingBody
	}
	return diag.UnknownCode
}

// EditError reports one malformed edit. No work is done for a batch that
// has any.
type EditError struct {
	Kind        EditErrorKind
	Index       int
	Key         string
	Position    locals.Position
	HasPosition bool
	Reason      string
}

func (e *EditError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.HasPosition {
		return fmt.Sprintf("edit %d (%s@%d): %s", e.Index, e.Key, e.Position, e.Reason)
	}
	return fmt.Sprintf("edit %d (%s): %s", e.Index, e.Key, e.Reason)
}

func (e *EditError) subject() diag.Subject {
	if e.HasPosition {
		return diag.AtPosition(e.Key, uint32(e.Position))
	}
	return diag.At(e.Key)
}

// RejectError is returned for a generation that could not be computed. The
// previous generation is unchanged.
type RejectError struct {
	Generation  int
	Diagnostics *diag.Bag
	cause       error
}

func (e *RejectError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("driver: generation %d rejected: %v", e.Generation, e.cause)
}

func (e *RejectError) Unwrap() error { return e.cause }
