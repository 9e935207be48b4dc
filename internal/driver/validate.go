package driver

import (
	"fmt"

	"encdelta/internal/baseline"
	"encdelta/internal/diag"
	"encdelta/internal/locals"
	"encdelta/internal/statemachine"
	"encdelta/internal/symbols"
)

// checkedEdit is an edit that passed validation, resolved against both sides.
type checkedEdit struct {
	index  int
	edit   SymbolEdit
	sym    *symbols.Symbol
	old    baseline.MethodInfo
	hasOld bool
}

func (e *checkedEdit) key() string { return e.sym.Key }

func (e *checkedEdit) isMethod() bool { return e.sym.Kind == symbols.KindMethod }

type validator struct {
	prev     *baseline.Generation
	comp     *symbols.Compilation
	reporter diag.Reporter
	errs     []*EditError
	inserted map[string]symbols.Kind
}

func (v *validator) fail(e *EditError) {
	v.errs = append(v.errs, e)
	diag.ReportError(v.reporter, e.Kind.code(), e.subject(), e.Reason).Emit()
}

// validate resolves every edit and reports all malformed ones. It returns the
// first problem as the error.
func validate(prev *baseline.Generation, comp *symbols.Compilation, edits []SymbolEdit, reporter diag.Reporter) ([]checkedEdit, error) {
	v := &validator{
		prev:     prev,
		comp:     comp,
		reporter: reporter,
		inserted: make(map[string]symbols.Kind),
	}
	for _, e := range edits {
		if e.Kind != EditInsert {
			continue
		}
		if sym, ok := comp.Lookup(e.NewKey); ok {
			v.inserted[sym.Key] = sym.Kind
		}
	}

	seen := make(map[string]int, len(edits))
	out := make([]checkedEdit, 0, len(edits))
	for i, e := range edits {
		ce, ok := v.check(i, e, seen)
		if ok {
			out = append(out, ce)
		}
	}
	if len(v.errs) > 0 {
		return nil, v.errs[0]
	}
	return out, nil
}

func (v *validator) check(i int, e SymbolEdit, seen map[string]int) (checkedEdit, bool) {
	key := e.NewKey
	if e.Kind == EditUpdate && key == "" {
		key = e.OldKey
	}
	if key == "" {
		v.fail(&EditError{Kind: EditErrUnknownSymbol, Index: i, Reason: "edit names no symbol"})
		return checkedEdit{}, false
	}
	if e.Kind != EditInsert && e.Kind != EditUpdate {
		v.fail(&EditError{Kind: EditErrUnsupported, Index: i, Key: key, Reason: fmt.Sprintf("unknown edit kind %d", e.Kind)})
		return checkedEdit{}, false
	}
	if first, dup := seen[key]; dup {
		v.fail(&EditError{Kind: EditErrDuplicate, Index: i, Key: key, Reason: fmt.Sprintf("already edited by edit %d", first)})
		return checkedEdit{}, false
	}
	seen[key] = i

	sym, ok := v.comp.Lookup(key)
	if !ok {
		v.fail(&EditError{Kind: EditErrUnknownSymbol, Index: i, Key: key, Reason: "not declared in the new compilation"})
		return checkedEdit{}, false
	}
	ce := checkedEdit{index: i, edit: e, sym: sym}

	switch e.Kind {
	case EditInsert:
		if v.prev.IsDefined(key) {
			v.fail(&EditError{Kind: EditErrAlreadyDefined, Index: i, Key: key, Reason: "already emitted by an earlier generation"})
			return ce, false
		}
		if sym.Container != "" && !v.isType(sym.Container) {
			v.fail(&EditError{Kind: EditErrMissingContainer, Index: i, Key: key,
				Reason: fmt.Sprintf("containing type %s is neither emitted nor inserted", sym.Container)})
			return ce, false
		}
		for _, acc := range sym.Accessors {
			if _, ok := v.prev.Method(acc); ok {
				continue
			}
			if v.inserted[acc] != symbols.KindMethod {
				v.fail(&EditError{Kind: EditErrUnknownSymbol, Index: i, Key: key,
					Reason: fmt.Sprintf("accessor %s is neither emitted nor inserted", acc)})
				return ce, false
			}
		}

	case EditUpdate:
		if e.OldKey != "" && e.OldKey != e.NewKey && e.NewKey != "" {
			v.fail(&EditError{Kind: EditErrRename, Index: i, Key: key,
				Reason: fmt.Sprintf("update from %s to %s changes the symbol identity", e.OldKey, e.NewKey)})
			return ce, false
		}
		if !v.prev.IsDefined(key) {
			v.fail(&EditError{Kind: EditErrUnknownSymbol, Index: i, Key: key, Reason: "not emitted by an earlier generation"})
			return ce, false
		}
		switch sym.Kind {
		case symbols.KindMethod:
			old, ok := v.prev.Method(key)
			if !ok {
				v.fail(&EditError{Kind: EditErrUnsupported, Index: i, Key: key, Reason: "symbol was emitted as a member, not a method"})
				return ce, false
			}
			if sym.Body == nil {
				v.fail(&EditError{Kind: EditErrMissingBody, Index: i, Key: key, Reason: "updated method has no body"})
				return ce, false
			}
			ce.old, ce.hasOld = old, true
		case symbols.KindType:
			if d, _ := v.prev.Definition(key); d.Kind != symbols.KindType {
				v.fail(&EditError{Kind: EditErrUnsupported, Index: i, Key: key, Reason: "symbol was not emitted as a type"})
				return ce, false
			}
		default:
			v.fail(&EditError{Kind: EditErrUnsupported, Index: i, Key: key,
				Reason: fmt.Sprintf("a %s cannot be updated; only methods and types can", sym.Kind)})
			return ce, false
		}
	}

	if sym.Kind == symbols.KindMethod && sym.Body != nil {
		if !v.checkReferences(&ce) || !v.checkPositions(&ce) {
			return ce, false
		}
	}
	return ce, true
}

func (v *validator) isType(key string) bool {
	if d, ok := v.prev.Definition(key); ok {
		return d.Kind == symbols.KindType
	}
	return v.inserted[key] == symbols.KindType
}

func (v *validator) checkReferences(ce *checkedEdit) bool {
	for _, r := range ce.sym.Body.References {
		if !r.Table.IsReference() {
			v.fail(&EditError{Kind: EditErrUnsupported, Index: ce.index, Key: ce.key(),
				Reason: fmt.Sprintf("body references %s, which is not a reference table", r.Table)})
			return false
		}
	}
	return true
}

// checkPositions rejects declared positions outside the new body and mapped
// positions outside the old one. A zero length leaves that side unchecked.
func (v *validator) checkPositions(ce *checkedEdit) bool {
	body := ce.sym.Body
	for _, pos := range body.Positions() {
		if body.Length > 0 && uint32(pos) >= body.Length {
			v.fail(&EditError{Kind: EditErrPositionOutOfRange, Index: ce.index, Key: ce.key(), Position: pos, HasPosition: true,
				Reason: fmt.Sprintf("position %d is outside the body (length %d)", pos, body.Length)})
			return false
		}
		if !ce.hasOld || ce.edit.SyntaxMap == nil || ce.old.BodyLength == 0 {
			continue
		}
		if old, ok := locals.MapOrIdentity(ce.edit.SyntaxMap, pos); ok && uint32(old) >= ce.old.BodyLength {
			v.fail(&EditError{Kind: EditErrSyntaxMapOutOfRange, Index: ce.index, Key: ce.key(), Position: pos, HasPosition: true,
				Reason: fmt.Sprintf("position %d maps to %d, outside the old body (length %d)", pos, old, ce.old.BodyLength)})
			return false
		}
	}
	return true
}

// gate rejects edits that cross the state machine boundary when the marking
// attribute is neither provided by the runtime nor defined in the chain or
// the batch.
func gate(prev *baseline.Generation, comp *symbols.Compilation, edits []checkedEdit, reporter diag.Reporter) error {
	inserted := make(map[string]bool)
	for _, ce := range edits {
		if ce.edit.Kind != EditInsert {
			continue
		}
		switch {
		case ce.sym.IsAttributeType():
			inserted[ce.key()] = true
		case ce.sym.Kind == symbols.KindMethod && ce.key() == statemachine.AttributeConstructor(ce.sym.Container):
			inserted[ce.key()] = true
		}
	}
	// a declared attribute is usable once both the type and its constructor exist
	declared := func(key string) bool { return inserted[key] || prev.IsDefined(key) }
	available := func(attr string) bool {
		if comp.HasWellKnown(attr) {
			return true
		}
		return declared(attr) && declared(statemachine.AttributeConstructor(attr))
	}

	var first error
	for _, ce := range edits {
		if !ce.isMethod() {
			continue
		}
		var kinds []statemachine.TypeKind
		if k, ok := ce.sym.Body.StateMachineKind(); ok {
			kinds = append(kinds, k)
		}
		if ce.hasOld && ce.old.StateMachine.IsStateMachine() {
			kinds = append(kinds, ce.old.StateMachine)
		}
		for _, k := range kinds {
			attr, _ := statemachine.AttributeFor(k)
			if available(attr) {
				continue
			}
			err := &statemachine.MissingAttributeError{Method: ce.key(), Attribute: attr}
			diag.ReportError(reporter, diag.EncMissingStateMachineAttribute, diag.At(ce.key()), err.Error()).Emit()
			if first == nil {
				first = err
			}
			break
		}
	}
	return first
}
