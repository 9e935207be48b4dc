package scenario

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"encdelta/internal/baseline"
	"encdelta/internal/driver"
	"encdelta/internal/locals"
	"encdelta/internal/meta"
	"encdelta/internal/statemachine"
	"encdelta/internal/symbols"
)

// Step is one generation ready to hand to the driver.
type Step struct {
	Index       int
	Name        string
	Compilation *symbols.Compilation
	Edits       []driver.SymbolEdit
	Expect      ExpectSpec
}

// Module builds the generation-0 description and the locals provider that
// answers for baseline methods from their declared locals.
func (f *File) Module() (baseline.Module, baseline.LocalsProvider, error) {
	b := &builder{path: f.Path}
	var mod baseline.Module
	if f.MVID != "" {
		id, err := uuid.Parse(f.MVID)
		if err != nil {
			return mod, nil, b.fail("mvid", err.Error())
		}
		mod.MVID = id
	}
	for name, n := range f.Baseline.Sizes {
		t, ok := meta.ParseTable(name)
		if !ok {
			return mod, nil, b.fail("baseline.sizes."+name, "unknown table")
		}
		mod.Sizes.Set(t, n)
	}
	for _, t := range f.Baseline.Types {
		mod.Types = append(mod.Types, baseline.TypeDef{Key: t.Key, Container: t.Container, Row: meta.RowID(t.Row)})
	}

	sigs := make(map[string]locals.Signature, len(f.Baseline.Methods))
	for i, m := range f.Baseline.Methods {
		field := fmt.Sprintf("baseline.methods[%d]", i)
		md := baseline.MethodDef{
			Key:          m.Key,
			Container:    m.Container,
			Name:         m.Name,
			Ordinal:      m.Ordinal,
			Row:          meta.RowID(m.Row),
			Digest:       digest(m.Body),
			BodyLength:   m.Length,
			SignatureRow: meta.RowID(m.SignatureRow),
		}
		if m.StateMachine != "" {
			k, ok := statemachine.ParseTypeKind(m.StateMachine)
			if !ok || !k.IsStateMachine() {
				return mod, nil, b.fail(field+".state_machine", fmt.Sprintf("unknown state machine kind %q", m.StateMachine))
			}
			md.StateMachine = k
		}
		for _, p := range m.Params {
			md.Params = append(md.Params, meta.RowID(p))
		}
		sig, err := b.signature(field+".locals", m.Locals)
		if err != nil {
			return mod, nil, err
		}
		sigs[m.Key] = sig
		mod.Methods = append(mod.Methods, md)
	}
	for i, m := range f.Baseline.Members {
		k, ok := symbols.ParseKind(m.Kind)
		if !ok {
			return mod, nil, b.fail(fmt.Sprintf("baseline.members[%d].kind", i), fmt.Sprintf("unknown kind %q", m.Kind))
		}
		mod.Members = append(mod.Members, baseline.MemberDef{Kind: k, Key: m.Key, Container: m.Container, Row: meta.RowID(m.Row)})
	}
	for i, r := range f.Baseline.References {
		t, err := b.table(fmt.Sprintf("baseline.references[%d].table", i), r.Table)
		if err != nil {
			return mod, nil, err
		}
		mod.References = append(mod.References, baseline.ReferenceDef{Table: t, Key: r.Key, Row: meta.RowID(r.Row)})
	}
	for _, pm := range f.Baseline.PropertyMaps {
		mod.PropertyMaps = append(mod.PropertyMaps, baseline.MapDef{Type: pm.Type, Row: meta.RowID(pm.Row)})
	}
	for _, em := range f.Baseline.EventMaps {
		mod.EventMaps = append(mod.EventMaps, baseline.MapDef{Type: em.Type, Row: meta.RowID(em.Row)})
	}
	for i, st := range f.Baseline.Synthesized {
		out, err := b.synthesized(fmt.Sprintf("baseline.synthesized[%d]", i), st)
		if err != nil {
			return mod, nil, err
		}
		mod.Synthesized = append(mod.Synthesized, out)
	}

	provider := func(key string) (locals.Signature, bool) {
		sig, ok := sigs[key]
		return sig.Clone(), ok
	}
	return mod, provider, nil
}

// Initial builds generation 0.
func (f *File) Initial() (*baseline.Generation, error) {
	mod, provider, err := f.Module()
	if err != nil {
		return nil, err
	}
	return baseline.Initial(mod, provider)
}

// Steps builds the compilation and edits of every generation.
func (f *File) Steps() ([]Step, error) {
	b := &builder{path: f.Path}
	current := make(map[string]*symbols.Symbol)
	wellKnown := slices.Clone(f.WellKnown)
	steps := make([]Step, 0, len(f.Generations))
	for gi, g := range f.Generations {
		prefix := fmt.Sprintf("generation[%d]", gi)
		for si, s := range g.Symbols {
			sym, err := b.symbol(fmt.Sprintf("%s.symbols[%d]", prefix, si), s)
			if err != nil {
				return nil, err
			}
			current[sym.Key] = sym
		}
		wellKnown = append(wellKnown, g.WellKnown...)

		keys := slices.Sorted(maps.Keys(current))
		syms := make([]*symbols.Symbol, len(keys))
		for i, k := range keys {
			syms[i] = current[k]
		}
		comp, err := symbols.NewCompilation(slices.Clone(wellKnown), syms...)
		if err != nil {
			return nil, b.fail(prefix+".symbols", err.Error())
		}

		edits := make([]driver.SymbolEdit, len(g.Edits))
		for ei, e := range g.Edits {
			edit, err := b.edit(fmt.Sprintf("%s.edits[%d]", prefix, ei), e)
			if err != nil {
				return nil, err
			}
			edits[ei] = edit
		}
		name := g.Name
		if name == "" {
			name = fmt.Sprintf("generation %d", gi+1)
		}
		steps = append(steps, Step{Index: gi + 1, Name: name, Compilation: comp, Edits: edits, Expect: g.Expect})
	}
	return steps, nil
}

func digest(content string) symbols.Digest {
	if content == "" {
		return symbols.Digest{}
	}
	return symbols.HashBody(content)
}

type builder struct {
	path string
}

func (b *builder) fail(field, reason string) error {
	return &Error{Path: b.path, Field: field, Reason: reason}
}

func (b *builder) table(field, name string) (meta.TableIndex, error) {
	t, ok := meta.ParseTable(name)
	if !ok {
		return 0, b.fail(field, fmt.Sprintf("unknown table %q", name))
	}
	return t, nil
}

func (b *builder) local(field string, l LocalSpec) (locals.Descriptor, error) {
	kind := locals.KindUserDefined
	if l.Kind != "" {
		k, ok := locals.ParseKind(l.Kind)
		if !ok {
			return locals.Descriptor{}, b.fail(field+".kind", fmt.Sprintf("unknown local kind %q", l.Kind))
		}
		kind = k
	}
	if l.Type == "" {
		return locals.Descriptor{}, b.fail(field+".type", "missing")
	}
	return locals.Descriptor{Kind: kind, Type: l.Type, Name: l.Name, Position: locals.Position(l.Pos)}, nil
}

func (b *builder) locals(field string, specs []LocalSpec) ([]locals.Descriptor, error) {
	out := make([]locals.Descriptor, 0, len(specs))
	for i, l := range specs {
		d, err := b.local(fmt.Sprintf("%s[%d]", field, i), l)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (b *builder) signature(field string, specs []LocalSpec) (locals.Signature, error) {
	descs, err := b.locals(field, specs)
	if err != nil {
		return locals.Signature{}, err
	}
	sig := locals.NewSignature(descs...)
	for i, l := range specs {
		sig.Slots[i].Unused = l.Unused
	}
	return sig, nil
}

func (b *builder) synthesized(field string, st SynthTypeSpec) (baseline.SynthesizedType, error) {
	kind, ok := statemachine.ParseTypeKind(st.Kind)
	if !ok {
		return baseline.SynthesizedType{}, b.fail(field+".kind", fmt.Sprintf("unknown type kind %q", st.Kind))
	}
	out := baseline.SynthesizedType{
		Kind:          kind,
		Name:          st.Name,
		Container:     st.Container,
		Method:        st.Method,
		MethodName:    st.MethodName,
		MethodOrdinal: st.MethodOrdinal,
		Shape:         st.Shape,
		Row:           meta.RowID(st.Row),
	}
	if st.Pos != nil {
		out.Position, out.HasPosition = locals.Position(*st.Pos), true
	}
	for i, m := range st.Members {
		mf := fmt.Sprintf("%s.members[%d]", field, i)
		role, ok := statemachine.ParseRole(m.Role)
		if !ok {
			return out, b.fail(mf+".role", fmt.Sprintf("unknown role %q", m.Role))
		}
		mk, err := b.memberKind(mf+".kind", m.Kind)
		if err != nil {
			return out, err
		}
		sm := baseline.SynthesizedMember{
			Role:   role,
			Kind:   mk,
			Name:   m.Name,
			Type:   m.Type,
			Static: m.Static,
			Shared: m.Shared,
			Scope:  m.Scope,
			Params: m.Params,
			Row:    meta.RowID(m.Row),
		}
		if m.LocalKind != "" {
			lk, ok := locals.ParseKind(m.LocalKind)
			if !ok {
				return out, b.fail(mf+".local_kind", fmt.Sprintf("unknown local kind %q", m.LocalKind))
			}
			sm.LocalKind = lk
		}
		if m.Pos != nil {
			sm.Position, sm.HasPosition = locals.Position(*m.Pos), true
		}
		out.Members = append(out.Members, sm)
	}
	return out, nil
}

func (b *builder) memberKind(field, s string) (statemachine.MemberKind, error) {
	switch s {
	case "", "field":
		return statemachine.MemberField, nil
	case "method":
		return statemachine.MemberMethod, nil
	case "property":
		return statemachine.MemberProperty, nil
	}
	return 0, b.fail(field, fmt.Sprintf("unknown member kind %q", s))
}

func (b *builder) symbol(field string, s SymbolSpec) (*symbols.Symbol, error) {
	kind, ok := symbols.ParseKind(s.Kind)
	if !ok {
		return nil, b.fail(field+".kind", fmt.Sprintf("unknown symbol kind %q", s.Kind))
	}
	if s.Key == "" {
		return nil, b.fail(field+".key", "missing")
	}
	sym := &symbols.Symbol{
		Kind:       kind,
		Key:        s.Key,
		Name:       s.Name,
		Container:  s.Container,
		Ordinal:    s.Ordinal,
		Static:     s.Static,
		Params:     s.Params,
		Type:       s.Type,
		Attributes: s.Attributes,
		Accessors:  s.Accessors,
	}
	if s.Body != nil {
		body, err := b.body(field+".body", s.Body)
		if err != nil {
			return nil, err
		}
		sym.Body = body
	}
	return sym, nil
}

func (b *builder) body(field string, s *BodySpec) (*symbols.Body, error) {
	descs, err := b.locals(field+".locals", s.Locals)
	if err != nil {
		return nil, err
	}
	body := &symbols.Body{Length: s.Length, Digest: digest(s.Content), Locals: descs}
	for i, r := range s.References {
		t, err := b.table(fmt.Sprintf("%s.references[%d].table", field, i), r.Table)
		if err != nil {
			return nil, err
		}
		body.References = append(body.References, symbols.Reference{Table: t, Key: r.Key})
	}
	if sm := s.StateMachine; sm != nil {
		kind, ok := statemachine.ParseTypeKind(sm.Kind)
		if !ok || !kind.IsStateMachine() {
			return nil, b.fail(field+".state_machine.kind", fmt.Sprintf("unknown state machine kind %q", sm.Kind))
		}
		hoisted, err := b.locals(field+".state_machine.hoisted", sm.Hoisted)
		if err != nil {
			return nil, err
		}
		shape := &statemachine.StateMachineShape{
			Kind:           kind,
			ElementType:    sm.ElementType,
			Instance:       sm.Instance,
			Hoisted:        hoisted,
			FinallyHelpers: sm.Finally,
		}
		for _, aw := range sm.Awaiters {
			a := statemachine.Awaiter{Type: aw.Type}
			if aw.Pos != nil {
				a.Position, a.HasPosition = locals.Position(*aw.Pos), true
			}
			shape.Awaiters = append(shape.Awaiters, a)
		}
		body.StateMachine = shape
	}
	body.Lambdas = lambdas(s.Lambdas)
	for i, c := range s.Closures {
		shape := statemachine.ClosureShape{
			Position:     locals.Position(c.Pos),
			Parent:       -1,
			CapturesThis: c.This,
			Lambdas:      lambdas(c.Lambdas),
		}
		if c.Parent != nil {
			if *c.Parent < 0 || *c.Parent >= i {
				return nil, b.fail(fmt.Sprintf("%s.closures[%d].parent", field, i), "must name an earlier closure")
			}
			shape.Parent = *c.Parent
		}
		for _, cp := range c.Captures {
			shape.Captures = append(shape.Captures, statemachine.Capture{Name: cp.Name, Type: cp.Type})
		}
		body.Closures = append(body.Closures, shape)
	}
	for _, d := range s.Dynamic {
		body.DynamicSites = append(body.DynamicSites, statemachine.DynamicSite{Position: locals.Position(d.Pos), Type: d.Type})
	}
	for _, a := range s.Anonymous {
		var shape statemachine.AnonymousShape
		for _, m := range a.Members {
			shape.Members = append(shape.Members, statemachine.AnonymousMember{Name: m.Name, Type: m.Type})
		}
		body.AnonymousTypes = append(body.AnonymousTypes, shape)
	}
	return body, nil
}

func lambdas(specs []LambdaSpec) []statemachine.Lambda {
	if len(specs) == 0 {
		return nil
	}
	out := make([]statemachine.Lambda, len(specs))
	for i, l := range specs {
		out[i] = statemachine.Lambda{Position: locals.Position(l.Pos), Signature: l.Signature}
	}
	return out
}

func (b *builder) edit(field string, e EditSpec) (driver.SymbolEdit, error) {
	kind, ok := driver.ParseEditKind(e.Kind)
	if !ok {
		return driver.SymbolEdit{}, b.fail(field+".kind", fmt.Sprintf("unknown edit kind %q", e.Kind))
	}
	edit := driver.SymbolEdit{Kind: kind, OldKey: e.Old, NewKey: e.New, PreserveLocals: e.Preserve}
	if kind == driver.EditUpdate && edit.NewKey == "" {
		edit.NewKey = edit.OldKey
	}
	if e.SyntaxMap != nil {
		pairs := make(locals.PairMap, len(e.SyntaxMap))
		for i, p := range e.SyntaxMap {
			if len(p) != 2 {
				return driver.SymbolEdit{}, b.fail(fmt.Sprintf("%s.syntax_map[%d]", field, i), "want a [new, old] pair")
			}
			pairs[locals.Position(p[0])] = locals.Position(p[1])
		}
		edit.SyntaxMap = pairs
	}
	return edit, nil
}
