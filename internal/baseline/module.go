package baseline

import (
	"fmt"

	"github.com/google/uuid"

	"encdelta/internal/locals"
	"encdelta/internal/meta"
	"encdelta/internal/statemachine"
	"encdelta/internal/symbols"
)

// Module describes the original compiled module that generation 0 stands for.
type Module struct {
	MVID         uuid.UUID
	Sizes        meta.TableSizes
	Types        []TypeDef
	Methods      []MethodDef
	Members      []MemberDef
	References   []ReferenceDef
	PropertyMaps []MapDef
	EventMaps    []MapDef
	Synthesized  []SynthesizedType
}

// TypeDef is a user type of the original module.
type TypeDef struct {
	Key       string
	Container string
	Row       meta.RowID
}

// MethodDef is a method of the original module.
type MethodDef struct {
	Key          string
	Container    string
	Name         string
	Ordinal      int
	Row          meta.RowID
	Digest       symbols.Digest
	BodyLength   uint32
	StateMachine statemachine.TypeKind
	// Signature overrides the locals provider when set.
	Signature    *locals.Signature
	SignatureRow meta.RowID
	Params       []meta.RowID
}

// MemberDef is a field, property or event of the original module.
type MemberDef struct {
	Kind      symbols.Kind
	Key       string
	Container string
	Row       meta.RowID
}

// ReferenceDef is a reference row of the original module.
type ReferenceDef struct {
	Table meta.TableIndex
	Key   string
	Row   meta.RowID
}

// MapDef is a PropertyMap or EventMap row.
type MapDef struct {
	Type string
	Row  meta.RowID
}

// SynthesizedType is a compiler-generated type of the original module.
type SynthesizedType struct {
	Kind          statemachine.TypeKind
	Name          string
	Container     string
	Method        string
	MethodName    string
	MethodOrdinal int
	Position      locals.Position
	HasPosition   bool
	Shape         string
	Row           meta.RowID
	Members       []SynthesizedMember
}

// SynthesizedMember is a member of a compiler-generated type.
type SynthesizedMember struct {
	Role        statemachine.Role
	Kind        statemachine.MemberKind
	Name        string
	Type        string
	LocalKind   locals.Kind
	Position    locals.Position
	HasPosition bool
	Static      bool
	Shared      bool
	// Scope overrides the owning method, for lambda cache members.
	Scope  string
	Params int
	Row    meta.RowID
}

// ModuleError reports an inconsistent module description.
type ModuleError struct {
	Key    string
	Handle meta.Handle
	Reason string
}

func (e *ModuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Handle.IsNil() {
		return fmt.Sprintf("baseline: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("baseline: %s (%s): %s", e.Key, e.Handle, e.Reason)
}

func memberTable(k statemachine.MemberKind) meta.TableIndex {
	switch k {
	case statemachine.MemberMethod:
		return meta.TableMethodDef
	case statemachine.MemberProperty:
		return meta.TableProperty
	default:
		return meta.TableField
	}
}

func symbolTable(k symbols.Kind) meta.TableIndex {
	switch k {
	case symbols.KindType:
		return meta.TableTypeDef
	case symbols.KindMethod:
		return meta.TableMethodDef
	case symbols.KindProperty:
		return meta.TableProperty
	case symbols.KindEvent:
		return meta.TableEvent
	default:
		return meta.TableField
	}
}

// Initial builds generation 0 from the original module.
func Initial(mod Module, provider LocalsProvider) (*Generation, error) {
	g := &Generation{
		ordinal:      0,
		encID:        mod.MVID,
		sizes:        mod.Sizes,
		methods:      make(map[string]*MethodInfo, len(mod.Methods)),
		defs:         make(map[string]Definition, len(mod.Types)+len(mod.Members)),
		refs:         make(map[string]meta.Handle, len(mod.References)),
		propertyMaps: make(map[string]meta.RowID, len(mod.PropertyMaps)),
		eventMaps:    make(map[string]meta.RowID, len(mod.EventMaps)),
		arena:        statemachine.NewArena(uint32(min(len(mod.Synthesized), 1<<16))), //nolint:gosec // bounded by min
		provider:     provider,
	}
	if g.encID == uuid.Nil {
		g.encID = uuid.New()
	}

	check := func(key string, h meta.Handle) error {
		if !g.sizes.Contains(h) {
			return &ModuleError{Key: key, Handle: h, Reason: "row outside the table"}
		}
		return nil
	}
	define := func(d Definition) error {
		if err := check(d.Key, d.Handle); err != nil {
			return err
		}
		if g.IsDefined(d.Key) {
			return &ModuleError{Key: d.Key, Reason: "declared twice"}
		}
		g.defs[d.Key] = d
		return nil
	}

	for _, t := range mod.Types {
		if err := define(Definition{Kind: symbols.KindType, Key: t.Key, Container: t.Container, Handle: meta.MakeHandle(meta.TableTypeDef, t.Row)}); err != nil {
			return nil, err
		}
	}
	for _, m := range mod.Members {
		if m.Kind == symbols.KindType || m.Kind == symbols.KindMethod {
			return nil, &ModuleError{Key: m.Key, Reason: fmt.Sprintf("%s listed as a member", m.Kind)}
		}
		if err := define(Definition{Kind: m.Kind, Key: m.Key, Container: m.Container, Handle: meta.MakeHandle(symbolTable(m.Kind), m.Row)}); err != nil {
			return nil, err
		}
	}
	for _, m := range mod.Methods {
		h := meta.MakeHandle(meta.TableMethodDef, m.Row)
		if err := check(m.Key, h); err != nil {
			return nil, err
		}
		if g.IsDefined(m.Key) {
			return nil, &ModuleError{Key: m.Key, Reason: "declared twice"}
		}
		info := &MethodInfo{
			Key:          m.Key,
			Container:    m.Container,
			Name:         m.Name,
			Ordinal:      m.Ordinal,
			Handle:       h,
			Digest:       m.Digest,
			BodyLength:   m.BodyLength,
			StateMachine: m.StateMachine,
			SignatureRow: m.SignatureRow,
		}
		if m.Signature != nil {
			info.Signature = m.Signature.Clone()
			info.HasSignature = true
		}
		if m.SignatureRow.IsValid() {
			if err := check(m.Key, meta.MakeHandle(meta.TableStandAloneSig, m.SignatureRow)); err != nil {
				return nil, err
			}
		}
		for _, p := range m.Params {
			ph := meta.MakeHandle(meta.TableParam, p)
			if err := check(m.Key, ph); err != nil {
				return nil, err
			}
			info.Params = append(info.Params, ph)
		}
		g.methods[m.Key] = info
	}
	for _, r := range mod.References {
		h := meta.MakeHandle(r.Table, r.Row)
		if !r.Table.IsReference() {
			return nil, &ModuleError{Key: r.Key, Handle: h, Reason: "not a reference table"}
		}
		if err := check(r.Key, h); err != nil {
			return nil, err
		}
		g.refs[ReferenceKey(r.Table, r.Key)] = h
	}
	for _, pm := range mod.PropertyMaps {
		if err := check(pm.Type, meta.MakeHandle(meta.TablePropertyMap, pm.Row)); err != nil {
			return nil, err
		}
		g.propertyMaps[pm.Type] = pm.Row
	}
	for _, em := range mod.EventMaps {
		if err := check(em.Type, meta.MakeHandle(meta.TableEventMap, em.Row)); err != nil {
			return nil, err
		}
		g.eventMaps[em.Type] = em.Row
	}
	for _, st := range mod.Synthesized {
		if err := g.addSynthesized(st); err != nil {
			return nil, err
		}
	}
	g.arena.Seed()
	return g, nil
}

func (g *Generation) addSynthesized(st SynthesizedType) error {
	var th meta.Handle
	if st.Row.IsValid() {
		th = meta.MakeHandle(meta.TableTypeDef, st.Row)
		if !g.sizes.Contains(th) {
			return &ModuleError{Key: st.Name, Handle: th, Reason: "row outside the table"}
		}
	}
	if g.arena.TypeByName(st.Container, st.Name).IsValid() {
		return &ModuleError{Key: st.Name, Reason: "synthesized type declared twice"}
	}
	id := g.arena.NewType(statemachine.Type{
		Kind:          st.Kind,
		Name:          st.Name,
		Container:     st.Container,
		Method:        st.Method,
		MethodName:    st.MethodName,
		MethodOrdinal: st.MethodOrdinal,
		Position:      st.Position,
		HasPosition:   st.HasPosition,
		Shape:         st.Shape,
		Handle:        th,
	})
	for _, m := range st.Members {
		var mh meta.Handle
		if m.Row.IsValid() {
			mh = meta.MakeHandle(memberTable(m.Kind), m.Row)
			if !g.sizes.Contains(mh) {
				return &ModuleError{Key: st.Name + "." + m.Name, Handle: mh, Reason: "row outside the table"}
			}
		}
		scope := st.Method
		switch {
		case m.Shared:
			scope = ""
		case m.Scope != "":
			scope = m.Scope
		}
		g.arena.NewMember(statemachine.Member{
			Owner:       id,
			Scope:       scope,
			Role:        m.Role,
			Kind:        m.Kind,
			Name:        m.Name,
			Type:        m.Type,
			LocalKind:   m.LocalKind,
			Position:    m.Position,
			HasPosition: m.HasPosition,
			Static:      m.Static,
			Params:      m.Params,
			Active:      true,
			Handle:      mh,
		})
	}
	return nil
}
