package driver

import (
	"strconv"
	"strings"

	"encdelta/internal/baseline"
	"encdelta/internal/delta"
	"encdelta/internal/meta"
	"encdelta/internal/names"
	"encdelta/internal/statemachine"
	"encdelta/internal/symbols"
)

// rowPlanner turns accepted edits and committed synthesized members into
// builder rows. It runs serially in edit order so row ids are deterministic.
type rowPlanner struct {
	prev    *baseline.Generation
	b       *delta.Builder
	c       *committed
	types   map[string]meta.Handle
	methods map[string]meta.Handle

	infos   []baseline.MethodInfo
	defs    []baseline.Definition
	results map[string]MethodResult
}

func newRowPlanner(prev *baseline.Generation, b *delta.Builder, c *committed) *rowPlanner {
	return &rowPlanner{
		prev:    prev,
		b:       b,
		c:       c,
		types:   make(map[string]meta.Handle),
		methods: make(map[string]meta.Handle),
		results: make(map[string]MethodResult),
	}
}

func (p *rowPlanner) typeHandle(key string) meta.Handle {
	if h, ok := p.types[key]; ok {
		return h
	}
	d, _ := p.prev.Definition(key)
	return d.Handle
}

func (p *rowPlanner) methodHandle(key string) meta.Handle {
	if h, ok := p.methods[key]; ok {
		return h
	}
	m, _ := p.prev.Method(key)
	return m.Handle
}

func (p *rowPlanner) attribute(parent meta.Handle, attr string) {
	p.b.Reference(meta.TableMemberRef, attr+"::.ctor")
	p.b.AddCustomAttribute(parent, attr)
}

// plan emits rows for every edit. Types go first so members inserted in the
// same batch find their parent; properties and events go last so their
// accessors exist.
func (p *rowPlanner) plan(edits []checkedEdit, plans []*methodPlan) {
	byKey := make(map[string]*methodPlan, len(plans))
	for _, mp := range plans {
		byKey[mp.ref.Key] = mp
	}
	for i := range edits {
		ce := &edits[i]
		if ce.edit.Kind == EditInsert && ce.sym.Kind == symbols.KindType {
			p.insertType(ce.sym)
		}
	}
	for i := range edits {
		ce := &edits[i]
		switch ce.sym.Kind {
		case symbols.KindField:
			p.insertField(ce.sym)
		case symbols.KindMethod:
			p.method(ce, byKey[ce.key()])
		}
	}
	for i := range edits {
		ce := &edits[i]
		switch ce.sym.Kind {
		case symbols.KindProperty:
			p.insertAssociation(ce.sym, meta.TablePropertyMap)
		case symbols.KindEvent:
			p.insertAssociation(ce.sym, meta.TableEventMap)
		}
	}
}

func (p *rowPlanner) insertType(sym *symbols.Symbol) {
	h := p.b.AddTypeDef(sym.Key)
	p.types[sym.Key] = h
	if sym.Container != "" {
		p.b.AddNestedClass(h, sym.Container)
	}
	for _, attr := range sym.Attributes {
		p.attribute(h, attr)
	}
	p.defs = append(p.defs, baseline.Definition{Kind: symbols.KindType, Key: sym.Key, Container: sym.Container, Handle: h})
}

func (p *rowPlanner) insertField(sym *symbols.Symbol) {
	h := p.b.AddField(p.typeHandle(sym.Container), sym.Key)
	for _, attr := range sym.Attributes {
		p.attribute(h, attr)
	}
	p.defs = append(p.defs, baseline.Definition{Kind: symbols.KindField, Key: sym.Key, Container: sym.Container, Handle: h})
}

func (p *rowPlanner) insertAssociation(sym *symbols.Symbol, mapTable meta.TableIndex) {
	var h meta.Handle
	kind := symbols.KindProperty
	if mapTable == meta.TablePropertyMap {
		row, _ := p.prev.PropertyMap(sym.Container)
		h = p.b.AddProperty(sym.Container, row, sym.Key)
	} else {
		kind = symbols.KindEvent
		row, _ := p.prev.EventMap(sym.Container)
		h = p.b.AddEvent(sym.Container, row, sym.Key)
	}
	for _, acc := range sym.Accessors {
		p.b.AddMethodSemantics(h, p.methodHandle(acc))
	}
	for _, attr := range sym.Attributes {
		p.attribute(h, attr)
	}
	p.defs = append(p.defs, baseline.Definition{Kind: kind, Key: sym.Key, Container: sym.Container, Handle: h})
}

func (p *rowPlanner) method(ce *checkedEdit, mp *methodPlan) {
	sym := ce.sym
	info := ce.old
	if ce.edit.Kind == EditInsert {
		h := p.b.AddMethod(p.typeHandle(sym.Container), sym.Key)
		p.methods[sym.Key] = h
		info = baseline.MethodInfo{Key: sym.Key, Container: sym.Container, Name: sym.Name, Ordinal: sym.Ordinal, Handle: h}
		for _, param := range sym.Params {
			info.Params = append(info.Params, p.b.AddParam(h, sym.Key+"#"+param))
		}
		for _, attr := range sym.Attributes {
			p.attribute(h, attr)
		}
	} else {
		p.b.UpdateMethod(info.Handle, sym.Key)
	}
	if mp == nil {
		p.infos = append(p.infos, info)
		return
	}

	body := sym.Body
	for _, r := range body.References {
		p.b.Reference(r.Table, r.Key)
	}

	machine := p.c.machine[sym.Key]
	if machine.IsValid() && p.c.fresh[machine] {
		for _, attr := range mp.template.KickoffAttributes {
			p.attribute(info.Handle, attr)
		}
	}
	if ce.edit.Kind == EditUpdate {
		p.updateSynthesizedBodies(sym.Key)
	}
	for _, id := range p.c.types[sym.Key] {
		p.synthesizedType(id)
	}

	sig := mp.alloc.Signature
	sigRow := meta.NoRowID
	switch {
	case ce.hasOld && info.SignatureRow.IsValid() && sig.SameLayout(mp.base):
		sigRow = info.SignatureRow
	case sig.Len() > 0:
		sigRow = p.b.AddStandAloneSig(sym.Key).Row
	}

	info.Digest = body.Digest
	info.BodyLength = body.Length
	info.StateMachine, _ = body.StateMachineKind()
	info.Signature = sig.Clone()
	info.HasSignature = true
	info.SignatureRow = sigRow
	p.infos = append(p.infos, info)

	res := MethodResult{
		Key:          sym.Key,
		Handle:       info.Handle,
		Signature:    sig,
		Slots:        mp.alloc.Slots,
		Reused:       mp.alloc.Reused,
		SignatureRow: sigRow,
	}
	if machine.IsValid() {
		res.StateMachine = p.c.arena.Type(machine).QualifiedName()
	}
	p.results[sym.Key] = res
}

// updateSynthesizedBodies rewrites the bodies the updated method owns in
// synthesized types emitted earlier: MoveNext, finally helpers and lambdas.
func (p *rowPlanner) updateSynthesizedBodies(key string) {
	a := p.c.arena
	for _, id := range p.c.types[key] {
		t := a.Type(id)
		if t.Handle.IsNil() {
			continue
		}
		for _, mid := range t.Members {
			m := a.Member(mid)
			if m.Kind != statemachine.MemberMethod || m.Handle.IsNil() || !m.Active {
				continue
			}
			owned := m.Role == statemachine.RoleLambdaMethod && m.Scope == key
			if t.Kind.IsStateMachine() && t.Method == key {
				owned = owned || m.Name == statemachine.MoveNextName || strings.HasPrefix(m.Name, names.FinallyHelperPrefix)
			}
			if owned {
				p.b.UpdateMethod(m.Handle, t.QualifiedName()+"::"+m.Name)
			}
		}
	}
}

// synthesizedType adds the type row when the type is new and a row for every
// member that has none yet.
func (p *rowPlanner) synthesizedType(id statemachine.TypeID) {
	a := p.c.arena
	t := a.Type(id)
	qn := t.QualifiedName()
	if t.Handle.IsNil() {
		t.Handle = p.b.AddTypeDef(qn)
		if t.Container != "" {
			p.b.AddNestedClass(t.Handle, t.Container)
		}
		for _, iface := range t.Interfaces {
			p.b.Reference(meta.TableTypeRef, iface)
			p.b.AddInterfaceImpl(t.Handle, iface)
		}
		for _, attr := range t.Attributes {
			p.attribute(t.Handle, attr)
		}
	}
	for _, mid := range t.Members {
		m := a.Member(mid)
		if !m.Handle.IsNil() {
			continue
		}
		key := qn + "::" + m.Name
		switch m.Kind {
		case statemachine.MemberField:
			m.Handle = p.b.AddField(t.Handle, key)
		case statemachine.MemberMethod:
			m.Handle = p.b.AddMethod(t.Handle, key)
			for i := range m.Params {
				p.b.AddParam(m.Handle, key+"#"+strconv.Itoa(i))
			}
			if m.Implements != "" {
				p.b.Reference(meta.TableMemberRef, m.Implements)
				p.b.AddMethodImpl(t.Handle, m.Implements)
			}
		case statemachine.MemberProperty:
			row, _ := p.prev.PropertyMap(qn)
			m.Handle = p.b.AddProperty(qn, row, key)
			if getter := a.FindMember(id, m.Getter); getter.IsValid() {
				p.b.AddMethodSemantics(m.Handle, a.Member(getter).Handle)
			}
		}
	}
}
