package statemachine

import (
	"fmt"
	"slices"

	"encdelta/internal/locals"
	"encdelta/internal/names"
)

// MethodRef identifies the user method a synthesizer works for.
type MethodRef struct {
	Key       string
	Name      string
	Ordinal   int
	Container string
}

// Ref is one member of a plan: an existing member being reused or a new one.
type Ref struct {
	Existing    MemberID
	New         int
	Position    locals.Position
	HasPosition bool
}

// Plan is the outcome of synthesizing one type. It is computed against a
// read-only arena and applied with Arena.Commit.
type Plan struct {
	Owner   TypeID
	NewType *Type
	Scope   string
	Active  []Ref
	Added   []Member
	// Counters replaces the owner's counters on commit.
	Counters     Counters
	TypePosition *locals.Position
	Reused       int
}

// Names lists the member names of the plan in request order.
func (p *Plan) Names(a *Arena) []string {
	out := make([]string, 0, len(p.Active))
	for _, ref := range p.Active {
		if ref.Existing.IsValid() {
			out = append(out, a.Member(ref.Existing).Name)
			continue
		}
		out = append(out, p.Added[ref.New].Name)
	}
	return out
}

// Synthesizer resolves the synthesized members a user method needs in one
// generation. It only reads the arena; plans are applied by the caller in a
// single serial pass.
type Synthesizer struct {
	arena    *Arena
	gen      int
	method   MethodRef
	syntax   locals.NodeCorrespondence
	counters MethodCounters
}

// NewSynthesizer prepares synthesis for method in generation gen. A nil syntax
// map is treated as the identity.
func NewSynthesizer(arena *Arena, gen int, method MethodRef, syntax locals.NodeCorrespondence) *Synthesizer {
	return &Synthesizer{
		arena:    arena,
		gen:      gen,
		method:   method,
		syntax:   syntax,
		counters: arena.MethodCounters(method.Key),
	}
}

// Counters returns the method-scoped counters after every plan made so far.
func (s *Synthesizer) Counters() MethodCounters { return s.counters }

// Synthesize matches reqs against the members owner already has and names the
// rest. When owner is not valid, newType describes the type to create.
func (s *Synthesizer) Synthesize(owner TypeID, newType *Type, scope string, reqs []Request) (*Plan, error) {
	plan := &Plan{Owner: owner, NewType: newType, Scope: scope}
	var typeName string
	var base []MemberID
	taken := make(map[string]bool)
	baseByName := make(map[string]MemberID)
	if t := s.arena.Type(owner); t != nil {
		typeName = t.Name
		base = t.Members
		plan.Counters = t.Counters
		for _, id := range base {
			name := s.arena.Member(id).Name
			taken[name] = true
			baseByName[name] = id
		}
	} else {
		if newType == nil {
			return nil, fmt.Errorf("statemachine: no type to synthesize into for %s", s.method.Key)
		}
		typeName = newType.Name
		plan.Counters = newType.Counters
	}

	claimed := make(map[MemberID]bool, len(reqs))
	resolved := make([]string, len(reqs))
	for i, r := range reqs {
		if r.Role == RoleAnonymousCacheSlot && r.CacheFor > 0 && r.CacheFor <= i {
			r.Name = names.CacheFieldFor(resolved[r.CacheFor-1])
		}
		if id := s.match(base, scope, r, claimed); id.IsValid() {
			claimed[id] = true
			plan.Active = append(plan.Active, Ref{Existing: id, Position: r.Position, HasPosition: r.HasPosition})
			plan.Reused++
			resolved[i] = s.arena.Member(id).Name
			continue
		}
		name := s.name(r, &plan.Counters)
		// a fixed name held by an incompatible member of the type goes to a
		// replacement; the old member stays resident and unused
		if prior, ok := baseByName[name]; ok && !claimed[prior] && !r.Role.Positional() {
			name = names.Replacement(name, s.gen)
		}
		if taken[name] {
			return nil, &ConflictError{Type: typeName, Member: name, Reason: "name already in use"}
		}
		taken[name] = true
		resolved[i] = name
		m := Member{
			Scope:       scope,
			Role:        r.Role,
			Kind:        r.Kind,
			Name:        name,
			Type:        r.Type,
			LocalKind:   r.LocalKind,
			Position:    r.Position,
			HasPosition: r.HasPosition,
			Params:      r.Params,
			Implements:  r.Implements,
			Getter:      r.Getter,
			Static:      r.Static,
			Generation:  s.gen,
		}
		if r.Shared {
			m.Scope = ""
		}
		plan.Active = append(plan.Active, Ref{New: len(plan.Added), Position: r.Position, HasPosition: r.HasPosition})
		plan.Added = append(plan.Added, m)
	}
	return plan, nil
}

// match finds the member of base that r reuses. Members whose type no longer
// fits are skipped.
func (s *Synthesizer) match(base []MemberID, scope string, r Request, claimed map[MemberID]bool) MemberID {
	var oldPos locals.Position
	mapped := false
	if r.Role.Positional() && r.HasPosition {
		oldPos, mapped = locals.MapOrIdentity(s.syntax, r.Position)
		if !mapped {
			return NoMemberID
		}
	}
	for _, id := range base {
		if claimed[id] {
			continue
		}
		m := s.arena.Member(id)
		if m.Role != r.Role || m.Kind != r.Kind {
			continue
		}
		if m.Scope != scope && m.Scope != "" {
			continue
		}
		switch {
		case r.Role.Positional():
			// positional members left unused by an earlier generation are never revived
			if !m.Active || m.Type != r.Type {
				continue
			}
			if r.Role == RoleHoistedLocal && m.LocalKind != r.LocalKind {
				continue
			}
			if !r.HasPosition {
				if r.Role == RoleAwaiter {
					return id
				}
				continue
			}
			if m.HasPosition && m.Position == oldPos {
				return id
			}
		case r.Role.Singleton():
			if r.Type != "" && m.Type != r.Type {
				continue
			}
			return id
		default:
			if m.Name != r.Name && m.Name != names.Replacement(r.Name, m.Generation) {
				continue
			}
			if m.Kind == MemberField && r.Type != "" && m.Type != r.Type {
				continue
			}
			return id
		}
	}
	return NoMemberID
}

func (s *Synthesizer) name(r Request, c *Counters) string {
	switch r.Role {
	case RoleHoistedLocal:
		c.Hoisted++
		if r.LocalKind == locals.KindUserDefined && r.Name != "" {
			return names.HoistedLocal(r.Name, c.Hoisted)
		}
		return names.HoistedTemp(c.Hoisted)
	case RoleAwaiter:
		c.Awaiter++
		return names.Awaiter(c.Awaiter)
	case RoleLambdaMethod:
		n := s.counters.Lambda
		s.counters.Lambda++
		return names.Lambda(s.method.Name, s.method.Ordinal, n, s.gen)
	default:
		return r.Name
	}
}

// StateMachine plans the state machine type of the method. A state machine of
// another kind than the existing one gets a new type.
func (s *Synthesizer) StateMachine(shape StateMachineShape) (*Plan, Template, error) {
	tpl := TemplateFor(shape.Kind, shape, s.method.Container)
	reqs := slices.Clone(tpl.Requests)
	reqs = append(reqs, HoistRequests(shape)...)
	for i := 1; i <= shape.FinallyHelpers; i++ {
		reqs = append(reqs, helper(names.FinallyHelper(i), 0, ""))
	}

	owner := s.arena.StateMachineOf(s.method.Key)
	if t := s.arena.Type(owner); t == nil || t.Kind != shape.Kind {
		owner = NoTypeID
	}
	var newType *Type
	if !owner.IsValid() {
		newType = &Type{
			Kind:          shape.Kind,
			Name:          names.StateMachineType(s.method.Name, s.method.Ordinal, s.gen),
			Container:     s.method.Container,
			Method:        s.method.Key,
			MethodName:    s.method.Name,
			MethodOrdinal: s.method.Ordinal,
			Generation:    s.gen,
			Interfaces:    tpl.Interfaces,
			Attributes:    tpl.Attributes,
		}
	}
	plan, err := s.Synthesize(owner, newType, s.method.Key, reqs)
	return plan, tpl, err
}

// Closures plans one display class per closure scope. Scopes must list parents
// before children.
func (s *Synthesizer) Closures(scopes []ClosureShape) ([]*Plan, error) {
	existing := s.arena.ClosuresOf(s.method.Key)
	claimed := make(map[TypeID]bool, len(existing))
	plans := make([]*Plan, len(scopes))
	typeNames := make([]string, len(scopes))

	for i, scope := range scopes {
		owner := NoTypeID
		if oldPos, ok := locals.MapOrIdentity(s.syntax, scope.Position); ok {
			for _, id := range existing {
				t := s.arena.Type(id)
				if !claimed[id] && t.HasPosition && t.Position == oldPos {
					owner = id
					claimed[id] = true
					break
				}
			}
		}
		var newType *Type
		if owner.IsValid() {
			typeNames[i] = s.arena.Type(owner).Name
		} else {
			ordinal := s.counters.Closure
			s.counters.Closure++
			tpl := TemplateFor(TypeClosure, StateMachineShape{}, s.method.Container)
			newType = &Type{
				Kind:          TypeClosure,
				Name:          names.DisplayClass(s.method.Ordinal, ordinal, s.gen),
				Container:     s.method.Container,
				Method:        s.method.Key,
				MethodName:    s.method.Name,
				MethodOrdinal: s.method.Ordinal,
				Position:      scope.Position,
				HasPosition:   true,
				Generation:    s.gen,
				Attributes:    tpl.Attributes,
			}
			typeNames[i] = newType.Name
		}

		reqs := slices.Clone(TemplateFor(TypeClosure, StateMachineShape{}, s.method.Container).Requests)
		if scope.CapturesThis {
			reqs = append(reqs, field(RoleThisProxy, names.ThisProxyField, s.method.Container))
		}
		if scope.Parent >= 0 {
			if scope.Parent >= i {
				return nil, fmt.Errorf("statemachine: closure %d of %s is listed before its parent", i, s.method.Key)
			}
			parent := typeNames[scope.Parent]
			ordinal, _ := names.Ordinal(parent)
			reqs = append(reqs, field(RoleDisplayClassLink, names.DisplayClassLink(ordinal), parent))
		}
		for _, c := range scope.Captures {
			reqs = append(reqs, field(RoleCapturedVariable, names.Normalize(c.Name), c.Type))
		}
		for _, l := range scope.Lambdas {
			reqs = append(reqs, Request{Role: RoleLambdaMethod, Kind: MemberMethod, Type: l.Signature, Position: l.Position, HasPosition: true})
		}

		plan, err := s.Synthesize(owner, newType, s.method.Key, reqs)
		if err != nil {
			return nil, err
		}
		pos := scope.Position
		plan.TypePosition = &pos
		plans[i] = plan
	}
	return plans, nil
}

// StaticLambdas plans the lambdas of the method that capture nothing. They live
// in the lambda cache type shared by the whole container, so the arena must
// already hold every plan committed earlier in the generation.
func (s *Synthesizer) StaticLambdas(lambdas []Lambda) (*Plan, error) {
	tpl := TemplateFor(TypeLambdaCache, StateMachineShape{}, s.method.Container)
	reqs := slices.Clone(tpl.Requests)
	for _, l := range lambdas {
		reqs = append(reqs, Request{Role: RoleLambdaMethod, Kind: MemberMethod, Type: l.Signature, Position: l.Position, HasPosition: true, Static: true})
		reqs = append(reqs, Request{Role: RoleAnonymousCacheSlot, Kind: MemberField, Type: l.Signature, Static: true, CacheFor: len(reqs)})
	}
	owner := s.arena.LambdaCacheOf(s.method.Container)
	var newType *Type
	if !owner.IsValid() {
		newType = &Type{
			Kind:       TypeLambdaCache,
			Name:       names.LambdaCacheType,
			Container:  s.method.Container,
			Generation: s.gen,
			Attributes: tpl.Attributes,
		}
	}
	return s.Synthesize(owner, newType, s.method.Key, reqs)
}

// Dynamic plans the call-site container of the method. Containers are never
// reused: every generation gets a fresh one.
func (s *Synthesizer) Dynamic(sites []DynamicSite) (*Plan, error) {
	tpl := TemplateFor(TypeDynamicContainer, StateMachineShape{}, s.method.Container)
	newType := &Type{
		Kind:          TypeDynamicContainer,
		Name:          names.DynamicContainer(s.method.Ordinal, s.gen),
		Container:     s.method.Container,
		Method:        s.method.Key,
		MethodName:    s.method.Name,
		MethodOrdinal: s.method.Ordinal,
		Generation:    s.gen,
		Attributes:    tpl.Attributes,
	}
	if s.arena.TypeByName(newType.Container, newType.Name).IsValid() {
		return nil, &ConflictError{Type: newType.Name, Reason: "call-site container already emitted in this generation"}
	}
	reqs := make([]Request, len(sites))
	for i, site := range sites {
		reqs[i] = Request{Role: RoleDynamicSite, Kind: MemberField, Name: names.DynamicSite(i), Type: site.Type, Static: true}
	}
	return s.Synthesize(NoTypeID, newType, s.method.Key, reqs)
}

// Anonymous returns the template type for shape, planning a new template when
// no generation has emitted the shape yet. The returned plan is nil on reuse.
func Anonymous(a *Arena, gen int, shape AnonymousShape) (TypeID, *Plan) {
	key := shape.Key()
	if id := a.TemplateOf(key); id.IsValid() {
		return id, nil
	}
	n := len(shape.Members)
	newType := &Type{
		Kind:       TypeAnonymousTemplate,
		Name:       names.AnonymousType(a.TemplateCount()),
		Shape:      key,
		Generation: gen,
		Attributes: []string{CompilerGeneratedAttribute, "System.Diagnostics.DebuggerDisplayAttribute"},
	}
	plan := &Plan{NewType: newType, Scope: ""}
	add := func(m Member) {
		m.Generation = gen
		plan.Active = append(plan.Active, Ref{New: len(plan.Added)})
		plan.Added = append(plan.Added, m)
	}
	for i, m := range shape.Members {
		add(Member{Role: RoleTemplateField, Kind: MemberField, Name: "<" + m.Name + ">i__Field", Type: fmt.Sprintf("<%s>j__TPar%d", m.Name, i)})
	}
	add(Member{Role: RoleHelperMethod, Kind: MemberMethod, Name: ".ctor", Params: n})
	for _, m := range shape.Members {
		add(Member{Role: RoleHelperMethod, Kind: MemberMethod, Name: "get_" + m.Name})
	}
	add(Member{Role: RoleHelperMethod, Kind: MemberMethod, Name: "Equals", Params: 1})
	add(Member{Role: RoleHelperMethod, Kind: MemberMethod, Name: "GetHashCode"})
	add(Member{Role: RoleHelperMethod, Kind: MemberMethod, Name: "ToString"})
	for i, m := range shape.Members {
		add(Member{Role: RoleHelperMethod, Kind: MemberProperty, Name: m.Name, Type: plan.Added[i].Type, Getter: "get_" + m.Name})
	}
	return NoTypeID, plan
}

// Commit applies plan to a and returns the type it populated with the
// resulting member set.
func (a *Arena) Commit(plan *Plan) (TypeID, MemberSet) {
	owner := plan.Owner
	if !owner.IsValid() {
		owner = a.NewType(*plan.NewType)
	}
	a.Type(owner).Counters = plan.Counters
	if plan.TypePosition != nil {
		t := a.Type(owner)
		t.Position = *plan.TypePosition
		t.HasPosition = true
	}

	inPlan := make(map[MemberID]bool, len(plan.Active))
	set := MemberSet{Type: owner}
	for _, ref := range plan.Active {
		var id MemberID
		if ref.Existing.IsValid() {
			id = ref.Existing
			m := a.Member(id)
			if ref.HasPosition {
				m.Position = ref.Position
				m.HasPosition = true
			}
			m.Active = true
		} else {
			m := plan.Added[ref.New]
			m.Owner = owner
			m.Active = true
			id = a.NewMember(m)
		}
		inPlan[id] = true
		set.Active = append(set.Active, id)
	}
	for _, id := range a.Type(owner).Members {
		if inPlan[id] {
			continue
		}
		m := a.Member(id)
		if m.Scope == plan.Scope && m.Scope != "" {
			m.Active = false
		}
		if m.Active {
			set.Active = append(set.Active, id)
		} else {
			set.Retained = append(set.Retained, id)
		}
	}
	return owner, set
}
