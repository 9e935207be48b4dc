package statemachine

import (
	"fmt"
	"maps"
	"slices"

	"fortio.org/safecast"

	"encdelta/internal/locals"
	"encdelta/internal/meta"
	"encdelta/internal/names"
)

// Counters holds the last ordinal handed out per name family of one type.
// Counters never move back, so a name is never produced twice for a type.
type Counters struct {
	Hoisted int
	Awaiter int
}

// MethodCounters holds the next ordinal per name family scoped to one user method.
type MethodCounters struct {
	Lambda  int
	Closure int
}

// Member is one synthesized field, method or property.
type Member struct {
	Owner TypeID
	// Scope is the key of the user method the member serves; empty for members
	// shared by every method using the type.
	Scope       string
	Role        Role
	Kind        MemberKind
	Name        string
	Type        string
	LocalKind   locals.Kind
	Position    locals.Position
	HasPosition bool
	Params      int
	Implements  string
	Getter      string
	Static      bool
	Generation  int
	// Active is true when the last generation touching the member's scope used it.
	Active bool
	Handle meta.Handle
}

// Type is one synthesized type.
type Type struct {
	Kind TypeKind
	Name string
	// Container is the key of the user type the synthesized type is nested in.
	Container     string
	Method        string
	MethodName    string
	MethodOrdinal int
	Position      locals.Position
	HasPosition   bool
	Shape         string
	Generation    int
	Members       []MemberID
	Counters      Counters
	Interfaces    []string
	Attributes    []string
	Handle        meta.Handle
}

// Arena stores every synthesized type and member of a generation chain.
// Entries refer to each other by id only.
type Arena struct {
	types         []Type
	members       []Member
	byName        map[string]TypeID
	stateMachines map[string]TypeID
	lambdaCaches  map[string]TypeID
	templates     map[string]TypeID
	methods       map[string]MethodCounters
}

// NewArena creates an empty arena with optional capacity hint.
func NewArena(capacity uint32) *Arena {
	if capacity == 0 {
		capacity = 16
	}
	return &Arena{
		types:         make([]Type, 1, capacity+1), // index 0 reserved for NoTypeID
		members:       make([]Member, 1, 4*capacity+1),
		byName:        make(map[string]TypeID),
		stateMachines: make(map[string]TypeID),
		lambdaCaches:  make(map[string]TypeID),
		templates:     make(map[string]TypeID),
		methods:       make(map[string]MethodCounters),
	}
}

// Clone returns a deep copy that can be modified without affecting a.
func (a *Arena) Clone() *Arena {
	out := &Arena{
		types:         make([]Type, len(a.types), cap(a.types)),
		members:       slices.Clone(a.members),
		byName:        maps.Clone(a.byName),
		stateMachines: maps.Clone(a.stateMachines),
		lambdaCaches:  maps.Clone(a.lambdaCaches),
		templates:     maps.Clone(a.templates),
		methods:       maps.Clone(a.methods),
	}
	for i, t := range a.types {
		t.Members = slices.Clone(t.Members)
		t.Interfaces = slices.Clone(t.Interfaces)
		t.Attributes = slices.Clone(t.Attributes)
		out.types[i] = t
	}
	return out
}

func qualified(container, name string) string {
	if container == "" {
		return name
	}
	return container + "/" + name
}

// QualifiedName is the name of t including its containing user type.
func (t *Type) QualifiedName() string { return qualified(t.Container, t.Name) }

// NewType allocates a type and indexes it.
func (a *Arena) NewType(t Type) TypeID {
	value, err := safecast.Conv[uint32](len(a.types))
	if err != nil {
		panic(fmt.Errorf("type arena overflow: %w", err))
	}
	id := TypeID(value)
	if _, dup := a.byName[qualified(t.Container, t.Name)]; dup {
		panic(fmt.Errorf("statemachine: duplicate synthesized type %q", qualified(t.Container, t.Name)))
	}
	t.Members = nil
	a.types = append(a.types, t)
	a.byName[qualified(t.Container, t.Name)] = id
	switch {
	case t.Kind.IsStateMachine():
		a.stateMachines[t.Method] = id
	case t.Kind == TypeLambdaCache:
		a.lambdaCaches[t.Container] = id
	case t.Kind == TypeAnonymousTemplate:
		a.templates[t.Shape] = id
	}
	return id
}

// NewMember allocates a member and appends it to its owner's member list.
func (a *Arena) NewMember(m Member) MemberID {
	owner := a.Type(m.Owner)
	if owner == nil {
		panic(fmt.Errorf("statemachine: member %q has no owner", m.Name))
	}
	value, err := safecast.Conv[uint32](len(a.members))
	if err != nil {
		panic(fmt.Errorf("member arena overflow: %w", err))
	}
	id := MemberID(value)
	a.members = append(a.members, m)
	owner.Members = append(owner.Members, id)
	return id
}

// Type returns the type pointer or nil if ID is invalid.
func (a *Arena) Type(id TypeID) *Type {
	if !id.IsValid() || int(id) >= len(a.types) {
		return nil
	}
	return &a.types[id]
}

// Member returns the member pointer or nil if ID is invalid.
func (a *Arena) Member(id MemberID) *Member {
	if !id.IsValid() || int(id) >= len(a.members) {
		return nil
	}
	return &a.members[id]
}

// TypeCount reports total number of types excluding the sentinel.
func (a *Arena) TypeCount() int { return len(a.types) - 1 }

// MemberCount reports total number of members excluding the sentinel.
func (a *Arena) MemberCount() int { return len(a.members) - 1 }

// TypeIDs lists every allocated type in allocation order.
func (a *Arena) TypeIDs() []TypeID {
	out := make([]TypeID, 0, a.TypeCount())
	for i := 1; i < len(a.types); i++ {
		out = append(out, TypeID(i)) //nolint:gosec // bounded by arena size
	}
	return out
}

// TypeByName finds a type by container key and simple name.
func (a *Arena) TypeByName(container, name string) TypeID {
	return a.byName[qualified(container, name)]
}

// StateMachineOf returns the most recent state machine type of method.
func (a *Arena) StateMachineOf(method string) TypeID { return a.stateMachines[method] }

// LambdaCacheOf returns the static lambda cache type nested in container.
func (a *Arena) LambdaCacheOf(container string) TypeID { return a.lambdaCaches[container] }

// TemplateOf returns the anonymous type template for a shape key.
func (a *Arena) TemplateOf(shape string) TypeID { return a.templates[shape] }

// TemplateCount reports how many anonymous type templates exist.
func (a *Arena) TemplateCount() int { return len(a.templates) }

// ClosuresOf lists the display classes created for method, oldest first.
func (a *Arena) ClosuresOf(method string) []TypeID {
	var out []TypeID
	for i := 1; i < len(a.types); i++ {
		if t := &a.types[i]; t.Kind == TypeClosure && t.Method == method {
			out = append(out, TypeID(i)) //nolint:gosec // bounded by arena size
		}
	}
	return out
}

// MethodCounters returns the per-method name counters.
func (a *Arena) MethodCounters(method string) MethodCounters { return a.methods[method] }

// SetMethodCounters stores the per-method name counters.
func (a *Arena) SetMethodCounters(method string, c MethodCounters) { a.methods[method] = c }

// FindMember returns the first member of owner with the given name.
func (a *Arena) FindMember(owner TypeID, name string) MemberID {
	t := a.Type(owner)
	if t == nil {
		return NoMemberID
	}
	for _, id := range t.Members {
		if a.members[id].Name == name {
			return id
		}
	}
	return NoMemberID
}

// Seed raises every counter to one past the highest ordinal found in the names
// already present. It is used when an arena is rebuilt from emitted metadata.
func (a *Arena) Seed() {
	for i := 1; i < len(a.types); i++ {
		t := &a.types[i]
		if t.Kind == TypeClosure {
			if n, ok := names.Ordinal(t.Name); ok {
				c := a.methods[t.Method]
				c.Closure = max(c.Closure, n+1)
				a.methods[t.Method] = c
			}
		}
		for _, id := range t.Members {
			m := &a.members[id]
			n, ok := names.Ordinal(m.Name)
			if !ok {
				continue
			}
			switch kind, _ := names.Classify(m.Name); kind {
			case names.KindHoistedLocal, names.KindHoistedTemp:
				t.Counters.Hoisted = max(t.Counters.Hoisted, n)
			case names.KindAwaiter:
				t.Counters.Awaiter = max(t.Counters.Awaiter, n)
			case names.KindLambda:
				if m.Scope != "" {
					c := a.methods[m.Scope]
					c.Lambda = max(c.Lambda, n+1)
					a.methods[m.Scope] = c
				}
			}
		}
	}
}
