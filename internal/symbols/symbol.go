package symbols

import (
	"strings"

	"encdelta/internal/locals"
	"encdelta/internal/meta"
	"encdelta/internal/statemachine"
)

// Reference is an entity outside the module's definitions that a body uses.
type Reference struct {
	Table meta.TableIndex
	Key   string
}

// Body is what code generation reports about a method body.
type Body struct {
	// Length is the size of the body's syntax; positions must stay below it.
	Length uint32
	Digest Digest
	// Locals are the slot-allocated locals. For a state machine they are the
	// locals of MoveNext.
	Locals         []locals.Descriptor
	References     []Reference
	StateMachine   *statemachine.StateMachineShape
	Closures       []statemachine.ClosureShape
	Lambdas        []statemachine.Lambda
	DynamicSites   []statemachine.DynamicSite
	AnonymousTypes []statemachine.AnonymousShape
}

// Positions lists every syntax position the body declares.
func (b *Body) Positions() []locals.Position {
	if b == nil {
		return nil
	}
	var out []locals.Position
	for _, d := range b.Locals {
		out = append(out, d.Position)
	}
	if sm := b.StateMachine; sm != nil {
		for _, d := range sm.Hoisted {
			out = append(out, d.Position)
		}
		for _, aw := range sm.Awaiters {
			if aw.HasPosition {
				out = append(out, aw.Position)
			}
		}
	}
	for _, c := range b.Closures {
		out = append(out, c.Position)
		for _, l := range c.Lambdas {
			out = append(out, l.Position)
		}
	}
	for _, l := range b.Lambdas {
		out = append(out, l.Position)
	}
	for _, site := range b.DynamicSites {
		out = append(out, site.Position)
	}
	return out
}

// StateMachineKind returns the kind of state machine the body lowers to.
func (b *Body) StateMachineKind() (statemachine.TypeKind, bool) {
	if b == nil || b.StateMachine == nil {
		return 0, false
	}
	return b.StateMachine.Kind, true
}

// Symbol is one declaration of the new compilation.
type Symbol struct {
	Kind Kind
	Key  string
	Name string
	// Container is the key of the declaring type; empty for top-level types.
	Container string
	// Ordinal is the declaration index of a method within its container.
	Ordinal    int
	Static     bool
	Params     []string
	Type       string
	Attributes []string
	// Accessors lists the method keys of a property's or event's accessors.
	Accessors []string
	Body      *Body
}

// IsAttributeType reports whether the symbol declares an attribute class.
func (s *Symbol) IsAttributeType() bool {
	return s.Kind == KindType && s.Key != "Attribute" && strings.HasSuffix(s.Key, "Attribute")
}
