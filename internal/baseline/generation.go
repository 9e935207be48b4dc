// Package baseline holds the immutable generations of an edit session. A
// generation records everything the next delta must know about what has been
// emitted so far: row counts, handles, local signatures and synthesized members.
package baseline

import (
	"maps"
	"slices"

	"github.com/google/uuid"

	"encdelta/internal/locals"
	"encdelta/internal/meta"
	"encdelta/internal/statemachine"
	"encdelta/internal/symbols"
)

// LocalsProvider reconstructs the local signature of a generation-0 method
// from prior debug information.
type LocalsProvider func(methodKey string) (locals.Signature, bool)

// MethodInfo is what the chain remembers about one emitted method.
type MethodInfo struct {
	Key          string
	Container    string
	Name         string
	Ordinal      int
	Handle       meta.Handle
	Digest       symbols.Digest
	BodyLength   uint32
	StateMachine statemachine.TypeKind
	Signature    locals.Signature
	// HasSignature is false for generation-0 methods whose signature comes
	// from the locals provider.
	HasSignature bool
	SignatureRow meta.RowID
	Params       []meta.Handle
}

// Definition is a user-declared type, field, property or event already emitted.
type Definition struct {
	Kind      symbols.Kind
	Key       string
	Container string
	Handle    meta.Handle
}

// Generation is one immutable link of the chain.
type Generation struct {
	ordinal      int
	encID        uuid.UUID
	baseID       uuid.UUID
	sizes        meta.TableSizes
	prev         *Generation
	methods      map[string]*MethodInfo
	defs         map[string]Definition
	refs         map[string]meta.Handle
	propertyMaps map[string]meta.RowID
	eventMaps    map[string]meta.RowID
	arena        *statemachine.Arena
	provider     LocalsProvider
}

// Ordinal is the generation number; 0 is the original module.
func (g *Generation) Ordinal() int { return g.ordinal }

// EncID identifies this generation.
func (g *Generation) EncID() uuid.UUID { return g.encID }

// BaseID identifies the generation this one was derived from.
func (g *Generation) BaseID() uuid.UUID { return g.baseID }

// Sizes returns a copy of the cumulative row counts.
func (g *Generation) Sizes() meta.TableSizes { return g.sizes }

// Previous returns the generation this one was derived from, or nil.
func (g *Generation) Previous() *Generation { return g.prev }

// Chain lists every generation from 0 up to g.
func (g *Generation) Chain() []*Generation {
	var out []*Generation
	for cur := g; cur != nil; cur = cur.prev {
		out = append(out, cur)
	}
	slices.Reverse(out)
	return out
}

// Method returns a copy of the method record for key.
func (g *Generation) Method(key string) (MethodInfo, bool) {
	m, ok := g.methods[key]
	if !ok {
		return MethodInfo{}, false
	}
	return *m, true
}

// MethodKeys lists every emitted method in sorted order.
func (g *Generation) MethodKeys() []string {
	return slices.Sorted(maps.Keys(g.methods))
}

// LocalSignature returns the latest local signature of the method.
func (g *Generation) LocalSignature(key string) (locals.Signature, bool) {
	m, ok := g.methods[key]
	if !ok {
		return locals.Signature{}, false
	}
	if m.HasSignature {
		return m.Signature.Clone(), true
	}
	if g.provider != nil {
		return g.provider(key)
	}
	return locals.Signature{}, false
}

// Definition returns the emitted definition for key.
func (g *Generation) Definition(key string) (Definition, bool) {
	d, ok := g.defs[key]
	return d, ok
}

// DefinitionKeys lists every emitted non-method definition in sorted order.
func (g *Generation) DefinitionKeys() []string {
	return slices.Sorted(maps.Keys(g.defs))
}

// IsDefined reports whether key names any emitted method or definition.
func (g *Generation) IsDefined(key string) bool {
	if _, ok := g.methods[key]; ok {
		return true
	}
	_, ok := g.defs[key]
	return ok
}

// ReferenceKey builds the lookup key of a reference.
func ReferenceKey(table meta.TableIndex, key string) string {
	return table.String() + ":" + key
}

// Reference returns the handle of an already emitted reference.
func (g *Generation) Reference(table meta.TableIndex, key string) (meta.Handle, bool) {
	h, ok := g.refs[ReferenceKey(table, key)]
	return h, ok
}

// ReferenceCount reports how many references the chain has emitted.
func (g *Generation) ReferenceCount() int { return len(g.refs) }

// PropertyMap returns the PropertyMap row of a type.
func (g *Generation) PropertyMap(typeKey string) (meta.RowID, bool) {
	r, ok := g.propertyMaps[typeKey]
	return r, ok
}

// EventMap returns the EventMap row of a type.
func (g *Generation) EventMap(typeKey string) (meta.RowID, bool) {
	r, ok := g.eventMaps[typeKey]
	return r, ok
}

// Arena returns the synthesized members of the chain. Callers must not modify
// it; Clone it to build the next generation.
func (g *Generation) Arena() *statemachine.Arena { return g.arena }

// MemberSet returns the current member listing of a synthesized type.
func (g *Generation) MemberSet(id statemachine.TypeID) statemachine.MemberSet {
	set := statemachine.MemberSet{Type: id}
	t := g.arena.Type(id)
	if t == nil {
		return set
	}
	for _, mid := range t.Members {
		if g.arena.Member(mid).Active {
			set.Active = append(set.Active, mid)
		} else {
			set.Retained = append(set.Retained, mid)
		}
	}
	return set
}

// Provider returns the locals provider of the chain.
func (g *Generation) Provider() LocalsProvider { return g.provider }
