package baseline

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"encdelta/internal/diag"
	"encdelta/internal/locals"
	"encdelta/internal/meta"
	"encdelta/internal/statemachine"
)

// Snapshot is the serializable form of one generation. The locals provider
// and the link to the previous generation are not part of it.
type Snapshot struct {
	Ordinal      int                    `msgpack:"ordinal"`
	EncID        string                 `msgpack:"enc_id"`
	BaseID       string                 `msgpack:"base_id"`
	Sizes        []uint32               `msgpack:"sizes"`
	Methods      []MethodInfo           `msgpack:"methods"`
	Definitions  []Definition           `msgpack:"definitions"`
	References   map[string]meta.Handle `msgpack:"references"`
	PropertyMaps map[string]meta.RowID  `msgpack:"property_maps"`
	EventMaps    map[string]meta.RowID  `msgpack:"event_maps"`
	Arena        statemachine.ArenaData `msgpack:"arena"`
}

// Snapshot captures g for persistence. Generation-0 signatures that come from
// the locals provider are resolved and stored.
func (g *Generation) Snapshot() Snapshot {
	s := Snapshot{
		Ordinal:      g.ordinal,
		EncID:        g.encID.String(),
		BaseID:       g.baseID.String(),
		Sizes:        g.sizes[:],
		References:   maps.Clone(g.refs),
		PropertyMaps: maps.Clone(g.propertyMaps),
		EventMaps:    maps.Clone(g.eventMaps),
		Arena:        g.arena.Export(),
	}
	s.Sizes = slices.Clone(s.Sizes)
	for _, key := range g.MethodKeys() {
		m := *g.methods[key]
		if !m.HasSignature {
			if sig, ok := g.LocalSignature(key); ok {
				m.Signature = sig
				m.HasSignature = true
			}
		}
		m.Signature = m.Signature.Clone()
		s.Methods = append(s.Methods, m)
	}
	for _, key := range g.DefinitionKeys() {
		s.Definitions = append(s.Definitions, g.defs[key])
	}
	return s
}

// Restore rebuilds a generation from its snapshot on top of prev, which must
// be the generation the snapshot was derived from (nil for generation 0).
func Restore(s Snapshot, prev *Generation, provider LocalsProvider) (*Generation, error) {
	encID, err := uuid.Parse(s.EncID)
	if err != nil {
		return nil, fmt.Errorf("baseline: snapshot %d: enc id: %w", s.Ordinal, err)
	}
	baseID, err := uuid.Parse(s.BaseID)
	if err != nil {
		return nil, fmt.Errorf("baseline: snapshot %d: base id: %w", s.Ordinal, err)
	}
	at := diag.At(fmt.Sprintf("generation/%d", s.Ordinal))
	switch {
	case prev == nil && s.Ordinal != 0:
		return nil, diag.Errorf(diag.ChnGenerationMismatch, at, "snapshot has no previous generation")
	case prev != nil && (prev.ordinal+1 != s.Ordinal || prev.encID != baseID):
		return nil, diag.Errorf(diag.ChnGenerationMismatch, at, "snapshot does not follow generation %d", prev.ordinal)
	}
	if len(s.Sizes) > meta.TableCount {
		return nil, fmt.Errorf("baseline: snapshot %d: %d tables", s.Ordinal, len(s.Sizes))
	}
	arena, err := statemachine.ImportArena(s.Arena)
	if err != nil {
		return nil, fmt.Errorf("baseline: snapshot %d: %w", s.Ordinal, err)
	}
	g := &Generation{
		ordinal:      s.Ordinal,
		encID:        encID,
		baseID:       baseID,
		prev:         prev,
		methods:      make(map[string]*MethodInfo, len(s.Methods)),
		defs:         make(map[string]Definition, len(s.Definitions)),
		refs:         maps.Clone(s.References),
		propertyMaps: maps.Clone(s.PropertyMaps),
		eventMaps:    maps.Clone(s.EventMaps),
		arena:        arena,
		provider:     provider,
	}
	copy(g.sizes[:], s.Sizes)
	for _, m := range s.Methods {
		if m.Signature.Slots == nil {
			m.Signature = locals.Signature{}
		}
		g.methods[m.Key] = &m
	}
	for _, d := range s.Definitions {
		g.defs[d.Key] = d
	}
	if g.refs == nil {
		g.refs = make(map[string]meta.Handle)
	}
	if g.propertyMaps == nil {
		g.propertyMaps = make(map[string]meta.RowID)
	}
	if g.eventMaps == nil {
		g.eventMaps = make(map[string]meta.RowID)
	}
	return g, nil
}

// RestoreChain rebuilds a whole chain from snapshots ordered by generation.
func RestoreChain(snaps []Snapshot, provider LocalsProvider) (*Generation, error) {
	var cur *Generation
	for _, s := range snaps {
		g, err := Restore(s, cur, provider)
		if err != nil {
			return nil, err
		}
		cur = g
	}
	if cur == nil {
		return nil, fmt.Errorf("baseline: empty chain")
	}
	return cur, nil
}
