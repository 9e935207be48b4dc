package baseline

import (
	"fmt"
	"maps"

	"github.com/google/uuid"

	"encdelta/internal/meta"
	"encdelta/internal/statemachine"
)

// Changes is everything a successful delta adds to the chain.
type Changes struct {
	Sizes        meta.TableSizes
	Methods      []MethodInfo
	Definitions  []Definition
	References   map[string]meta.Handle
	PropertyMaps map[string]meta.RowID
	EventMaps    map[string]meta.RowID
	// Arena becomes owned by the new generation.
	Arena *statemachine.Arena
}

// nextEncID derives the id of the generation following base. The derivation is
// deterministic so replaying a chain reproduces its ids.
func nextEncID(base uuid.UUID, ordinal int) uuid.UUID {
	return uuid.NewSHA1(base, fmt.Appendf(nil, "generation/%d", ordinal))
}

// Derive builds the generation that follows prev. prev is not modified.
func Derive(prev *Generation, ch Changes) (*Generation, error) {
	if prev == nil {
		return nil, fmt.Errorf("baseline: derive without a previous generation")
	}
	if table, shrunk := prev.sizes.Shrunk(ch.Sizes); shrunk {
		return nil, &meta.AppendOnlyViolation{
			Handle: meta.MakeHandle(table, meta.RowID(ch.Sizes.Get(table))),
			Base:   prev.sizes.Get(table),
			Reason: "table shrank",
		}
	}
	arena := ch.Arena
	if arena == nil {
		arena = prev.arena
	}
	g := &Generation{
		ordinal:      prev.ordinal + 1,
		baseID:       prev.encID,
		encID:        nextEncID(prev.encID, prev.ordinal+1),
		sizes:        ch.Sizes,
		prev:         prev,
		methods:      maps.Clone(prev.methods),
		defs:         maps.Clone(prev.defs),
		refs:         maps.Clone(prev.refs),
		propertyMaps: maps.Clone(prev.propertyMaps),
		eventMaps:    maps.Clone(prev.eventMaps),
		arena:        arena,
		provider:     prev.provider,
	}
	for _, m := range ch.Methods {
		if !g.sizes.Contains(m.Handle) {
			return nil, &ModuleError{Key: m.Key, Handle: m.Handle, Reason: "row outside the table"}
		}
		m.Signature = m.Signature.Clone()
		m.Params = append([]meta.Handle(nil), m.Params...)
		g.methods[m.Key] = &m
	}
	for _, d := range ch.Definitions {
		if !g.sizes.Contains(d.Handle) {
			return nil, &ModuleError{Key: d.Key, Handle: d.Handle, Reason: "row outside the table"}
		}
		g.defs[d.Key] = d
	}
	for k, h := range ch.References {
		g.refs[k] = h
	}
	for k, r := range ch.PropertyMaps {
		g.propertyMaps[k] = r
	}
	for k, r := range ch.EventMaps {
		g.eventMaps[k] = r
	}
	return g, nil
}
