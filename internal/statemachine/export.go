package statemachine

import (
	"fmt"
	"maps"
	"slices"
)

// ArenaData is the serializable form of an arena.
type ArenaData struct {
	Types    []Type                    `msgpack:"types" cbor:"1,keyasint"`
	Members  []Member                  `msgpack:"members" cbor:"2,keyasint"`
	Counters map[string]MethodCounters `msgpack:"counters" cbor:"3,keyasint"`
}

// Export copies the arena contents without the sentinels.
func (a *Arena) Export() ArenaData {
	c := a.Clone()
	return ArenaData{
		Types:    c.types[1:],
		Members:  c.members[1:],
		Counters: maps.Clone(c.methods),
	}
}

// ImportArena rebuilds an arena and its indexes from exported data.
func ImportArena(data ArenaData) (*Arena, error) {
	a := NewArena(uint32(min(len(data.Types), 1<<16))) //nolint:gosec // bounded by min
	for i, t := range data.Types {
		members := t.Members
		id := a.NewType(t)
		if int(id) != i+1 {
			return nil, fmt.Errorf("statemachine: type %q imported out of order", t.Name)
		}
		a.types[id].Members = slices.Clone(members)
	}
	a.members = append(a.members, data.Members...)
	for _, t := range a.types[1:] {
		for _, id := range t.Members {
			if !id.IsValid() || int(id) >= len(a.members) {
				return nil, fmt.Errorf("statemachine: type %q lists unknown member %d", t.Name, id)
			}
		}
	}
	for method, c := range data.Counters {
		a.methods[method] = c
	}
	return a, nil
}
