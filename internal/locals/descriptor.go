package locals

import "fmt"

// Position is a stable syntax offset of the declaring node within a method body.
type Position uint32

// Descriptor identifies a local variable slot independently of its slot number.
type Descriptor struct {
	Kind     Kind
	Position Position
	Type     string
	// Name is informational; it never takes part in matching.
	Name string
}

// Key is the identity of a descriptor used for cross-generation matching.
type Key struct {
	Kind     Kind
	Position Position
	Type     string
}

// Key returns the identity of d. The type participates only for type-keyed kinds.
func (d Descriptor) Key() Key {
	k := Key{Kind: d.Kind, Position: d.Position}
	if d.Kind.TypeKeyed() {
		k.Type = d.Type
	}
	return k
}

// WithPosition returns a copy of d declared at pos.
func (d Descriptor) WithPosition(pos Position) Descriptor {
	d.Position = pos
	return d
}

func (d Descriptor) String() string {
	if d.Name != "" {
		return fmt.Sprintf("%s %s %s@%d", d.Kind, d.Type, d.Name, d.Position)
	}
	return fmt.Sprintf("%s %s@%d", d.Kind, d.Type, d.Position)
}
