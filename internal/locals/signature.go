package locals

import (
	"fmt"
	"strings"
)

// Slot is one entry of a local signature.
type Slot struct {
	Descriptor Descriptor
	// Unused marks a slot kept only so later slots keep their numbers.
	Unused bool
}

// Signature is the ordered slot list of one method body; the slot number is the index.
type Signature struct {
	Slots []Slot
}

// NewSignature lays out descs in order as active slots.
func NewSignature(descs ...Descriptor) Signature {
	slots := make([]Slot, len(descs))
	for i, d := range descs {
		slots[i] = Slot{Descriptor: d}
	}
	return Signature{Slots: slots}
}

// Len reports the number of slots.
func (s Signature) Len() int { return len(s.Slots) }

// Clone returns an independent copy.
func (s Signature) Clone() Signature {
	if s.Slots == nil {
		return Signature{}
	}
	out := make([]Slot, len(s.Slots))
	copy(out, s.Slots)
	return Signature{Slots: out}
}

// Equal reports whether both signatures have the same slots, positions included.
func (s Signature) Equal(other Signature) bool {
	if len(s.Slots) != len(other.Slots) {
		return false
	}
	for i := range s.Slots {
		if s.Slots[i] != other.Slots[i] {
			return false
		}
	}
	return true
}

// SameLayout reports whether both signatures declare the same slot types in the
// same order. Two signatures with the same layout encode to the same blob.
func (s Signature) SameLayout(other Signature) bool {
	if len(s.Slots) != len(other.Slots) {
		return false
	}
	for i := range s.Slots {
		if s.Slots[i].Descriptor.Type != other.Slots[i].Descriptor.Type {
			return false
		}
	}
	return true
}

// Lines renders each slot as "[type] V_n", the way IL listings show locals.
func (s Signature) Lines() []string {
	out := make([]string, len(s.Slots))
	for i, slot := range s.Slots {
		out[i] = fmt.Sprintf("[%s] V_%d", slot.Descriptor.Type, i)
	}
	return out
}

func (s Signature) String() string {
	return strings.Join(s.Lines(), ", ")
}
