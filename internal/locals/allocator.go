package locals

import (
	"fmt"

	"fortio.org/safecast"
)

// TypeEquivalence decides whether a baseline slot of type prev can hold a local of type next.
type TypeEquivalence func(prev, next string) bool

// ExactType is the default equivalence: the type names must be identical.
func ExactType(prev, next string) bool { return prev == next }

// Options control one allocation.
type Options struct {
	// Preserve requests slot reuse against the baseline signature.
	Preserve bool
	// SyntaxMap maps new positions to old ones; nil means identity.
	SyntaxMap NodeCorrespondence
	// BodyUnchanged is set when the caller knows the body text did not change.
	BodyUnchanged bool
}

// Result is the outcome of one allocation.
type Result struct {
	Signature Signature
	// Slots[i] is the slot assigned to the i-th requested descriptor.
	Slots    []int
	Reused   int
	Appended int
}

// Allocator assigns slot numbers to the locals of an updated method body.
type Allocator struct {
	Equivalence TypeEquivalence
}

// NewAllocator returns an allocator using exact type equivalence.
func NewAllocator() *Allocator { return &Allocator{Equivalence: ExactType} }

// Allocate lays out descs against baseline. It never fails: descriptors that
// cannot be matched get fresh slots at the end and unmatched baseline slots
// stay in place as unused placeholders.
func (a *Allocator) Allocate(baseline Signature, descs []Descriptor, opts Options) Result {
	if !opts.Preserve {
		return fresh(descs)
	}
	equiv := ExactType
	if a != nil && a.Equivalence != nil {
		equiv = a.Equivalence
	}

	// candidates per identity in ascending slot order; placeholders are never offered
	candidates := make(map[Key][]int, len(baseline.Slots))
	for i, slot := range baseline.Slots {
		if slot.Unused {
			continue
		}
		k := slot.Descriptor.Key()
		candidates[k] = append(candidates[k], i)
	}

	out := make([]Slot, len(baseline.Slots), len(baseline.Slots)+len(descs))
	claimed := make([]bool, len(baseline.Slots))
	res := Result{Slots: make([]int, len(descs))}

	for i, d := range descs {
		slot := -1
		if oldPos, ok := MapOrIdentity(opts.SyntaxMap, d.Position); ok {
			for _, idx := range candidates[d.WithPosition(oldPos).Key()] {
				if claimed[idx] {
					continue
				}
				// type-keyed kinds already matched on the exact type
				base := baseline.Slots[idx].Descriptor
				if !d.Kind.TypeKeyed() && !equiv(base.Type, d.Type) {
					continue
				}
				claimed[idx] = true
				kept := d
				kept.Type = base.Type
				out[idx] = Slot{Descriptor: kept}
				slot = idx
				res.Reused++
				break
			}
		}
		if slot < 0 {
			slot = len(out)
			out = append(out, Slot{Descriptor: d})
			res.Appended++
		}
		res.Slots[i] = slot
	}

	for i := range baseline.Slots {
		if !claimed[i] {
			out[i] = Slot{Descriptor: baseline.Slots[i].Descriptor, Unused: true}
		}
	}

	if opts.SyntaxMap == nil && opts.BodyUnchanged && res.Appended == 0 {
		res.Signature = baseline.Clone()
		return res
	}
	res.Signature = Signature{Slots: out}
	return res
}

func fresh(descs []Descriptor) Result {
	res := Result{
		Signature: NewSignature(descs...),
		Slots:     make([]int, len(descs)),
		Appended:  len(descs),
	}
	for i := range descs {
		res.Slots[i] = i
	}
	return res
}

// SlotNumber converts a slot index into the 16-bit form used by IL operands.
func SlotNumber(slot int) (uint16, error) {
	n, err := safecast.Conv[uint16](slot)
	if err != nil {
		return 0, fmt.Errorf("locals: slot %d does not fit an IL operand: %w", slot, err)
	}
	return n, nil
}
