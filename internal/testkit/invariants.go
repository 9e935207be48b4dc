// Package testkit checks the invariants every accepted generation must hold.
// The checks are shared by package tests and by `encdelta replay --verify`.
package testkit

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"encdelta/internal/baseline"
	"encdelta/internal/delta"
	"encdelta/internal/locals"
	"encdelta/internal/meta"
)

// CheckAppendOnly verifies that the delta only appends rows past prev and
// rewrites rows prev already has:
// 1) no table shrinks
// 2) every new row lies between the previous and the next table size
// 3) every rewritten row exists in prev
func CheckAppendOnly(prev meta.TableSizes, d *delta.Delta) error {
	if t, shrunk := prev.Shrunk(d.Sizes); shrunk {
		return fmt.Errorf("table %s shrinks from %d to %d", t, prev.Get(t), d.Sizes.Get(t))
	}
	for _, r := range d.Rows {
		row := uint32(r.Handle.Row)
		base := prev.Get(r.Handle.Table)
		if r.Update {
			if !prev.Contains(r.Handle) {
				return fmt.Errorf("update of %s outside the previous generation (%d rows)", r.Handle, base)
			}
			continue
		}
		if row <= base || row > d.Sizes.Get(r.Handle.Table) {
			return fmt.Errorf("new row %s outside (%d, %d]", r.Handle, base, d.Sizes.Get(r.Handle.Table))
		}
	}
	return nil
}

// CheckEncMap verifies that the EncMap is sorted by table then row, has no
// duplicates and lists exactly the rows the EncLog touches.
func CheckEncMap(d *delta.Delta) error {
	for i := 1; i < len(d.Map); i++ {
		prev, cur := d.Map[i-1].Handle(), d.Map[i].Handle()
		if !prev.Less(cur) {
			return fmt.Errorf("EncMap entry %d (%s) does not follow %s", i, cur, prev)
		}
	}
	inMap := make(map[meta.Handle]bool, len(d.Map))
	for _, e := range d.Map {
		inMap[e.Handle()] = true
	}
	logged := make(map[meta.Handle]bool, len(d.Log))
	for _, e := range d.Log {
		if e.Op != meta.OpDefault {
			continue
		}
		logged[e.Handle()] = true
		if !inMap[e.Handle()] {
			return fmt.Errorf("EncLog row %s missing from the EncMap", e.Handle())
		}
	}
	n, err := safecast.Conv[uint32](len(logged))
	if err != nil {
		return fmt.Errorf("log size overflow: %w", err)
	}
	m, err := safecast.Conv[uint32](len(inMap))
	if err != nil {
		return fmt.Errorf("map size overflow: %w", err)
	}
	if n != m {
		return fmt.Errorf("EncMap lists %d rows but the EncLog touches %d", m, n)
	}
	return nil
}

// CheckLogClosure verifies that every Add* entry is immediately followed by
// the Default entry of the row it announces, in the table the operation adds to.
func CheckLogClosure(d *delta.Delta) error {
	for i, e := range d.Log {
		if e.Op == meta.OpDefault {
			continue
		}
		if i+1 >= len(d.Log) {
			return fmt.Errorf("EncLog ends with %s", e)
		}
		next := d.Log[i+1]
		if next.Op != meta.OpDefault {
			return fmt.Errorf("%s is followed by %s", e, next)
		}
		if op, ok := meta.AddOpFor(next.Table); !ok || op != e.Op {
			return fmt.Errorf("%s announces a %s row", e, next.Table)
		}
	}
	return nil
}

// CheckSlots verifies slot monotonicity between the signature a method had
// and the one it was given with preservation: no slot disappears and every
// slot either keeps its identity or becomes an unused placeholder.
func CheckSlots(prev, next locals.Signature) error {
	if next.Len() < prev.Len() {
		return fmt.Errorf("signature shrinks from %d to %d slots", prev.Len(), next.Len())
	}
	for i, old := range prev.Slots {
		cur := next.Slots[i]
		if old.Unused && !cur.Unused {
			return fmt.Errorf("slot %d revived after being unused", i)
		}
		if cur.Unused {
			continue
		}
		if cur.Descriptor.Kind != old.Descriptor.Kind {
			return fmt.Errorf("slot %d changes kind from %s to %s", i, old.Descriptor.Kind, cur.Descriptor.Kind)
		}
		if cur.Descriptor.Type != old.Descriptor.Type {
			return fmt.Errorf("slot %d changes type from %s to %s", i, old.Descriptor.Type, cur.Descriptor.Type)
		}
	}
	return nil
}

// CheckGeneration runs every delta check for next, derived from prev with d.
// Signatures are compared for methods in preserved; pass nil to skip them.
func CheckGeneration(prev, next *baseline.Generation, d *delta.Delta, preserved []string) error {
	if prev == nil || next == nil || d == nil {
		return errors.New("testkit: nil generation or delta")
	}
	if next.Ordinal() != prev.Ordinal()+1 {
		return fmt.Errorf("generation %d does not follow %d", next.Ordinal(), prev.Ordinal())
	}
	if next.BaseID() != prev.EncID() {
		return fmt.Errorf("generation %d is based on %s, want %s", next.Ordinal(), next.BaseID(), prev.EncID())
	}
	var errs []error
	if err := CheckAppendOnly(prev.Sizes(), d); err != nil {
		errs = append(errs, err)
	}
	if err := CheckEncMap(d); err != nil {
		errs = append(errs, err)
	}
	if err := CheckLogClosure(d); err != nil {
		errs = append(errs, err)
	}
	for _, key := range preserved {
		before, ok := prev.LocalSignature(key)
		if !ok {
			continue
		}
		after, _ := next.LocalSignature(key)
		if err := CheckSlots(before, after); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("generation %d: %w", next.Ordinal(), errors.Join(errs...))
	}
	return nil
}
