package delta

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"encdelta/internal/meta"
)

// ReferenceResolver finds references emitted by earlier generations.
type ReferenceResolver interface {
	Reference(table meta.TableIndex, key string) (meta.Handle, bool)
}

// Builder collects the rows of one generation. Row ids are handed out from
// per-table counters that start right after the baseline, so existing rows can
// never be rewritten except through UpdateMethod.
type Builder struct {
	base         meta.TableSizes
	next         meta.TableSizes
	order        meta.EmissionOrder
	resolver     ReferenceResolver
	rows         []Row
	updated      map[meta.Handle]bool
	refs         map[string]meta.Handle
	propertyMaps map[string]meta.RowID
	eventMaps    map[string]meta.RowID
	built        bool
}

// NewBuilder starts a delta on top of base. resolver may be nil.
func NewBuilder(base meta.TableSizes, order meta.EmissionOrder, resolver ReferenceResolver) *Builder {
	return &Builder{
		base:         base,
		next:         base,
		order:        order,
		resolver:     resolver,
		updated:      make(map[meta.Handle]bool),
		refs:         make(map[string]meta.Handle),
		propertyMaps: make(map[string]meta.RowID),
		eventMaps:    make(map[string]meta.RowID),
	}
}

func (b *Builder) add(t meta.TableIndex, key string, parent meta.Handle) meta.Handle {
	if b.built {
		panic(fmt.Errorf("delta: row %s %q added after Build", t, key))
	}
	n := b.next.Get(t) + 1
	b.next.Set(t, n)
	h := meta.MakeHandle(t, meta.RowID(n))
	b.rows = append(b.rows, Row{Handle: h, Parent: parent, Key: key})
	return h
}

// AddTypeDef adds a type definition.
func (b *Builder) AddTypeDef(key string) meta.Handle {
	return b.add(meta.TableTypeDef, key, meta.NilHandle)
}

// AddField adds a field to the type at parent.
func (b *Builder) AddField(parent meta.Handle, key string) meta.Handle {
	b.expect(parent, meta.TableTypeDef)
	return b.add(meta.TableField, key, parent)
}

// AddMethod adds a method to the type at parent.
func (b *Builder) AddMethod(parent meta.Handle, key string) meta.Handle {
	b.expect(parent, meta.TableTypeDef)
	return b.add(meta.TableMethodDef, key, parent)
}

// AddParam adds a parameter row to the method at parent.
func (b *Builder) AddParam(parent meta.Handle, key string) meta.Handle {
	b.expect(parent, meta.TableMethodDef)
	return b.add(meta.TableParam, key, parent)
}

// UpdateMethod records that an existing method gets a new body.
func (b *Builder) UpdateMethod(h meta.Handle, key string) {
	if h.Table != meta.TableMethodDef {
		panic(&meta.AppendOnlyViolation{Handle: h, Base: b.base.Get(h.Table), Reason: "only method bodies can be updated"})
	}
	if !b.base.Contains(h) {
		panic(&meta.AppendOnlyViolation{Handle: h, Base: b.base.Get(h.Table), Reason: "update of a row the baseline does not have"})
	}
	if b.built {
		panic(fmt.Errorf("delta: update %s added after Build", h))
	}
	if b.updated[h] {
		return
	}
	b.updated[h] = true
	b.rows = append(b.rows, Row{Handle: h, Key: key, Update: true})
}

// AddProperty adds a property to typeKey. existingMap is the PropertyMap row the
// type already has, or NoRowID.
func (b *Builder) AddProperty(typeKey string, existingMap meta.RowID, key string) meta.Handle {
	mapRow := b.mapRow(meta.TablePropertyMap, b.propertyMaps, typeKey, existingMap)
	return b.add(meta.TableProperty, key, meta.MakeHandle(meta.TablePropertyMap, mapRow))
}

// AddEvent adds an event to typeKey. existingMap is the EventMap row the type
// already has, or NoRowID.
func (b *Builder) AddEvent(typeKey string, existingMap meta.RowID, key string) meta.Handle {
	mapRow := b.mapRow(meta.TableEventMap, b.eventMaps, typeKey, existingMap)
	return b.add(meta.TableEvent, key, meta.MakeHandle(meta.TableEventMap, mapRow))
}

func (b *Builder) mapRow(t meta.TableIndex, created map[string]meta.RowID, typeKey string, existing meta.RowID) meta.RowID {
	if existing.IsValid() {
		return existing
	}
	if row, ok := created[typeKey]; ok {
		return row
	}
	row := b.add(t, typeKey, meta.NilHandle).Row
	created[typeKey] = row
	return row
}

// Reference returns the handle of a reference, adding a row only when neither
// an earlier generation nor this one has emitted it.
func (b *Builder) Reference(t meta.TableIndex, key string) meta.Handle {
	if !t.IsReference() {
		panic(fmt.Errorf("delta: %s is not a reference table", t))
	}
	if b.resolver != nil {
		if h, ok := b.resolver.Reference(t, key); ok {
			return h
		}
	}
	refKey := t.String() + ":" + key
	if h, ok := b.refs[refKey]; ok {
		return h
	}
	h := b.add(t, key, meta.NilHandle)
	b.refs[refKey] = h
	return h
}

// AddStandAloneSig adds a local signature row.
func (b *Builder) AddStandAloneSig(key string) meta.Handle {
	return b.add(meta.TableStandAloneSig, key, meta.NilHandle)
}

// AddCustomAttribute attaches attribute to the row at parent.
func (b *Builder) AddCustomAttribute(parent meta.Handle, attribute string) meta.Handle {
	return b.add(meta.TableCustomAttribute, attribute, parent)
}

// AddMethodSemantics links an accessor method to its property or event.
func (b *Builder) AddMethodSemantics(association, method meta.Handle) meta.Handle {
	return b.add(meta.TableMethodSemantics, fmt.Sprintf("%s->%s", association, method), meta.NilHandle)
}

// AddMethodImpl records that a method implements an interface method.
func (b *Builder) AddMethodImpl(typ meta.Handle, implemented string) meta.Handle {
	return b.add(meta.TableMethodImpl, fmt.Sprintf("%s:%s", typ, implemented), meta.NilHandle)
}

// AddNestedClass records that nested is declared inside enclosing.
func (b *Builder) AddNestedClass(nested meta.Handle, enclosing string) meta.Handle {
	return b.add(meta.TableNestedClass, fmt.Sprintf("%s in %s", nested, enclosing), meta.NilHandle)
}

// AddInterfaceImpl records that typ implements iface.
func (b *Builder) AddInterfaceImpl(typ meta.Handle, iface string) meta.Handle {
	return b.add(meta.TableInterfaceImpl, fmt.Sprintf("%s:%s", typ, iface), meta.NilHandle)
}

// Sizes returns the row counts including everything added so far.
func (b *Builder) Sizes() meta.TableSizes { return b.next }

func (b *Builder) expect(h meta.Handle, t meta.TableIndex) {
	if h.Table != t || h.IsNil() {
		panic(fmt.Errorf("delta: expected a %s parent, got %s", t, h))
	}
	if !b.base.Contains(h) && h.Row > meta.RowID(b.next.Get(t)) {
		panic(&meta.AppendOnlyViolation{Handle: h, Base: b.base.Get(t), Reason: "parent row does not exist"})
	}
}

// Build orders the collected rows and produces the delta. A builder builds once.
func (b *Builder) Build() (*Delta, error) {
	if b.built {
		return nil, fmt.Errorf("delta: builder already built")
	}
	b.built = true

	for _, r := range b.rows {
		if !r.Update && uint32(r.Handle.Row) <= b.base.Get(r.Handle.Table) {
			panic(&meta.AppendOnlyViolation{Handle: r.Handle, Base: b.base.Get(r.Handle.Table), Reason: "new row inside the baseline"})
		}
	}

	byTable := make(map[meta.TableIndex][]Row)
	for _, r := range b.rows {
		byTable[r.Handle.Table] = append(byTable[r.Handle.Table], r)
	}

	d := &Delta{
		Order:        b.order.Name,
		Sizes:        b.next,
		References:   maps.Clone(b.refs),
		PropertyMaps: maps.Clone(b.propertyMaps),
		EventMaps:    maps.Clone(b.eventMaps),
	}
	for _, t := range b.order.Sequence() {
		rows := byTable[t]
		slices.SortFunc(rows, func(x, y Row) int { return cmp.Compare(x.Handle.Row, y.Handle.Row) })
		for _, r := range rows {
			if op, ok := meta.AddOpFor(t); ok && !r.Parent.IsNil() {
				d.Log = append(d.Log, meta.LogEntry{Row: r.Parent.Row, Table: r.Parent.Table, Op: op})
			}
			d.Log = append(d.Log, meta.LogEntry{Row: r.Handle.Row, Table: t, Op: meta.OpDefault})
			d.Map = append(d.Map, meta.MapEntry{Table: t, Row: r.Handle.Row})
			d.Rows = append(d.Rows, r)
		}
	}
	d.Map = meta.SortMap(d.Map)
	return d, nil
}
