package meta

import "fmt"

// EmissionOrder lists table groups in the order EncLog entries are written.
// Tables missing from the order are appended after the last group in index order.
type EmissionOrder struct {
	Name   string
	Groups [][]TableIndex
}

var (
	referenceGroup = []TableIndex{
		TableAssemblyRef, TableModuleRef, TableMemberRef, TableMethodSpec,
		TableTypeRef, TableTypeSpec, TableStandAloneSig,
	}
	definitionGroup = []TableIndex{
		TableTypeDef, TableEventMap, TablePropertyMap, TableEvent, TableField,
		TableMethodDef, TableProperty, TableParam,
	}
	auxiliaryGroup = []TableIndex{
		TableConstant, TableCustomAttribute, TableDeclSecurity, TableClassLayout,
		TableFieldLayout, TableMethodSemantics, TableMethodImpl, TableImplMap,
		TableFieldRva, TableNestedClass, TableGenericParam, TableGenericParamConstraint,
		TableInterfaceImpl,
	}
)

const (
	OrderObserved         = "observed"
	OrderDefinitionsFirst = "definitions-first"
)

// ObservedOrder writes references first, then definitions, then auxiliary tables.
func ObservedOrder() EmissionOrder {
	return EmissionOrder{Name: OrderObserved, Groups: [][]TableIndex{referenceGroup, definitionGroup, auxiliaryGroup}}
}

// DefinitionsFirstOrder writes definitions, then references, then auxiliary tables.
func DefinitionsFirstOrder() EmissionOrder {
	return EmissionOrder{Name: OrderDefinitionsFirst, Groups: [][]TableIndex{definitionGroup, referenceGroup, auxiliaryGroup}}
}

// ParseOrder resolves an order profile by name. The empty name selects the observed order.
func ParseOrder(name string) (EmissionOrder, error) {
	switch name {
	case "", OrderObserved:
		return ObservedOrder(), nil
	case OrderDefinitionsFirst:
		return DefinitionsFirstOrder(), nil
	default:
		return EmissionOrder{}, fmt.Errorf("meta: unknown emission order %q", name)
	}
}

// Sequence flattens the groups and appends every remaining known table.
func (o EmissionOrder) Sequence() []TableIndex {
	seen := make(map[TableIndex]bool, TableCount)
	out := make([]TableIndex, 0, TableCount)
	for _, group := range o.Groups {
		for _, t := range group {
			if seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	for i := range TableCount {
		t := TableIndex(i)
		if t.Known() && !seen[t] && t != TableEncLog && t != TableEncMap {
			out = append(out, t)
		}
	}
	return out
}
