package meta

import "fmt"

// TableIndex is the ECMA-335 metadata table number.
type TableIndex uint8

const (
	TableModule                 TableIndex = 0x00
	TableTypeRef                TableIndex = 0x01
	TableTypeDef                TableIndex = 0x02
	TableField                  TableIndex = 0x04
	TableMethodDef              TableIndex = 0x06
	TableParam                  TableIndex = 0x08
	TableInterfaceImpl          TableIndex = 0x09
	TableMemberRef              TableIndex = 0x0A
	TableConstant               TableIndex = 0x0B
	TableCustomAttribute        TableIndex = 0x0C
	TableDeclSecurity           TableIndex = 0x0E
	TableClassLayout            TableIndex = 0x0F
	TableFieldLayout            TableIndex = 0x10
	TableStandAloneSig          TableIndex = 0x11
	TableEventMap               TableIndex = 0x12
	TableEvent                  TableIndex = 0x14
	TablePropertyMap            TableIndex = 0x15
	TableProperty               TableIndex = 0x17
	TableMethodSemantics        TableIndex = 0x18
	TableMethodImpl             TableIndex = 0x19
	TableModuleRef              TableIndex = 0x1A
	TableTypeSpec               TableIndex = 0x1B
	TableImplMap                TableIndex = 0x1C
	TableFieldRva               TableIndex = 0x1D
	TableEncLog                 TableIndex = 0x1E
	TableEncMap                 TableIndex = 0x1F
	TableAssembly               TableIndex = 0x20
	TableAssemblyRef            TableIndex = 0x23
	TableNestedClass            TableIndex = 0x29
	TableGenericParam           TableIndex = 0x2A
	TableMethodSpec             TableIndex = 0x2B
	TableGenericParamConstraint TableIndex = 0x2C
)

// TableCount is the number of table slots addressable by a TableIndex.
const TableCount = 0x2D

var tableNames = map[TableIndex]string{
	TableModule:                 "Module",
	TableTypeRef:                "TypeRef",
	TableTypeDef:                "TypeDef",
	TableField:                  "Field",
	TableMethodDef:              "MethodDef",
	TableParam:                  "Param",
	TableInterfaceImpl:          "InterfaceImpl",
	TableMemberRef:              "MemberRef",
	TableConstant:               "Constant",
	TableCustomAttribute:        "CustomAttribute",
	TableDeclSecurity:           "DeclSecurity",
	TableClassLayout:            "ClassLayout",
	TableFieldLayout:            "FieldLayout",
	TableStandAloneSig:          "StandAloneSig",
	TableEventMap:               "EventMap",
	TableEvent:                  "Event",
	TablePropertyMap:            "PropertyMap",
	TableProperty:               "Property",
	TableMethodSemantics:        "MethodSemantics",
	TableMethodImpl:             "MethodImpl",
	TableModuleRef:              "ModuleRef",
	TableTypeSpec:               "TypeSpec",
	TableImplMap:                "ImplMap",
	TableFieldRva:               "FieldRva",
	TableEncLog:                 "EncLog",
	TableEncMap:                 "EncMap",
	TableAssembly:               "Assembly",
	TableAssemblyRef:            "AssemblyRef",
	TableNestedClass:            "NestedClass",
	TableGenericParam:           "GenericParam",
	TableMethodSpec:             "MethodSpec",
	TableGenericParamConstraint: "GenericParamConstraint",
}

var tablesByName = func() map[string]TableIndex {
	out := make(map[string]TableIndex, len(tableNames))
	for t, name := range tableNames {
		out[name] = t
	}
	return out
}()

func (t TableIndex) String() string {
	if name, ok := tableNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Table(0x%02X)", uint8(t))
}

// Known reports whether t names one of the tables listed above.
func (t TableIndex) Known() bool {
	_, ok := tableNames[t]
	return ok
}

// ParseTable resolves a table by its metadata name ("MethodDef", "TypeRef", ...).
func ParseTable(name string) (TableIndex, bool) {
	t, ok := tablesByName[name]
	return t, ok
}

// IsReference reports whether rows of t point outside the module's own definitions.
func (t TableIndex) IsReference() bool {
	switch t {
	case TableAssemblyRef, TableModuleRef, TableMemberRef, TableMethodSpec,
		TableTypeRef, TableTypeSpec, TableStandAloneSig:
		return true
	}
	return false
}

// IsDefinition reports whether t holds definitions that can carry an EnC add operation.
func (t TableIndex) IsDefinition() bool {
	switch t {
	case TableTypeDef, TableEventMap, TablePropertyMap, TableEvent, TableField,
		TableMethodDef, TableProperty, TableParam:
		return true
	}
	return false
}
