package statemachine

import "fmt"

// Role describes what a synthesized member is for.
type Role uint8

const (
	RoleHoistedLocal Role = iota + 1
	RoleAwaiter
	RoleStateOrdinal
	RoleCurrentValue
	RoleBuilder
	RoleInitialThreadID
	RoleThisProxy
	RoleDisplayClassLink
	RoleAnonymousCacheSlot
	RoleCapturedVariable
	RoleCacheInstance
	RoleHelperMethod
	RoleLambdaMethod
	RoleDynamicSite
	RoleTemplateField
)

var roleNames = map[Role]string{
	RoleHoistedLocal:       "hoisted-local",
	RoleAwaiter:            "awaiter",
	RoleStateOrdinal:       "state",
	RoleCurrentValue:       "current",
	RoleBuilder:            "builder",
	RoleInitialThreadID:    "initial-thread-id",
	RoleThisProxy:          "this",
	RoleDisplayClassLink:   "display-class-link",
	RoleAnonymousCacheSlot: "cache-slot",
	RoleCapturedVariable:   "captured",
	RoleCacheInstance:      "cache-instance",
	RoleHelperMethod:       "helper",
	RoleLambdaMethod:       "lambda",
	RoleDynamicSite:        "dynamic-site",
	RoleTemplateField:      "template-field",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// ParseRole resolves the textual role used by scenario files.
func ParseRole(s string) (Role, bool) {
	for r, name := range roleNames {
		if name == s {
			return r, true
		}
	}
	return 0, false
}

// Positional roles are matched by syntax position.
func (r Role) Positional() bool {
	switch r {
	case RoleHoistedLocal, RoleAwaiter, RoleLambdaMethod:
		return true
	}
	return false
}

// Singleton roles are active at most once per type and keep a fixed name. A
// type change moves the role to a replacement member.
func (r Role) Singleton() bool {
	switch r {
	case RoleStateOrdinal, RoleCurrentValue, RoleBuilder, RoleInitialThreadID,
		RoleThisProxy, RoleCacheInstance:
		return true
	}
	return false
}

// MemberKind is the metadata table a member lands in.
type MemberKind uint8

const (
	MemberField MemberKind = iota
	MemberMethod
	MemberProperty
)

func (k MemberKind) String() string {
	switch k {
	case MemberField:
		return "field"
	case MemberMethod:
		return "method"
	case MemberProperty:
		return "property"
	default:
		return fmt.Sprintf("MemberKind(%d)", uint8(k))
	}
}

// TypeKind classifies a synthesized type.
type TypeKind uint8

const (
	TypeIterator TypeKind = iota + 1
	TypeAsync
	TypeAsyncIterator
	TypeClosure
	TypeLambdaCache
	TypeDynamicContainer
	TypeAnonymousTemplate
)

var typeKindNames = map[TypeKind]string{
	TypeIterator:          "iterator",
	TypeAsync:             "async",
	TypeAsyncIterator:     "async-iterator",
	TypeClosure:           "closure",
	TypeLambdaCache:       "lambda-cache",
	TypeDynamicContainer:  "dynamic-container",
	TypeAnonymousTemplate: "anonymous-template",
}

func (k TypeKind) String() string {
	if name, ok := typeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TypeKind(%d)", uint8(k))
}

// ParseTypeKind resolves the textual kind used by scenario files.
func ParseTypeKind(s string) (TypeKind, bool) {
	for k, name := range typeKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// IsStateMachine reports whether the kind is a lowered resumable method.
func (k TypeKind) IsStateMachine() bool {
	return k == TypeIterator || k == TypeAsync || k == TypeAsyncIterator
}
