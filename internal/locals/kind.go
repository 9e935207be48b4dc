package locals

import "fmt"

// Kind classifies a local variable slot by the construct that introduced it.
type Kind uint8

const (
	KindUserDefined Kind = iota
	KindLockObject
	KindLockTaken
	KindUsing
	KindForEachEnumerator
	KindForEachArray
	KindForEachArrayIndex
	KindForEachArrayLimit
	KindFixedReference
	KindFixedString
	KindSwitchCache
	KindAwaiter
	KindPatternTemp
	KindAnonymousTypeHoist
	KindConditionalBranchDiscriminator
	KindLoweringTemp
)

var kindNames = [...]string{
	KindUserDefined:                    "user",
	KindLockObject:                     "lock-object",
	KindLockTaken:                      "lock-taken",
	KindUsing:                          "using",
	KindForEachEnumerator:              "foreach-enumerator",
	KindForEachArray:                   "foreach-array",
	KindForEachArrayIndex:              "foreach-array-index",
	KindForEachArrayLimit:              "foreach-array-limit",
	KindFixedReference:                 "fixed-reference",
	KindFixedString:                    "fixed-string",
	KindSwitchCache:                    "switch-cache",
	KindAwaiter:                        "awaiter",
	KindPatternTemp:                    "pattern-temp",
	KindAnonymousTypeHoist:             "anonymous-type-hoist",
	KindConditionalBranchDiscriminator: "conditional-branch",
	KindLoweringTemp:                   "lowering-temp",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind resolves the textual kind used by scenario files.
func ParseKind(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// TypeKeyed reports whether the slot layout of this kind depends on the local's type,
// in which case the type is part of the slot identity.
func (k Kind) TypeKeyed() bool {
	switch k {
	case KindAwaiter, KindAnonymousTypeHoist, KindFixedReference:
		return true
	}
	return false
}

// Hoistable reports whether a local of this kind becomes a state machine field
// when it lives across a suspension point.
func (k Kind) Hoistable() bool {
	switch k {
	case KindLoweringTemp, KindConditionalBranchDiscriminator:
		return false
	}
	return true
}
