package symbols

import "fmt"

// Kind classifies a symbol of the compilation.
type Kind uint8

const (
	KindType Kind = iota + 1
	KindMethod
	KindField
	KindProperty
	KindEvent
)

var kindNames = map[Kind]string{
	KindType:     "type",
	KindMethod:   "method",
	KindField:    "field",
	KindProperty: "property",
	KindEvent:    "event",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind resolves the textual kind used by scenario files.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// IsMember reports whether symbols of this kind live inside a type.
func (k Kind) IsMember() bool { return k != KindType }
