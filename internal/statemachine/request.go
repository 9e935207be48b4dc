package statemachine

import (
	"strings"

	"encdelta/internal/locals"
)

// Request asks the synthesizer for one member of a synthesized type.
type Request struct {
	Role      Role
	Kind      MemberKind
	Name      string
	LocalKind locals.Kind
	Type      string
	Position  locals.Position
	// HasPosition is false for members that have no syntax anchor, such as
	// awaiters reported without an offset.
	HasPosition bool
	Params      int
	Implements  string
	Getter      string
	Static      bool
	// Shared members serve every method using the type.
	Shared bool
	// CacheFor is the index+1 of the lambda request this cache slot belongs to.
	CacheFor int
}

// Awaiter describes one await expression of a resumable body.
type Awaiter struct {
	Type        string
	Position    locals.Position
	HasPosition bool
}

// StateMachineShape is what the lowering pass reports about a resumable method.
type StateMachineShape struct {
	Kind TypeKind
	// ElementType is the yielded or awaited result type.
	ElementType    string
	Instance       bool
	Hoisted        []locals.Descriptor
	Awaiters       []Awaiter
	FinallyHelpers int
}

// Lambda is one lambda expression.
type Lambda struct {
	Position  locals.Position
	Signature string
}

// ClosureShape is one closure scope whose captured variables live in a display class.
type ClosureShape struct {
	Position locals.Position
	// Parent is the index of the enclosing closure scope, or -1.
	Parent       int
	Captures     []Capture
	CapturesThis bool
	Lambdas      []Lambda
}

// Capture is one variable captured by a closure.
type Capture struct {
	Name string
	Type string
}

// DynamicSite is one late-bound call site.
type DynamicSite struct {
	Position locals.Position
	Type     string
}

// AnonymousMember is one property of an anonymous type.
type AnonymousMember struct {
	Name string
	Type string
}

// AnonymousShape is the ordered member list of an anonymous type.
type AnonymousShape struct {
	Members []AnonymousMember
}

// Key returns the identity of the shape; templates are shared between equal keys.
func (s AnonymousShape) Key() string {
	var sb strings.Builder
	for i, m := range s.Members {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(m.Name)
		sb.WriteByte(':')
		sb.WriteString(m.Type)
	}
	return sb.String()
}

// HoistRequests turns the hoisted locals and awaiters of shape into member requests.
func HoistRequests(shape StateMachineShape) []Request {
	out := make([]Request, 0, len(shape.Hoisted)+len(shape.Awaiters))
	for _, d := range shape.Hoisted {
		if !d.Kind.Hoistable() {
			continue
		}
		out = append(out, Request{
			Role:        RoleHoistedLocal,
			Kind:        MemberField,
			Name:        d.Name,
			LocalKind:   d.Kind,
			Type:        d.Type,
			Position:    d.Position,
			HasPosition: true,
		})
	}
	for _, aw := range shape.Awaiters {
		out = append(out, Request{
			Role:        RoleAwaiter,
			Kind:        MemberField,
			Type:        aw.Type,
			Position:    aw.Position,
			HasPosition: aw.HasPosition,
		})
	}
	return out
}
