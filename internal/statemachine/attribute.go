package statemachine

import "fmt"

// Well-known attributes a resumable method carries.
const (
	IteratorStateMachineAttribute      = "System.Runtime.CompilerServices.IteratorStateMachineAttribute"
	AsyncStateMachineAttribute         = "System.Runtime.CompilerServices.AsyncStateMachineAttribute"
	AsyncIteratorStateMachineAttribute = "System.Runtime.CompilerServices.AsyncIteratorStateMachineAttribute"
	CompilerGeneratedAttribute         = "System.Runtime.CompilerServices.CompilerGeneratedAttribute"
	DebuggerStepThroughAttribute       = "System.Diagnostics.DebuggerStepThroughAttribute"
	DebuggerHiddenAttribute            = "System.Diagnostics.DebuggerHiddenAttribute"
)

// AttributeFor returns the attribute that marks the kickoff method of a state machine of kind k.
func AttributeFor(k TypeKind) (string, bool) {
	switch k {
	case TypeIterator:
		return IteratorStateMachineAttribute, true
	case TypeAsync:
		return AsyncStateMachineAttribute, true
	case TypeAsyncIterator:
		return AsyncIteratorStateMachineAttribute, true
	}
	return "", false
}

// AttributeConstructor returns the method key of the constructor a state
// machine attribute is applied through. It takes the state machine type.
func AttributeConstructor(attr string) string { return attr + "..ctor(System.Type)" }

// MissingAttributeError rejects an edit that crosses the state machine boundary
// while the runtime lacks the marking attribute.
type MissingAttributeError struct {
	Method    string
	Attribute string
}

func (e *MissingAttributeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("cannot update '%s'; attribute '%s' is missing", e.Method, e.Attribute)
}

// ConflictError reports two requests that cannot coexist in one type.
type ConflictError struct {
	Type   string
	Member string
	Reason string
}

func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("synthesized member %s.%s: %s", e.Type, e.Member, e.Reason)
}
