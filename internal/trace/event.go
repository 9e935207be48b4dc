package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
	// KindReject marks a rejected generation. It is kept at every level
	// above LevelOff.
	KindReject
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
	KindReject:    "reject",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event. Coarser scopes have lower values.
type Scope uint8

const (
	// ScopeSession covers a replay or an editing session.
	ScopeSession Scope = iota + 1
	// ScopeGeneration covers one EmitDifference call and its stages.
	ScopeGeneration
	// ScopeMethod covers per-method allocation and synthesis.
	ScopeMethod
	ScopeSlot // individual slot decisions
)

func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopeGeneration:
		return "generation"
	case ScopeMethod:
		return "method"
	case ScopeSlot:
		return "slot"
	default:
		return "unknown"
	}
}

// Event is a single trace record. Generation and Method are inherited from
// the enclosing span, so a slot point knows which method and generation it
// belongs to without repeating them in its name.
type Event struct {
	Time       time.Time
	Seq        uint64
	Kind       Kind
	Scope      Scope
	SpanID     uint64
	ParentID   uint64
	Generation int    // 0 outside a generation
	Method     string // symbol key, empty outside a method
	Name       string
	Detail     string
	Extra      map[string]string
}
