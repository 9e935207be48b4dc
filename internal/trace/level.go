package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota
	LevelError        // rejected generations only
	LevelPhase        // session and generation stages
	LevelDetail       // plus one span per method
	LevelDebug        // plus every slot decision
)

var levelNames = []string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level %q (expected %s)", s, strings.Join(levelNames, "|"))
}

// ShouldEmit reports whether spans and points of scope are recorded.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelPhase:
		return scope <= ScopeGeneration
	case LevelDetail:
		return scope <= ScopeMethod
	case LevelDebug:
		return true
	default:
		return false
	}
}

// keeps is the filter tracers apply to incoming events.
func (l Level) keeps(ev *Event) bool {
	switch ev.Kind {
	case KindHeartbeat, KindReject:
		return l > LevelOff
	default:
		return l.ShouldEmit(ev.Scope)
	}
}
