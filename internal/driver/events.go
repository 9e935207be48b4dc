package driver

import (
	"fmt"
	"time"
)

// Stage is one step of computing a generation. StageGeneration brackets
// the whole EmitDifference call.
type Stage string

const (
	StageValidate   Stage = "validate"
	StageGate       Stage = "attribute-gate"
	StageAllocate   Stage = "allocate"
	StageCommit     Stage = "commit"
	StageBuild      Stage = "build"
	StageDerive     Stage = "derive"
	StagePersist    Stage = "persist"
	StageGeneration Stage = "generation"
)

type Status string

const (
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for one method, or for the whole generation when
// Method is empty. Per-method events are only sent for StageAllocate.
type Event struct {
	Generation int
	Method     string
	Stage      Stage
	Status     Status
	Err        error
	Elapsed    time.Duration
}

func (e Event) String() string {
	s := fmt.Sprintf("generation %d %s %s", e.Generation, e.Stage, e.Status)
	if e.Method != "" {
		s += " " + e.Method
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// ProgressSink consumes progress events. Implementations must be safe for
// concurrent use: per-method events arrive from worker goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(ev Event) { f(ev) }

func notify(sink ProgressSink, ev Event) {
	if sink != nil {
		sink.OnEvent(ev)
	}
}
