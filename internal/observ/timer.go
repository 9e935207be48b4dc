// Package observ times the stages of a generation.
package observ

import (
	"sync"
	"time"
)

type phase struct {
	name string
	dur  time.Duration
	note string
	// work done by individual methods while this phase ran
	methods    int
	methodTime time.Duration
}

// Timer records the serial stages of one generation, and the per-method
// work done in parallel inside them. Measure is called from one goroutine;
// Method may be called from many.
type Timer struct {
	mu     sync.Mutex
	phases []phase
	open   int // index of the running phase, -1 between phases
}

func NewTimer() *Timer { return &Timer{phases: make([]phase, 0, 8), open: -1} }

// Measure runs fn as the stage name. A failing stage keeps the error text
// as its note.
func (t *Timer) Measure(name string, fn func() error) error {
	t.mu.Lock()
	t.phases = append(t.phases, phase{name: name})
	t.open = len(t.phases) - 1
	t.mu.Unlock()

	start := time.Now()
	err := fn()
	dur := time.Since(start)

	t.mu.Lock()
	p := &t.phases[t.open]
	p.dur = dur
	if err != nil {
		p.note = "failed: " + err.Error()
	}
	t.open = -1
	t.mu.Unlock()
	return err
}

// Method adds the time one method took to the running stage. Outside a
// stage it does nothing.
func (t *Timer) Method(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open < 0 {
		return
	}
	p := &t.phases[t.open]
	p.methods++
	p.methodTime += d
}

// PhaseReport is the serializable form of a stage.
type PhaseReport struct {
	Name       string  `json:"name" msgpack:"name"`
	DurationMS float64 `json:"duration_ms" msgpack:"duration_ms"`
	Note       string  `json:"note,omitempty" msgpack:"note,omitempty"`
	Methods    int     `json:"methods,omitempty" msgpack:"methods,omitempty"`
	MethodMS   float64 `json:"method_ms,omitempty" msgpack:"method_ms,omitempty"`
}

// Parallelism is the method time the stage absorbed per unit of wall time,
// 0 when no method ran in it.
func (p PhaseReport) Parallelism() float64 {
	if p.Methods == 0 || p.DurationMS == 0 {
		return 0
	}
	return p.MethodMS / p.DurationMS
}

// Report aggregates the stages of one generation.
type Report struct {
	TotalMS float64       `json:"total_ms" msgpack:"total_ms"`
	Phases  []PhaseReport `json:"phases" msgpack:"phases"`
}

// Phase returns the report of the first stage called name.
func (r Report) Phase(name string) (PhaseReport, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseReport{}, false
}

func (t *Timer) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.phases) == 0 {
		return Report{}
	}
	r := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, p := range t.phases {
		total += p.dur
		r.Phases[i] = PhaseReport{
			Name:       p.name,
			DurationMS: millis(p.dur),
			Note:       p.note,
			Methods:    p.methods,
			MethodMS:   millis(p.methodTime),
		}
	}
	r.TotalMS = millis(total)
	return r
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
