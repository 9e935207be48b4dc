package trace

import (
	"io"
	"sync"
)

const defaultRingSize = 4096

// RingTracer keeps the most recent events in memory so that the trail of a
// rejected generation can be dumped after the fact.
type RingTracer struct {
	mu     sync.RWMutex
	level  Level
	events []Event
	next   int
	full   bool
}

// NewRingTracer returns a ring holding up to capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = defaultRingSize
	}
	return &RingTracer{level: level, events: make([]Event, capacity)}
}

func (r *RingTracer) Emit(ev *Event) {
	if !r.level.keeps(ev) {
		return
	}
	r.mu.Lock()
	r.events[r.next] = *ev
	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Snapshot returns the stored events, oldest first.
func (r *RingTracer) Snapshot() []Event {
	return r.filter(func(*Event) bool { return true })
}

// Generation returns the stored events of generation n, oldest first.
func (r *RingTracer) Generation(n int) []Event {
	return r.filter(func(ev *Event) bool { return ev.Generation == n })
}

func (r *RingTracer) filter(keep func(*Event) bool) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	visit := func(evs []Event) {
		for i := range evs {
			if keep(&evs[i]) {
				out = append(out, evs[i])
			}
		}
	}
	if r.full {
		visit(r.events[r.next:])
	}
	visit(r.events[:r.next])
	return out
}

// Dump writes every stored event to w.
func (r *RingTracer) Dump(w io.Writer, format Format) error {
	return WriteEvents(w, r.Snapshot(), format)
}

// WriteEvents formats events to w one by one.
func WriteEvents(w io.Writer, events []Event, format Format) error {
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

func (r *RingTracer) Flush() error  { return nil }
func (r *RingTracer) Close() error  { return nil }
func (r *RingTracer) Level() Level  { return r.level }
func (r *RingTracer) Enabled() bool { return r.level > LevelOff }
