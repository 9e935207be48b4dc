package trace

import "errors"

// fanout sends every event to several tracers, e.g. a stream and a ring.
type fanout struct {
	level   Level
	tracers []Tracer
}

func (f *fanout) Emit(ev *Event) {
	for _, t := range f.tracers {
		cp := *ev
		t.Emit(&cp)
	}
}

func (f *fanout) Flush() error {
	var errs []error
	for _, t := range f.tracers {
		errs = append(errs, t.Flush())
	}
	return errors.Join(errs...)
}

func (f *fanout) Close() error {
	var errs []error
	for _, t := range f.tracers {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

func (f *fanout) Level() Level  { return f.level }
func (f *fanout) Enabled() bool { return f.level > LevelOff }

// Ring returns the first ring tracer among f's targets.
func (f *fanout) Ring() *RingTracer {
	for _, t := range f.tracers {
		if r, ok := t.(*RingTracer); ok {
			return r
		}
	}
	return nil
}
