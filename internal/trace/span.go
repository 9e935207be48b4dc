package trace

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

// NextSeq returns the next global event sequence number.
func NextSeq() uint64 { return seqCounter.Add(1) }

func lastSeq() uint64 { return seqCounter.Load() }

// Span is an open span. The zero Span and a nil *Span are inert.
type Span struct {
	tracer  Tracer
	sc      SpanContext
	parent  uint64
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
}

func begin(t Tracer, scope Scope, name string, parent SpanContext) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{}
	}
	sc := parent
	sc.SpanID = spanCounter.Add(1)
	s := &Span{tracer: t, sc: sc, parent: parent.SpanID, scope: scope, name: name, started: time.Now()}
	t.Emit(s.event(KindSpanBegin, s.started, ""))
	return s
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	return &Event{
		Time:       at,
		Seq:        NextSeq(),
		Kind:       kind,
		Scope:      s.scope,
		SpanID:     s.sc.SpanID,
		ParentID:   s.parent,
		Generation: s.sc.Generation,
		Method:     s.sc.Method,
		Name:       s.name,
		Detail:     detail,
	}
}

func (s *Span) live() bool { return s != nil && s.tracer != nil }

// End emits the end event and returns the span's duration.
func (s *Span) End(detail string) time.Duration {
	if !s.live() {
		return 0
	}
	now := time.Now()
	ev := s.event(KindSpanEnd, now, detail)
	ev.Extra = s.extra
	s.tracer.Emit(ev)
	return now.Sub(s.started)
}

// WithExtra records key=value on the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if !s.live() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 4)
	}
	s.extra[key] = value
	return s
}

// WithCount is WithExtra for integer values.
func (s *Span) WithCount(key string, n int) *Span {
	return s.WithExtra(key, strconv.Itoa(n))
}

// ID returns the span ID, 0 for an inert span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.sc.SpanID
}

// Start opens a span under the span active in ctx.
func Start(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	return startWith(ctx, scope, name, CurrentSpan(ctx))
}

// StartGeneration opens the span of generation n. Events below it carry n.
func StartGeneration(ctx context.Context, n int) (context.Context, *Span) {
	sc := CurrentSpan(ctx)
	sc.Generation = n
	return startWith(ctx, ScopeGeneration, "generation/"+strconv.Itoa(n), sc)
}

// StartMethod opens the span of one method of the current generation.
func StartMethod(ctx context.Context, key string) (context.Context, *Span) {
	sc := CurrentSpan(ctx)
	sc.Method = key
	return startWith(ctx, ScopeMethod, "method", sc)
}

func startWith(ctx context.Context, scope Scope, name string, parent SpanContext) (context.Context, *Span) {
	s := begin(FromContext(ctx), scope, name, parent)
	if !s.live() {
		return ctx, s
	}
	return WithSpanContext(ctx, s.sc), s
}

// Point emits an instant event under the span active in ctx.
func Point(ctx context.Context, scope Scope, name, detail string) {
	t := FromContext(ctx)
	if !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(instant(ctx, KindPoint, scope, name, detail))
}

// Reject records that the generation active in ctx was rejected.
func Reject(ctx context.Context, reason string) {
	t := FromContext(ctx)
	if !t.Enabled() {
		return
	}
	t.Emit(instant(ctx, KindReject, ScopeGeneration, "rejected", reason))
}

func instant(ctx context.Context, kind Kind, scope Scope, name, detail string) *Event {
	sc := CurrentSpan(ctx)
	return &Event{
		Time:       time.Now(),
		Seq:        NextSeq(),
		Kind:       kind,
		Scope:      scope,
		ParentID:   sc.SpanID,
		Generation: sc.Generation,
		Method:     sc.Method,
		Name:       name,
		Detail:     detail,
	}
}
