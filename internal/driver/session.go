package driver

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"encdelta/internal/baseline"
	"encdelta/internal/chainstore"
	"encdelta/internal/delta"
	"encdelta/internal/diag"
	"encdelta/internal/symbols"
)

// Session owns one generation chain. Writers are serialized; readers see the
// last accepted generation.
type Session struct {
	mu      sync.RWMutex
	current *baseline.Generation
	history []*delta.Delta
	store   chainstore.Store
	opts    Options
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithStore persists every accepted generation, generation 0 included.
func WithStore(store chainstore.Store) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithOptions sets the options used for every generation.
func WithOptions(opts Options) SessionOption {
	return func(s *Session) { s.opts = opts }
}

// NewSession starts a chain at g0.
func NewSession(ctx context.Context, g0 *baseline.Generation, options ...SessionOption) (*Session, error) {
	if g0 == nil {
		return nil, fmt.Errorf("driver: session without a baseline")
	}
	s := &Session{current: g0}
	for _, opt := range options {
		opt(s)
	}
	if s.store != nil {
		if err := s.store.Put(ctx, g0.Snapshot()); err != nil {
			return nil, storeError(g0.Ordinal(), err)
		}
	}
	return s, nil
}

// Current returns the last accepted generation.
func (s *Session) Current() *baseline.Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// History lists the deltas accepted so far, oldest first.
func (s *Session) History() []*delta.Delta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// Apply computes the next generation from edits. On any error the chain is
// unchanged; a generation that cannot be persisted is not accepted.
func (s *Session) Apply(ctx context.Context, comp *symbols.Compilation, edits []SymbolEdit) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := EmitDifference(ctx, s.current, comp, edits, s.opts)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		start := time.Now()
		gen := res.Generation.Ordinal()
		notify(s.opts.Sink, Event{Generation: gen, Stage: StagePersist, Status: StatusWorking})
		if err := s.store.Put(ctx, res.Generation.Snapshot()); err != nil {
			err = storeError(gen, err)
			notify(s.opts.Sink, Event{Generation: gen, Stage: StagePersist, Status: StatusError, Err: err, Elapsed: time.Since(start)})
			return nil, err
		}
		notify(s.opts.Sink, Event{Generation: gen, Stage: StagePersist, Status: StatusDone, Elapsed: time.Since(start)})
	}
	s.current = res.Generation
	s.history = append(s.history, res.Delta)
	return res, nil
}

func storeError(gen int, err error) error {
	bag := diag.NewBag(1)
	bag.Add(diag.NewError(diag.ChnStoreFailure, diag.At(fmt.Sprintf("generation/%d", gen)), err.Error()))
	return &RejectError{Generation: gen, Diagnostics: bag, cause: err}
}
