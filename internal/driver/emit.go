// Package driver computes generations: it validates a batch of symbol edits,
// allocates local slots and synthesizes members per method in parallel,
// commits the results serially and hands the rows to the delta builder.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"encdelta/internal/baseline"
	"encdelta/internal/delta"
	"encdelta/internal/diag"
	"encdelta/internal/observ"
	"encdelta/internal/statemachine"
	"encdelta/internal/symbols"
	"encdelta/internal/trace"
)

// EmitDifference computes the generation that follows prev. prev is never
// modified; a rejected batch returns a *RejectError and no generation.
func EmitDifference(ctx context.Context, prev *baseline.Generation, comp *symbols.Compilation, edits []SymbolEdit, opts Options) (*Result, error) {
	if prev == nil {
		return nil, errors.New("driver: no previous generation")
	}
	if comp == nil {
		return nil, errors.New("driver: no compilation")
	}
	gen := prev.Ordinal() + 1
	ctx, span := trace.StartGeneration(ctx, gen)
	span.WithCount("edits", len(edits))

	e := &emitter{
		ctx:   ctx,
		prev:  prev,
		comp:  comp,
		opts:  opts,
		gen:   gen,
		timer: observ.NewTimer(),
		bag:   diag.NewBag(opts.MaxDiagnostics),
		start: time.Now(),
	}
	e.reporter = diag.NewDedupReporter(diag.BagReporter{Bag: e.bag})
	notify(opts.Sink, Event{Generation: gen, Stage: StageGeneration, Status: StatusWorking})

	res, err := e.run(edits)
	if err != nil {
		span.End(err.Error())
		notify(opts.Sink, Event{Generation: gen, Stage: StageGeneration, Status: StatusError, Err: err, Elapsed: time.Since(e.start)})
		return nil, err
	}
	span.WithCount("log", len(res.Delta.Log)).End("")
	notify(opts.Sink, Event{Generation: gen, Stage: StageGeneration, Status: StatusDone, Elapsed: time.Since(e.start)})
	return res, nil
}

type emitter struct {
	ctx      context.Context
	prev     *baseline.Generation
	comp     *symbols.Compilation
	opts     Options
	gen      int
	timer    *observ.Timer
	bag      *diag.Bag
	reporter diag.Reporter
	start    time.Time
}

// stage runs one serial step with timing, a trace span and progress events.
func (e *emitter) stage(name Stage, fn func() error) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	_, span := trace.Start(e.ctx, trace.ScopeGeneration, string(name))
	notify(e.opts.Sink, Event{Generation: e.gen, Stage: name, Status: StatusWorking})
	started := time.Now()
	err := e.timer.Measure(string(name), fn)
	status := StatusDone
	if err != nil {
		status = StatusError
		span.End(err.Error())
	} else {
		span.End("")
	}
	notify(e.opts.Sink, Event{Generation: e.gen, Stage: name, Status: status, Err: err, Elapsed: time.Since(started)})
	return err
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e *emitter) reject(err error) error {
	if canceled(err) {
		return fmt.Errorf("driver: generation %d: %w", e.gen, err)
	}
	e.bag.Sort()
	trace.Reject(e.ctx, err.Error())
	return &RejectError{Generation: e.gen, Diagnostics: e.bag, cause: err}
}

// fail turns a per-method or commit failure into a rejection. Cancellation is
// returned as is.
func (e *emitter) fail(err error) error {
	if canceled(err) {
		return e.reject(err)
	}
	subject := diag.Subject{}
	var me *methodError
	if errors.As(err, &me) {
		subject = diag.At(me.key)
	}
	code := diag.EncUnsupportedEdit
	var conflict *statemachine.ConflictError
	if errors.As(err, &conflict) {
		code = diag.EncSynthesizedMemberConflict
	}
	diag.ReportError(e.reporter, code, subject, err.Error()).Emit()
	return e.reject(err)
}

func (e *emitter) run(edits []SymbolEdit) (*Result, error) {
	var checked []checkedEdit
	err := e.stage(StageValidate, func() error {
		var verr error
		checked, verr = validate(e.prev, e.comp, edits, e.reporter)
		return verr
	})
	if err != nil {
		return nil, e.reject(err)
	}
	if err := e.stage(StageGate, func() error { return gate(e.prev, e.comp, checked, e.reporter) }); err != nil {
		return nil, e.reject(err)
	}

	var plans []*methodPlan
	err = e.stage(StageAllocate, func() error {
		var perr error
		plans, perr = planMethods(e.ctx, e.prev, checked, e.opts, e.timer)
		return perr
	})
	if err != nil {
		return nil, e.fail(err)
	}

	var c *committed
	err = e.stage(StageCommit, func() error {
		var cerr error
		c, cerr = commit(e.prev, plans)
		return cerr
	})
	if err != nil {
		return nil, e.fail(err)
	}

	var d *delta.Delta
	var rp *rowPlanner
	err = e.stage(StageBuild, func() error {
		b := delta.NewBuilder(e.prev.Sizes(), e.opts.order(), e.prev)
		rp = newRowPlanner(e.prev, b, c)
		rp.plan(checked, plans)
		var berr error
		d, berr = b.Build()
		return berr
	})
	if err != nil {
		if canceled(err) {
			return nil, e.reject(err)
		}
		return nil, fmt.Errorf("driver: generation %d: %w", e.gen, err)
	}

	var next *baseline.Generation
	err = e.stage(StageDerive, func() error {
		var derr error
		next, derr = baseline.Derive(e.prev, baseline.Changes{
			Sizes:        d.Sizes,
			Methods:      rp.infos,
			Definitions:  rp.defs,
			References:   d.References,
			PropertyMaps: d.PropertyMaps,
			EventMaps:    d.EventMaps,
			Arena:        c.arena,
		})
		return derr
	})
	if err != nil {
		if canceled(err) {
			return nil, e.reject(err)
		}
		return nil, fmt.Errorf("driver: generation %d: %w", e.gen, err)
	}

	d.Generation = next.Ordinal()
	d.EncID = next.EncID()
	d.BaseID = next.BaseID()
	return &Result{
		Generation: next,
		Delta:      d,
		Methods:    rp.results,
		MemberSets: c.sets,
		Timings:    e.timer.Report(),
	}, nil
}
