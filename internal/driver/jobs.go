package driver

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"encdelta/internal/baseline"
	"encdelta/internal/locals"
	"encdelta/internal/observ"
	"encdelta/internal/statemachine"
	"encdelta/internal/trace"
)

// methodPlan is the per-method work computed against the read-only previous
// generation. Plans are applied serially afterwards.
type methodPlan struct {
	edit     *checkedEdit
	ref      statemachine.MethodRef
	base     locals.Signature
	alloc    locals.Result
	machine  *statemachine.Plan
	template statemachine.Template
	closures []*statemachine.Plan
	dynamic  *statemachine.Plan
	counters statemachine.MethodCounters
}

func methodRef(ce *checkedEdit) statemachine.MethodRef {
	return statemachine.MethodRef{
		Key:       ce.sym.Key,
		Name:      ce.sym.Name,
		Ordinal:   ce.sym.Ordinal,
		Container: ce.sym.Container,
	}
}

// planMethods runs slot allocation and member synthesis for every method edit
// with a body. Results keep the order of edits.
func planMethods(ctx context.Context, prev *baseline.Generation, edits []checkedEdit, opts Options, timer *observ.Timer) ([]*methodPlan, error) {
	var work []*checkedEdit
	for i := range edits {
		if edits[i].isMethod() && edits[i].sym.Body != nil {
			work = append(work, &edits[i])
		}
	}
	if len(work) == 0 {
		return nil, nil
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// indices are unique per goroutine, no mutex needed
	results := make([]*methodPlan, len(work))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(work)))

	gen := prev.Ordinal() + 1
	for i, ce := range work {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			notify(opts.Sink, Event{Generation: gen, Method: ce.key(), Stage: StageAllocate, Status: StatusWorking})
			mp, err := planMethod(gctx, prev, ce, opts)
			status := StatusDone
			if err != nil {
				status = StatusError
			}
			elapsed := time.Since(start)
			timer.Method(elapsed)
			notify(opts.Sink, Event{Generation: gen, Method: ce.key(), Stage: StageAllocate, Status: status, Err: err, Elapsed: elapsed})
			if err != nil {
				return err
			}
			results[i] = mp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func planMethod(ctx context.Context, prev *baseline.Generation, ce *checkedEdit, opts Options) (*methodPlan, error) {
	ctx, span := trace.StartMethod(ctx, ce.key())
	defer span.End("")

	body := ce.sym.Body
	mp := &methodPlan{edit: ce, ref: methodRef(ce)}

	if ce.hasOld {
		mp.base, _ = prev.LocalSignature(ce.key())
	}
	// a body that changes state machine kind moves its locals to another
	// method, so the old slots have nothing to preserve
	newKind, _ := body.StateMachineKind()
	sameShape := ce.hasOld && ce.old.StateMachine == newKind
	allocator := &locals.Allocator{Equivalence: opts.Equivalence}
	mp.alloc = allocator.Allocate(mp.base, body.Locals, locals.Options{
		Preserve:      sameShape && ce.edit.PreserveLocals,
		SyntaxMap:     ce.edit.SyntaxMap,
		BodyUnchanged: ce.hasOld && !body.Digest.IsZero() && body.Digest == ce.old.Digest,
	})
	span.WithCount("slots", mp.alloc.Signature.Len()).
		WithCount("reused", mp.alloc.Reused).
		WithCount("appended", mp.alloc.Appended)
	traceSlots(ctx, mp.alloc, body.Locals)

	syn := statemachine.NewSynthesizer(prev.Arena(), prev.Ordinal()+1, mp.ref, ce.edit.SyntaxMap)
	if body.StateMachine != nil {
		plan, tpl, err := syn.StateMachine(*body.StateMachine)
		if err != nil {
			return nil, &methodError{key: ce.key(), err: err}
		}
		mp.machine, mp.template = plan, tpl
	}
	if len(body.Closures) > 0 {
		plans, err := syn.Closures(body.Closures)
		if err != nil {
			return nil, &methodError{key: ce.key(), err: err}
		}
		mp.closures = plans
	}
	if len(body.DynamicSites) > 0 {
		plan, err := syn.Dynamic(body.DynamicSites)
		if err != nil {
			return nil, &methodError{key: ce.key(), err: err}
		}
		mp.dynamic = plan
	}
	mp.counters = syn.Counters()
	return mp, nil
}

func traceSlots(ctx context.Context, res locals.Result, descs []locals.Descriptor) {
	if !trace.FromContext(ctx).Level().ShouldEmit(trace.ScopeSlot) {
		return
	}
	for i, d := range descs {
		trace.Point(ctx, trace.ScopeSlot, fmt.Sprintf("V_%d", res.Slots[i]), d.String())
	}
}
