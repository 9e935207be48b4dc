package driver

import (
	"fmt"

	"encdelta/internal/baseline"
	"encdelta/internal/statemachine"
)

// methodError ties a per-method failure to the method it happened in.
type methodError struct {
	key string
	err error
}

func (e *methodError) Error() string { return fmt.Sprintf("%s: %v", e.key, e.err) }

func (e *methodError) Unwrap() error { return e.err }

// committed is the arena of the next generation with what this generation
// touched in it.
type committed struct {
	arena *statemachine.Arena
	sets  map[string]statemachine.MemberSet
	// types lists, per method key, the synthesized types the method touched
	// in commit order.
	types   map[string][]statemachine.TypeID
	machine map[string]statemachine.TypeID
	fresh   map[statemachine.TypeID]bool
}

func (c *committed) apply(key string, plan *statemachine.Plan) statemachine.TypeID {
	id, set := c.arena.Commit(plan)
	if !plan.Owner.IsValid() {
		c.fresh[id] = true
	}
	c.sets[c.arena.Type(id).QualifiedName()] = set
	c.types[key] = append(c.types[key], id)
	return id
}

// commit applies the plans to a copy of the previous arena in edit order. The
// lambda cache and anonymous templates are shared between methods, so they are
// planned here against the arena holding every earlier commit.
func commit(prev *baseline.Generation, plans []*methodPlan) (*committed, error) {
	c := &committed{
		arena:   prev.Arena().Clone(),
		sets:    make(map[string]statemachine.MemberSet),
		types:   make(map[string][]statemachine.TypeID),
		machine: make(map[string]statemachine.TypeID),
		fresh:   make(map[statemachine.TypeID]bool),
	}
	gen := prev.Ordinal() + 1
	for _, mp := range plans {
		key := mp.ref.Key
		if mp.machine != nil {
			c.machine[key] = c.apply(key, mp.machine)
		}
		for _, plan := range mp.closures {
			c.apply(key, plan)
		}
		c.arena.SetMethodCounters(key, mp.counters)
		if mp.dynamic != nil {
			c.apply(key, mp.dynamic)
		}

		body := mp.edit.sym.Body
		if len(body.Lambdas) > 0 {
			syn := statemachine.NewSynthesizer(c.arena, gen, mp.ref, mp.edit.edit.SyntaxMap)
			plan, err := syn.StaticLambdas(body.Lambdas)
			if err != nil {
				return nil, &methodError{key: key, err: err}
			}
			c.apply(key, plan)
			c.arena.SetMethodCounters(key, syn.Counters())
		}
		for _, shape := range body.AnonymousTypes {
			if _, plan := statemachine.Anonymous(c.arena, gen, shape); plan != nil {
				c.apply(key, plan)
			}
		}
	}
	return c, nil
}
