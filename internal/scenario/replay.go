package scenario

import (
	"context"
	"errors"
	"fmt"

	"encdelta/internal/baseline"
	"encdelta/internal/driver"
)

// Outcome is the result of replaying one step.
type Outcome struct {
	Step Step
	// Previous is the generation the step was applied to.
	Previous *baseline.Generation
	Result   *driver.Result
	// Err is the rejection, nil when the generation was accepted.
	Err error
	// Mismatch is set when the outcome contradicts the expectations.
	Mismatch error
}

// Accepted reports whether the step produced a generation.
func (o Outcome) Accepted() bool { return o.Err == nil && o.Result != nil }

// Replay applies steps in order to sess. Rejections and mismatches are
// reported through visit and do not stop the replay; errors that are not
// rejections, and any error visit returns, do.
func Replay(ctx context.Context, sess *driver.Session, steps []Step, visit func(Outcome) error) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		prev := sess.Current()
		res, err := sess.Apply(ctx, step.Compilation, step.Edits)
		var rej *driver.RejectError
		if err != nil && !errors.As(err, &rej) {
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		out := Outcome{Step: step, Previous: prev, Result: res, Err: err}
		if check := step.Check(res, err); check != nil {
			out.Mismatch = check
		}
		if visit != nil {
			if err := visit(out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run loads path, starts a session at its baseline and replays every
// generation. Mismatches are joined into the returned error.
func Run(ctx context.Context, path string, options ...driver.SessionOption) (*driver.Session, []Outcome, error) {
	f, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	g0, err := f.Initial()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	steps, err := f.Steps()
	if err != nil {
		return nil, nil, err
	}
	sess, err := driver.NewSession(ctx, g0, options...)
	if err != nil {
		return nil, nil, err
	}
	var outcomes []Outcome
	var mismatches []error
	err = Replay(ctx, sess, steps, func(o Outcome) error {
		outcomes = append(outcomes, o)
		if o.Mismatch != nil {
			mismatches = append(mismatches, o.Mismatch)
		}
		return nil
	})
	if err != nil {
		return sess, outcomes, err
	}
	return sess, outcomes, errors.Join(mismatches...)
}
