package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"encdelta/internal/artifact"
	"encdelta/internal/driver"
	"encdelta/internal/prof"
	"encdelta/internal/scenario"
	"encdelta/internal/testkit"
	"encdelta/internal/trace"
)

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.toml>",
	Short: "Replay the generations of a scenario file",
	Long: `Replay computes every generation of a scenario file in order, prints each delta
and checks it against the expectations the file records. Rejected generations leave
the chain unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().Bool("verify", false, "check delta invariants on every accepted generation")
	replayCmd.Flags().String("out", "", "write each accepted delta as a CBOR artifact into this directory")
	replayCmd.Flags().String("order", "", "EncLog emission order (observed|definitions-first), overrides [emit].order")
	replayCmd.Flags().Int("jobs", 0, "per-method parallelism (0 = GOMAXPROCS), overrides [emit].jobs")
	addSwitch(replayCmd.Flags(), "ui", "interactive progress UI")
	replayCmd.Flags().Bool("map", false, "print the EncMap of each delta")
	replayCmd.Flags().String("cpu-profile", "", "write a CPU profile of the replay to this file")
	replayCmd.Flags().String("mem-profile", "", "write a heap profile after the replay to this file")
	replayCmd.Flags().String("runtime-trace", "", "write a Go runtime trace of the replay to this file")
}

type replayOptions struct {
	verify  bool
	outDir  string
	showMap bool
	quiet   bool
	timings bool
}

func runReplay(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd, s.config.Trace)
	if err != nil {
		return err
	}
	defer cleanup()

	profiler, err := startProfiling(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
		}
	}()

	var opts replayOptions
	opts.verify, _ = cmd.Flags().GetBool("verify")
	opts.outDir, _ = cmd.Flags().GetString("out")
	opts.showMap, _ = cmd.Flags().GetBool("map")
	opts.quiet, _ = cmd.Flags().GetBool("quiet")
	opts.timings, _ = cmd.Flags().GetBool("timings")
	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return err
		}
	}

	f, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	f.WellKnown = append(slices.Clone(s.config.Runtime.WellKnownAttributes), f.WellKnown...)
	g0, err := f.Initial()
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	steps, err := f.Steps()
	if err != nil {
		return err
	}

	store, err := s.openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, span := trace.Start(cmd.Context(), trace.ScopeSession, "replay")
	span.WithExtra("scenario", args[0]).WithCount("steps", len(steps))
	defer span.End("")

	dopts := driver.Options{Order: s.order, Jobs: s.config.Emit.Jobs}
	useTUI := switchFlag(cmd, "ui").enabled(os.Stdout) && !opts.quiet
	var sink *stepSink
	if useTUI {
		sink = newStepSink(len(steps))
		dopts.Sink = sink
	}
	sessOpts := []driver.SessionOption{driver.WithOptions(dopts)}
	if store != nil {
		sessOpts = append(sessOpts, driver.WithStore(store))
	}
	sess, err := driver.NewSession(ctx, g0, sessOpts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var outcomes []scenario.Outcome
	collect := func(o scenario.Outcome) error {
		outcomes = append(outcomes, o)
		return nil
	}
	if useTUI {
		title := f.Name
		if title == "" {
			title = args[0]
		}
		names := make([]string, len(steps))
		for i, st := range steps {
			names[i] = st.Name
		}
		err = runReplayWithUI(ctx, title, names, sink, func(ctx context.Context) error {
			return scenario.Replay(ctx, sess, steps, collect)
		})
	} else {
		err = scenario.Replay(ctx, sess, steps, collect)
	}
	if err != nil {
		return err
	}

	var failures []error
	for _, o := range outcomes {
		var verifyErr error
		if opts.verify && o.Accepted() {
			verifyErr = testkit.CheckGeneration(o.Previous, o.Result.Generation, o.Result.Delta, preservedKeys(o))
		}
		var artifactPath string
		if opts.outDir != "" && o.Accepted() {
			if artifactPath, err = artifact.WriteFile(opts.outDir, artifact.FromResult(o.Result)); err != nil {
				return err
			}
		}
		if !opts.quiet {
			printOutcome(out, o, opts, verifyErr, artifactPath)
		}
		if o.Err != nil {
			dumpRejectedTrail(ctx, cmd.ErrOrStderr(), o.Previous.Ordinal()+1)
		}
		if o.Mismatch != nil {
			failures = append(failures, o.Mismatch)
		}
		if verifyErr != nil {
			failures = append(failures, fmt.Errorf("%s: %w", o.Step.Name, verifyErr))
		}
	}
	if !opts.quiet {
		printSummary(out, sess, outcomes, len(failures))
	}
	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	return nil
}

// dumpRejectedTrail writes the in-memory trace events of a rejected
// generation when tracing keeps a ring.
func dumpRejectedTrail(ctx context.Context, w io.Writer, gen int) {
	ring := trace.RingOf(trace.FromContext(ctx))
	if ring == nil {
		return
	}
	events := ring.Generation(gen)
	if len(events) == 0 {
		return
	}
	fmt.Fprintf(w, "trace of rejected generation %d:\n", gen)
	if err := trace.WriteEvents(w, events, trace.FormatText); err != nil {
		fmt.Fprintf(w, "trace: %v\n", err)
	}
}

func startProfiling(cmd *cobra.Command) (*prof.Profiler, error) {
	var opts prof.Options
	opts.CPU, _ = cmd.Flags().GetString("cpu-profile")
	opts.Mem, _ = cmd.Flags().GetString("mem-profile")
	opts.Trace, _ = cmd.Flags().GetString("runtime-trace")
	if !opts.Enabled() {
		return nil, nil
	}
	return prof.Start(opts)
}

// preservedKeys lists the updated methods whose slots must stay monotonic:
// the ones edited with preservation that kept their state machine kind.
func preservedKeys(o scenario.Outcome) []string {
	var keys []string
	for _, e := range o.Step.Edits {
		if e.Kind != driver.EditUpdate || !e.PreserveLocals {
			continue
		}
		before, ok := o.Previous.Method(e.OldKey)
		if !ok {
			continue
		}
		after, ok := o.Result.Generation.Method(e.NewKey)
		if !ok || after.StateMachine != before.StateMachine {
			continue
		}
		keys = append(keys, e.NewKey)
	}
	return keys
}
