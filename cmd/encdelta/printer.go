package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"encdelta/internal/diag"
	"encdelta/internal/driver"
	"encdelta/internal/scenario"
)

var (
	headerColor   = color.New(color.Bold)
	acceptedColor = color.New(color.FgGreen, color.Bold)
	rejectedColor = color.New(color.FgRed, color.Bold)
	addColor      = color.New(color.FgCyan)
	updateColor   = color.New(color.FgYellow)
	dimColor      = color.New(color.Faint)
)

// printError prints a command failure, in diagnostic form when the error
// carries one.
func printError(w io.Writer, err error) {
	if d, ok := diag.As(err); ok {
		fmt.Fprintln(w, rejectedColor.Sprint(diag.FormatShort([]diag.Diagnostic{d}, true)))
		return
	}
	fmt.Fprintf(w, "%s %v\n", rejectedColor.Sprint("error:"), err)
}

func printOutcome(out io.Writer, o scenario.Outcome, opts replayOptions, verifyErr error, artifactPath string) {
	title := fmt.Sprintf("step %d: %s", o.Step.Index, o.Step.Name)
	if !o.Accepted() {
		fmt.Fprintf(out, "%s %s\n", headerColor.Sprint(title), rejectedColor.Sprint("rejected"))
		printRejection(out, o.Err)
		printMismatch(out, o.Mismatch)
		return
	}
	res := o.Result
	fmt.Fprintf(out, "%s %s %s\n", headerColor.Sprint(title), acceptedColor.Sprint("generation "+fmt.Sprint(res.Delta.Generation)),
		dimColor.Sprintf("enc %s base %s", res.Delta.EncID, res.Delta.BaseID))
	for _, e := range res.Delta.Log {
		line := "  " + e.String()
		if r, ok := res.Delta.Row(e.Handle()); ok && r.Update {
			fmt.Fprintln(out, updateColor.Sprint(line))
		} else {
			fmt.Fprintln(out, addColor.Sprint(line))
		}
	}
	if opts.showMap {
		fmt.Fprintln(out, dimColor.Sprint("  EncMap:"))
		for _, line := range res.Delta.MapLines() {
			fmt.Fprintln(out, "  "+line)
		}
	}
	printMethods(out, res)
	if opts.timings {
		for _, p := range res.Timings.Phases {
			line := fmt.Sprintf("  %s %7.2f ms", padRight(p.Name, 16), p.DurationMS)
			if p.Methods > 0 {
				line += dimColor.Sprintf("  %d methods, %.1fx parallel", p.Methods, p.Parallelism())
			}
			fmt.Fprintln(out, line)
		}
	}
	if artifactPath != "" {
		fmt.Fprintln(out, dimColor.Sprint("  wrote "+artifactPath))
	}
	if verifyErr != nil {
		fmt.Fprintln(out, rejectedColor.Sprint("  invariants: ")+verifyErr.Error())
	}
	printMismatch(out, o.Mismatch)
}

func printMethods(out io.Writer, res *driver.Result) {
	keys := make([]string, 0, len(res.Methods))
	width := 0
	for key := range res.Methods {
		keys = append(keys, key)
		width = max(width, runewidth.StringWidth(key))
	}
	slices.Sort(keys)
	for _, key := range keys {
		m := res.Methods[key]
		line := fmt.Sprintf("  %s slots %v", padRight(key, width), m.Slots)
		if m.StateMachine != "" {
			line += " via " + m.StateMachine
		}
		fmt.Fprintln(out, line)
	}
}

func printRejection(out io.Writer, err error) {
	var rej *driver.RejectError
	if errors.As(err, &rej) && rej.Diagnostics != nil && rej.Diagnostics.Len() > 0 {
		for _, line := range strings.Split(diag.FormatShort(rej.Diagnostics.Items(), true), "\n") {
			fmt.Fprintln(out, "  "+line)
		}
		return
	}
	if err != nil {
		fmt.Fprintln(out, "  "+err.Error())
	}
}

func printMismatch(out io.Writer, err error) {
	var mm *scenario.Mismatch
	if !errors.As(err, &mm) {
		return
	}
	for _, d := range mm.Details {
		fmt.Fprintln(out, rejectedColor.Sprint("  expected: ")+d)
	}
}

func printSummary(out io.Writer, sess *driver.Session, outcomes []scenario.Outcome, failures int) {
	accepted := 0
	for _, o := range outcomes {
		if o.Accepted() {
			accepted++
		}
	}
	summary := fmt.Sprintf("%d steps, %d accepted, %d rejected; chain at generation %d",
		len(outcomes), accepted, len(outcomes)-accepted, sess.Current().Ordinal())
	if failures > 0 {
		fmt.Fprintln(out, rejectedColor.Sprintf("%s; %d failures", summary, failures))
		return
	}
	fmt.Fprintln(out, acceptedColor.Sprint(summary))
}

func padRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}
