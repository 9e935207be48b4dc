package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"encdelta/internal/artifact"
	"encdelta/internal/baseline"
	"encdelta/internal/chainstore"
	"encdelta/internal/meta"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [delta.cbor...]",
	Short: "Show the persisted generation chain or decode delta artifacts",
	Long: `Without arguments inspect loads the configured chain store, checks that the
stored generations form a chain and prints one line per generation. With arguments
it decodes the given delta artifacts and prints their EncLog.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().Bool("methods", false, "list the methods and local signatures of the last generation")
}

func runInspect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) > 0 {
		return inspectArtifacts(out, args)
	}
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if s.storeKind == chainstore.KindNone {
		return fmt.Errorf("no chain store configured (use --store and --store-path or [store] in encdelta.toml)")
	}
	store, err := s.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snaps, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(out, "chain store is empty")
		return nil
	}
	printChain(out, snaps)

	showMethods, _ := cmd.Flags().GetBool("methods")
	if showMethods {
		last, err := baseline.RestoreChain(snaps, nil)
		if err != nil {
			return err
		}
		printSignatures(out, last)
	}
	return nil
}

var chainTables = []meta.TableIndex{
	meta.TableTypeDef, meta.TableField, meta.TableMethodDef, meta.TableParam,
	meta.TableMemberRef, meta.TableStandAloneSig,
}

func printChain(out io.Writer, snaps []baseline.Snapshot) {
	header := []string{"gen", "enc id", "base id", "methods", "synthesized"}
	for _, t := range chainTables {
		header = append(header, t.String())
	}
	rows := [][]string{header}
	for _, s := range snaps {
		row := []string{
			fmt.Sprint(s.Ordinal), s.EncID, s.BaseID,
			fmt.Sprint(len(s.Methods)), fmt.Sprint(len(s.Arena.Types)),
		}
		for _, t := range chainTables {
			n := uint32(0)
			if int(t) < len(s.Sizes) {
				n = s.Sizes[t]
			}
			row = append(row, fmt.Sprint(n))
		}
		rows = append(rows, row)
	}
	writeTable(out, rows)
}

func printSignatures(out io.Writer, g *baseline.Generation) {
	fmt.Fprintf(out, "\ngeneration %d methods:\n", g.Ordinal())
	for _, key := range g.MethodKeys() {
		info, _ := g.Method(key)
		sig, _ := g.LocalSignature(key)
		line := fmt.Sprintf("  %s %s", key, info.Handle)
		if info.StateMachine != 0 {
			line += " " + info.StateMachine.String()
		}
		fmt.Fprintln(out, line)
		for _, l := range sig.Lines() {
			fmt.Fprintln(out, "    "+l)
		}
	}
}

func inspectArtifacts(out io.Writer, paths []string) error {
	for _, p := range paths {
		doc, err := artifact.ReadFile(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: generation %d enc %s base %s (%s order)\n", p, doc.Generation, doc.EncID, doc.BaseID, doc.Order)
		for _, line := range doc.LogLines() {
			fmt.Fprintln(out, "  "+line)
		}
		lines := make([]string, len(doc.Methods))
		for i, m := range doc.Methods {
			types := make([]string, len(m.Slots))
			for j, sl := range m.Slots {
				types[j] = sl.Type
				if sl.Unused {
					types[j] += " (unused)"
				}
			}
			lines[i] = fmt.Sprintf("  %s locals %s", m.Key, strings.Join(types, ", "))
		}
		slices.Sort(lines)
		for _, l := range lines {
			fmt.Fprintln(out, l)
		}
	}
	return nil
}

// writeTable aligns cells by display width.
func writeTable(out io.Writer, rows [][]string) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(out, "  ")
			}
			if i == len(row)-1 {
				fmt.Fprint(out, cell)
				continue
			}
			fmt.Fprint(out, padRight(cell, widths[i]))
		}
		fmt.Fprintln(out)
	}
}
