package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"encdelta/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "encdelta",
	Short: "Edit-and-Continue metadata delta engine",
	Long:  `encdelta computes Edit-and-Continue metadata deltas for a chain of edit generations`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyColorMode(cmd)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	addSwitch(rootCmd.PersistentFlags(), "color", "colorize output")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("config", "", "path to encdelta.toml (default: search upward from the working directory)")
	rootCmd.PersistentFlags().String("store", "", "chain store kind (none|disk|sqlite), overrides [store].kind")
	rootCmd.PersistentFlags().String("store-path", "", "chain store location, overrides [store].path")
	addTraceFlags(rootCmd)
}

// main executes the root command. Any command error exits with status 1.
func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func applyColorMode(cmd *cobra.Command) error {
	color.NoColor = !switchFlag(cmd, "color").enabled(os.Stdout)
	return nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
