// Package version holds build information for the encdelta CLI.
// The variables can be overridden at build time via -ldflags.
package version

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Colored renders Version with each numeric component in its own color.
// Anything that is not major.minor.patch is returned unchanged.
func Colored() string {
	core, suffix, _ := strings.Cut(Version, "-")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version
	}
	out := versionMajorColor.Sprint(parts[0]) + "." + versionMinorColor.Sprint(parts[1]) + "." + versionPatchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}

// Lines renders the build information for `encdelta version`. artifactFormat
// is the delta artifact format the binary writes.
func Lines(artifactFormat uint16) []string {
	lines := []string{"encdelta " + Colored()}
	if GitCommit != "" {
		lines = append(lines, "commit: "+GitCommit)
	}
	if BuildDate != "" {
		lines = append(lines, "built: "+BuildDate)
	}
	lines = append(lines, fmt.Sprintf("artifact format: %d", artifactFormat))
	return lines
}
