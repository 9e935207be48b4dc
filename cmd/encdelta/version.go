package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"encdelta/internal/artifact"
	"encdelta/internal/version"
)

type versionPayload struct {
	Tool           string `json:"tool"`
	Version        string `json:"version"`
	ArtifactFormat uint16 `json:"artifact_format"`
	GitCommit      string `json:"git_commit,omitempty"`
	BuildDate      string `json:"build_date,omitempty"`
}

var versionFormat string

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show encdelta build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch strings.ToLower(versionFormat) {
		case "pretty":
			for _, line := range version.Lines(artifact.FormatVersion) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		case "json":
			return renderVersionJSON(cmd.OutOrStdout())
		default:
			return errInvalidFlag("format", versionFormat, "pretty|json")
		}
	},
}

func renderVersionJSON(out io.Writer) error {
	v := strings.TrimSpace(version.Version)
	if v == "" {
		v = "dev"
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(versionPayload{
		Tool:           "encdelta",
		Version:        v,
		ArtifactFormat: artifact.FormatVersion,
		GitCommit:      strings.TrimSpace(version.GitCommit),
		BuildDate:      strings.TrimSpace(version.BuildDate),
	})
}
