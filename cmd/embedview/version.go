package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"embedview/internal/version"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.OutOrStdout(), versionJSON)
	},
}

func printVersion(out io.Writer, asJSON bool) error {
	buildInfo := version.GetBuildInfo()
	if asJSON {
		return json.NewEncoder(out).Encode(buildInfo)
	}

	fmt.Fprintf(out, "embedview %s\n", version.Full())
	if buildInfo.GitCommit != "unknown" {
		fmt.Fprintf(out, "Git commit: %s\n", buildInfo.GitCommit)
	}
	if buildInfo.GitTag != "" {
		fmt.Fprintf(out, "Git tag: %s\n", buildInfo.GitTag)
	}
	if buildInfo.GitDirty {
		fmt.Fprintf(out, "Git status: dirty (uncommitted changes)\n")
	}
	if buildInfo.BuildDate != "unknown" {
		fmt.Fprintf(out, "Build date: %s\n", buildInfo.BuildDate)
	}
	fmt.Fprintf(out, "Go version: %s\n", buildInfo.GoVersion)
	return nil
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output build information as JSON")
	rootCmd.AddCommand(versionCmd)
}
