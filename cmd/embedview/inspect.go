package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"embedview/internal/archive"
	"embedview/internal/source"
)

var (
	inspectJSON    bool
	inspectVerbose bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Describe the contents of an embeddings archive",
	Long: `Print the title, groups, option names and point counts of an archive
without extracting it. --verbose also lists every tar entry.`,
	Example: `  embedview inspect run-42.tar.gz
  embedview inspect s3://experiments/run-42.tar.gz --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.log.Sync()
		return runInspect(cmd.Context(), e, args[0], cmd.OutOrStdout(), archive.ListOptions{
			ArchivePath: args[0],
			JSONOutput:  inspectJSON,
			Verbose:     inspectVerbose,
		})
	},
}

func runInspect(ctx context.Context, e *env, location string, out io.Writer, opts archive.ListOptions) error {
	r, err := source.Open(ctx, location, e.cfg.Storage)
	if err != nil {
		return err
	}
	defer r.Close()

	result, err := archive.List(r)
	if err != nil {
		return err
	}
	return archive.PrintListResult(out, result, opts)
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON")
	inspectCmd.Flags().BoolVarP(&inspectVerbose, "verbose", "V", false, "list every archive entry")

	rootCmd.AddCommand(inspectCmd)
}
