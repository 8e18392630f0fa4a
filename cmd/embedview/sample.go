package main

import (
	"context"

	"github.com/spf13/cobra"

	"embedview/internal/archive"
	"embedview/internal/sample"
)

var (
	sampleOutput   string
	sampleTitle    string
	sampleSubtitle string
	sampleSeed     int64
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a small demonstration archive",
	Long: `Write a two-point archive with noise images and text extras. Useful for
trying the viewer or checking an installation.`,
	Example: `  embedview sample -o demo.tar.gz
  embedview sample -o s3://scratch/demo.tar.gz --seed 7`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.log.Sync()

		sum, err := runSample(cmd.Context(), e, sampleOutput, sample.Options{
			Title:    sampleTitle,
			Subtitle: sampleSubtitle,
			Seed:     sampleSeed,
		})
		if err != nil {
			return err
		}
		printSummary(e, sum)
		return nil
	},
}

func runSample(ctx context.Context, e *env, output string, opts sample.Options) (archive.Summary, error) {
	return writeArchive(ctx, output, opts.TempDir, e.cfg.Storage, func(path string) (archive.Summary, error) {
		return sample.WriteFile(path, opts)
	})
}

func init() {
	sampleCmd.Flags().StringVarP(&sampleOutput, "output", "o", "sample.tar.gz", "output archive (path or s3://bucket/key)")
	sampleCmd.Flags().StringVar(&sampleTitle, "title", "Example embeddings", "document title")
	sampleCmd.Flags().StringVar(&sampleSubtitle, "subtitle", "", "document subtitle")
	sampleCmd.Flags().Int64Var(&sampleSeed, "seed", 0, "seed for the noise images (0 uses a fixed default)")

	rootCmd.AddCommand(sampleCmd)
}
