package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"embedview/internal/archive"
	"embedview/internal/chart"
	"embedview/internal/source"
	"embedview/internal/viewer"
)

var (
	convertLinkPrefix string
	convertPalette    string
	convertJS         bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <archive>",
	Short: "Print the chart descriptors for an archive",
	Long: `Read meta.json from an archive and print the chart descriptors the viewer
would serve, keyed by group, color option and shape option.`,
	Example: `  embedview convert run-42.tar.gz > charts.json
  embedview convert run-42.tar.gz --js --link-prefix https://cdn.example.com/run-42/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.log.Sync()

		if cmd.Flags().Changed("palette") {
			e.cfg.Chart.Palette = convertPalette
		}
		prefix := e.cfg.Server.LinkPrefix
		if cmd.Flags().Changed("link-prefix") {
			prefix = convertLinkPrefix
		}
		opts, err := e.cfg.Chart.Options(prefix)
		if err != nil {
			return err
		}
		return runConvert(cmd.Context(), e, args[0], cmd.OutOrStdout(), opts, convertJS)
	},
}

func runConvert(ctx context.Context, e *env, location string, out io.Writer, opts chart.Options, asJS bool) error {
	r, err := source.Open(ctx, location, e.cfg.Storage)
	if err != nil {
		return err
	}
	defer r.Close()

	doc, err := archive.ReadDocument(r)
	if err != nil {
		return err
	}
	charts, err := chart.Convert(doc, opts)
	if err != nil {
		return err
	}

	if asJS {
		script, err := viewer.EncodeScript(charts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(script))
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(charts)
}

func init() {
	convertCmd.Flags().StringVar(&convertLinkPrefix, "link-prefix", "", "prefix for image resource links (default from config)")
	convertCmd.Flags().StringVar(&convertPalette, "palette", "", fmt.Sprintf("color palette: %v (default from config)", chart.PaletteNames()))
	convertCmd.Flags().BoolVar(&convertJS, "js", false, "wrap the output as the viewer's data.js script")

	rootCmd.AddCommand(convertCmd)
}
