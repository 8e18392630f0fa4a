package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"embedview/internal/archive"
	"embedview/internal/embeddings"
)

// maxPointLine bounds a single JSONL record.
const maxPointLine = 4 * 1024 * 1024

var (
	packPoints   string
	packOutput   string
	packTitle    string
	packSubtitle string
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Build an archive from a JSON Lines file of points",
	Long: `Build an embeddings archive from a JSON Lines file. Each line is one point:

  {"group": "train", "x": 1.5, "y": -2,
   "color": {"Label": 3, "Cluster": "a"},
   "shape": [{"name": "Split", "value": "train"}],
   "extras": [{"id": "img", "name": "Image", "type": "image", "value": "imgs/0.png"},
              {"id": "idx", "name": "Index", "type": "text", "value": "0"}]}

color and shape accept an object (options sorted by name) or a list (order
kept). Image extra paths are relative to the points file. Groups are written
in order of first appearance.`,
	Example: `  embedview pack --points points.jsonl -o run-42.tar.gz --title "Run 42"`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.log.Sync()

		sum, err := runPack(cmd.Context(), e, packPoints, packOutput, archive.Options{
			Title:    packTitle,
			Subtitle: packSubtitle,
		})
		if err != nil {
			return err
		}
		printSummary(e, sum)
		return nil
	},
}

func runPack(ctx context.Context, e *env, pointsPath, output string, opts archive.Options) (archive.Summary, error) {
	f, err := os.Open(pointsPath)
	if err != nil {
		return archive.Summary{}, fmt.Errorf("open points file: %w", err)
	}
	defer f.Close()
	baseDir := filepath.Dir(pointsPath)

	return writeArchive(ctx, output, opts.TempDir, e.cfg.Storage, func(path string) (archive.Summary, error) {
		w, err := archive.Create(path, opts)
		if err != nil {
			return archive.Summary{}, err
		}
		if err := readPoints(f, baseDir, w); err != nil {
			return archive.Summary{}, multierr.Append(err, w.Abort())
		}
		if err := w.Close(); err != nil {
			return archive.Summary{}, err
		}
		e.log.Debug("packed points file", nil, map[string]interface{}{"points": pointsPath})
		return w.Summary(), nil
	})
}

// readPoints adds every record in r to w.
func readPoints(r io.Reader, baseDir string, w *archive.Writer) error {
	groups := make(map[string]*archive.GroupBuilder)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxPointLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		id, in, err := parsePointLine(line, baseDir)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		g, ok := groups[id]
		if !ok {
			if g, err = w.Group(id); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			groups[id] = g
		}
		if err := g.AddPoint(in); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read points: %w", err)
	}
	return nil
}

type pointRecord struct {
	Group  string          `json:"group"`
	X      *float64        `json:"x"`
	Y      *float64        `json:"y"`
	Color  json.RawMessage `json:"color"`
	Shape  json.RawMessage `json:"shape"`
	Extras []extraRecord   `json:"extras"`
}

type extraRecord struct {
	ID    string               `json:"id"`
	Name  string               `json:"name"`
	Type  embeddings.ExtraType `json:"type"`
	Value string               `json:"value"`
}

type optionRecord struct {
	Name  string           `json:"name"`
	Value embeddings.Value `json:"value"`
}

// parsePointLine decodes one JSONL record into its group id and point.
func parsePointLine(line []byte, baseDir string) (string, archive.PointInput, error) {
	var rec pointRecord
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return "", archive.PointInput{}, fmt.Errorf("invalid record: %w", err)
	}
	if rec.Group == "" {
		return "", archive.PointInput{}, fmt.Errorf("missing group")
	}
	if rec.X == nil || rec.Y == nil {
		return "", archive.PointInput{}, fmt.Errorf("missing x or y")
	}

	colors, err := parseOptions(rec.Color)
	if err != nil {
		return "", archive.PointInput{}, fmt.Errorf("color: %w", err)
	}
	shapes, err := parseOptions(rec.Shape)
	if err != nil {
		return "", archive.PointInput{}, fmt.Errorf("shape: %w", err)
	}

	in := archive.PointInput{X: *rec.X, Y: *rec.Y, ColorOptions: colors, ShapeOptions: shapes}
	for i, er := range rec.Extras {
		extra, err := er.extra(baseDir)
		if err != nil {
			return "", archive.PointInput{}, fmt.Errorf("extras[%d]: %w", i, err)
		}
		in.Extras = append(in.Extras, extra)
	}
	return rec.Group, in, nil
}

// parseOptions accepts either a name to value object or an ordered list of
// {name, value} pairs.
func parseOptions(raw json.RawMessage) ([]embeddings.Option, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		var m map[string]embeddings.Value
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, err
		}
		values := make(map[string]interface{}, len(m))
		for k, v := range m {
			values[k] = v
		}
		return embeddings.SortedOptions(values)
	case '[':
		var list []optionRecord
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		opts := make([]embeddings.Option, 0, len(list))
		for _, o := range list {
			opt, err := embeddings.NewOption(o.Name, o.Value)
			if err != nil {
				return nil, err
			}
			opts = append(opts, opt)
		}
		return embeddings.NewOptions(opts...)
	default:
		return nil, fmt.Errorf("want an object or a list of {name, value}")
	}
}

func (er extraRecord) extra(baseDir string) (archive.Extra, error) {
	if er.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	switch er.Type {
	case embeddings.ExtraText:
		return archive.NewTextExtra(er.ID, er.Name, er.Value), nil
	case embeddings.ExtraImage:
		if er.Value == "" {
			return nil, fmt.Errorf("image extra %q has no path", er.ID)
		}
		src := er.Value
		if !filepath.IsAbs(src) {
			src = filepath.Join(baseDir, filepath.FromSlash(src))
		}
		return archive.NewImageFile(er.ID, er.Name, src)
	default:
		return nil, fmt.Errorf("unknown extra type %q (want %s or %s)", er.Type, embeddings.ExtraText, embeddings.ExtraImage)
	}
}

func init() {
	packCmd.Flags().StringVar(&packPoints, "points", "", "JSON Lines file of points")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "embeddings.tar.gz", "output archive (path or s3://bucket/key)")
	packCmd.Flags().StringVar(&packTitle, "title", "", "document title")
	packCmd.Flags().StringVar(&packSubtitle, "subtitle", "", "document subtitle")
	packCmd.MarkFlagRequired("points")

	rootCmd.AddCommand(packCmd)
}
