package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"embedview/internal/embeddings"
)

// ListOptions configures archive inspection.
type ListOptions struct {
	ArchivePath string
	JSONOutput  bool
	Verbose     bool
}

// ListResult is returned by List.
type ListResult struct {
	Document DocumentSummary `json:"document"`
	Files    []FileEntry     `json:"files"`
}

// DocumentSummary condenses meta.json for display.
type DocumentSummary struct {
	Version  int            `json:"version"`
	Title    string         `json:"title,omitempty"`
	Subtitle string         `json:"subtitle,omitempty"`
	Groups   []GroupSummary `json:"groups"`
}

// GroupSummary lists a group's size and the option names it uses.
type GroupSummary struct {
	ID           string   `json:"id"`
	Points       int      `json:"points"`
	ColorOptions []string `json:"color_options"`
	ShapeOptions []string `json:"shape_options"`
}

// FileEntry describes a single file in the archive.
type FileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Mode string `json:"mode"`
}

// ReadDocument scans an archive stream for meta.json and parses it without
// extracting anything.
func ReadDocument(r io.Reader) (*embeddings.Document, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Name == embeddings.MetaFileName || hdr.Name == "./"+embeddings.MetaFileName {
			return embeddings.Decode(tr)
		}
	}
	return nil, fmt.Errorf("%s not found in archive", embeddings.MetaFileName)
}

// List inspects an archive stream and returns its contents.
func List(r io.Reader) (*ListResult, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)

	result := &ListResult{}
	var metaFound bool

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}

		if hdr.Name == embeddings.MetaFileName || hdr.Name == "./"+embeddings.MetaFileName {
			doc, err := embeddings.Decode(tr)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", embeddings.MetaFileName, err)
			}
			result.Document = Summarize(doc)
			metaFound = true
		}

		result.Files = append(result.Files, FileEntry{
			Path: hdr.Name,
			Size: hdr.Size,
			Mode: fmt.Sprintf("%04o", hdr.Mode),
		})
	}

	if !metaFound {
		return nil, fmt.Errorf("%s not found in archive", embeddings.MetaFileName)
	}
	return result, nil
}

// ListFile is List for an archive on disk.
func ListFile(path string) (*ListResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	return List(f)
}

// Summarize condenses a document. Option names keep first-seen order.
func Summarize(doc *embeddings.Document) DocumentSummary {
	s := DocumentSummary{
		Version:  doc.Version,
		Title:    doc.Title,
		Subtitle: doc.Subtitle,
		Groups:   make([]GroupSummary, 0, len(doc.Groups)),
	}
	for _, g := range doc.Groups {
		gs := GroupSummary{ID: g.ID, Points: len(g.Points), ColorOptions: []string{}, ShapeOptions: []string{}}
		colors := make(map[string]bool)
		shapes := make(map[string]bool)
		for _, p := range g.Points {
			for _, o := range p.ColorOptions {
				if !colors[o.Name] {
					colors[o.Name] = true
					gs.ColorOptions = append(gs.ColorOptions, o.Name)
				}
			}
			for _, o := range p.ShapeOptions {
				if !shapes[o.Name] {
					shapes[o.Name] = true
					gs.ShapeOptions = append(gs.ShapeOptions, o.Name)
				}
			}
		}
		s.Groups = append(s.Groups, gs)
	}
	return s
}

// PrintListResult outputs the listing in human-readable or JSON format.
func PrintListResult(out io.Writer, result *ListResult, opts ListOptions) error {
	if opts.JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	d := result.Document
	fmt.Fprintf(out, "Archive: %s\n", opts.ArchivePath)
	fmt.Fprintf(out, "Format version: %d\n", d.Version)
	if d.Title != "" {
		fmt.Fprintf(out, "Title: %s\n", d.Title)
	}
	if d.Subtitle != "" {
		fmt.Fprintf(out, "Subtitle: %s\n", d.Subtitle)
	}
	fmt.Fprintf(out, "Files: %d\n", len(result.Files))

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tPOINTS\tCOLOR OPTIONS\tSHAPE OPTIONS")
	for _, g := range d.Groups {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", g.ID, g.Points, joinOrDash(g.ColorOptions), joinOrDash(g.ShapeOptions))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if opts.Verbose {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODE\tSIZE\tPATH")
		fmt.Fprintln(w, "----\t----\t----")
		for _, f := range result.Files {
			fmt.Fprintf(w, "%s\t%s\t%s\n", f.Mode, FormatBytes(f.Size), f.Path)
		}
		return w.Flush()
	}

	return nil
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(b int64) string {
	switch {
	case b >= 1024*1024*1024:
		return fmt.Sprintf("%.1f GB", float64(b)/(1024*1024*1024))
	case b >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(b)/(1024*1024))
	case b >= 1024:
		return fmt.Sprintf("%.1f KB", float64(b)/1024)
	default:
		return fmt.Sprintf("%d B", b)
	}
}
