// Package archive writes, inspects and safely extracts embedview archives:
// gzip-compressed tarballs holding meta.json and a resources/ directory.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"embedview/internal/embeddings"
)

// DefaultTitle is used when no title is configured.
const DefaultTitle = "Untitled"

// Options configures a Writer.
type Options struct {
	Title    string
	Subtitle string
	// TempDir is the parent of the staging directory; empty means os.TempDir.
	TempDir string
}

// Summary describes a written archive.
type Summary struct {
	Path      string        `json:"path,omitempty"`
	Groups    int           `json:"groups"`
	Points    int           `json:"points"`
	Resources int           `json:"resources"`
	Size      int64         `json:"size"`
	Duration  time.Duration `json:"duration"`
}

// Writer accumulates groups of embeddings in a staging directory and packs
// them into an archive on Close. The staging directory is removed on every
// exit path.
type Writer struct {
	out     *countingWriter
	file    *os.File // set when the Writer created the output file
	path    string
	dir     string
	resDir  string
	doc     embeddings.Document
	groups  []*GroupBuilder
	closed  bool
	start   time.Time
	summary Summary
}

// Create creates the archive file at path and returns a Writer for it. The
// file is removed again if Close fails or Abort is called.
func Create(path string, opts Options) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	w, err := newWriter(f, opts)
	if err != nil {
		return nil, multierr.Combine(err, f.Close(), os.Remove(path))
	}
	w.file = f
	w.path = path
	return w, nil
}

// NewWriter returns a Writer that packs the archive into out. out is not
// closed by the Writer.
func NewWriter(out io.Writer, opts Options) (*Writer, error) {
	return newWriter(out, opts)
}

func newWriter(out io.Writer, opts Options) (*Writer, error) {
	dir, err := os.MkdirTemp(opts.TempDir, "embedview-archive-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	resDir := filepath.Join(dir, embeddings.ResourcesDir)
	if err := os.MkdirAll(resDir, 0755); err != nil {
		return nil, multierr.Append(fmt.Errorf("create resources dir: %w", err), os.RemoveAll(dir))
	}

	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	return &Writer{
		out:    &countingWriter{w: out},
		dir:    dir,
		resDir: resDir,
		doc: embeddings.Document{
			Version:  embeddings.Version,
			Title:    title,
			Subtitle: opts.Subtitle,
			Groups:   []embeddings.Group{},
		},
		start: time.Now(),
	}, nil
}

// SetTitle sets the document title.
func (w *Writer) SetTitle(title string) { w.doc.Title = title }

// SetSubtitle sets the document subtitle.
func (w *Writer) SetSubtitle(subtitle string) { w.doc.Subtitle = subtitle }

// Group starts a new group. Ids must be unique within the archive.
func (w *Writer) Group(id string) (*GroupBuilder, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	if id == "" {
		return nil, fmt.Errorf("group id is empty")
	}
	for _, g := range w.groups {
		if g.id == id {
			return nil, fmt.Errorf("duplicate group id %q", id)
		}
	}
	g := &GroupBuilder{w: w, id: id}
	w.groups = append(w.groups, g)
	return g, nil
}

// Document returns a copy of the groups finished so far.
func (w *Writer) Document() embeddings.Document {
	doc := w.doc
	doc.Groups = append([]embeddings.Group(nil), w.doc.Groups...)
	return doc
}

// Close finishes any group that still holds points, writes meta.json and
// packs the archive. Groups left empty are discarded.
func (w *Writer) Close() (err error) {
	if w.closed {
		return ErrWriterClosed
	}
	defer func() {
		w.closed = true
		err = multierr.Append(err, w.cleanup(err != nil))
	}()

	for _, g := range w.groups {
		if g.state == GroupAccumulating {
			if err := g.Finish(); err != nil {
				return fmt.Errorf("finish group %q: %w", g.id, err)
			}
		}
	}

	data, err := embeddings.Marshal(&w.doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", embeddings.MetaFileName, err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, embeddings.MetaFileName), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", embeddings.MetaFileName, err)
	}

	resources, err := w.pack()
	if err != nil {
		return err
	}

	w.summary = Summary{
		Path:      w.path,
		Groups:    len(w.doc.Groups),
		Points:    w.doc.PointCount(),
		Resources: resources,
		Size:      w.out.n,
		Duration:  time.Since(w.start),
	}
	return nil
}

// Abort discards everything written so far.
func (w *Writer) Abort() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	return w.cleanup(true)
}

// Summary reports what Close wrote. It is zero until Close succeeds.
func (w *Writer) Summary() Summary { return w.summary }

func (w *Writer) pack() (int, error) {
	gw := gzip.NewWriter(w.out)
	tw := tar.NewWriter(gw)

	if _, err := writeTarFile(tw, embeddings.MetaFileName, filepath.Join(w.dir, embeddings.MetaFileName)); err != nil {
		return 0, fmt.Errorf("write %s: %w", embeddings.MetaFileName, err)
	}
	n, err := writeTarDir(tw, embeddings.ResourcesDir, w.resDir)
	if err != nil {
		return 0, fmt.Errorf("write resources: %w", err)
	}

	if err := tw.Close(); err != nil {
		return 0, fmt.Errorf("close tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}
	return n, nil
}

func (w *Writer) cleanup(failed bool) error {
	err := os.RemoveAll(w.dir)
	if w.file != nil {
		err = multierr.Append(err, w.file.Close())
		if failed {
			err = multierr.Append(err, os.Remove(w.path))
		}
	}
	return err
}
