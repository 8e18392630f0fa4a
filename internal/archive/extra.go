package archive

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"embedview/internal/embeddings"
)

// Extra is a tooltip annotation that may carry a backing resource file.
type Extra interface {
	// Meta returns the annotation as stored in meta.json.
	Meta() embeddings.Extra
	// SaveResource writes the backing file, if any, into resourcesDir.
	SaveResource(resourcesDir string) error
}

// TextExtra is a plain text annotation.
type TextExtra struct {
	ID   string
	Name string
	Text string
}

// NewTextExtra returns a text annotation.
func NewTextExtra(id, name, text string) *TextExtra {
	return &TextExtra{ID: id, Name: name, Text: text}
}

func (e *TextExtra) Meta() embeddings.Extra {
	return embeddings.Extra{ID: e.ID, Name: e.Name, Type: embeddings.ExtraText, Value: e.Text}
}

func (e *TextExtra) SaveResource(string) error { return nil }

// ImageExtra is an image annotation stored under resources/ with a
// generated unique file name.
type ImageExtra struct {
	ID       string
	Name     string
	filename string
	write    func(w io.Writer) error
}

// NewImageFile returns an image annotation backed by an existing file. The
// file is copied when the group is finished; its extension is kept.
func NewImageFile(id, name, src string) (*ImageExtra, error) {
	ext := filepath.Ext(src)
	if ext == "" {
		return nil, fmt.Errorf("cannot infer file type of %s", src)
	}
	return newImageExtra(id, name, ext, func(w io.Writer) error {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}

// NewImageBytes returns an image annotation from encoded image data.
func NewImageBytes(id, name string, data []byte, ext string) (*ImageExtra, error) {
	if ext == "" || ext == "." {
		return nil, fmt.Errorf("extra %q: extension is required for raw image data", id)
	}
	return newImageExtra(id, name, ext, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// NewImage returns an image annotation that is PNG-encoded on save.
func NewImage(id, name string, img image.Image) (*ImageExtra, error) {
	if img == nil {
		return nil, fmt.Errorf("extra %q: nil image", id)
	}
	return newImageExtra(id, name, "png", func(w io.Writer) error {
		return png.Encode(w, img)
	})
}

func newImageExtra(id, name, ext string, write func(io.Writer) error) (*ImageExtra, error) {
	ext = strings.TrimPrefix(ext, ".")
	if strings.ContainsAny(ext, `/\`) {
		return nil, fmt.Errorf("extra %q: invalid extension %q", id, ext)
	}
	return &ImageExtra{
		ID:       id,
		Name:     name,
		filename: uuid.NewString() + "." + ext,
		write:    write,
	}, nil
}

// Filename is the generated resource file name.
func (e *ImageExtra) Filename() string { return e.filename }

func (e *ImageExtra) Meta() embeddings.Extra {
	return embeddings.Extra{
		ID:    e.ID,
		Name:  e.Name,
		Type:  embeddings.ExtraImage,
		Value: path.Join(embeddings.ResourcesDir, e.filename),
	}
}

// SaveResource writes the image into resourcesDir. A partially written file
// is removed on failure.
func (e *ImageExtra) SaveResource(resourcesDir string) error {
	dst := filepath.Join(resourcesDir, e.filename)
	f, err := os.Create(dst)
	if err != nil {
		return &ResourceIOError{ExtraID: e.ID, Path: dst, Err: err}
	}
	if err := e.write(f); err != nil {
		f.Close()
		os.Remove(dst)
		return &ResourceIOError{ExtraID: e.ID, Path: dst, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return &ResourceIOError{ExtraID: e.ID, Path: dst, Err: err}
	}
	return nil
}
