// Package sample builds the small demonstration archive served by
// "embedview serve --fake" and written by "embedview sample".
package sample

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math/rand"

	"embedview/internal/archive"
	"embedview/internal/embeddings"
)

// GroupID names the single group in the sample archive.
const GroupID = "example"

// ImageSize is the side length of the generated noise images.
const ImageSize = 28

// Options configures the sample archive.
type Options struct {
	Title    string
	Subtitle string
	// Seed makes the noise images reproducible; zero picks a fixed default.
	Seed int64
	// TempDir is passed through to the archive writer.
	TempDir string
}

type samplePoint struct {
	x, y     float64
	modality string
	label    int
	cluster  int
	imageID  string
	imageTag string
}

var points = []samplePoint{
	{x: 1.2, y: 3.4, modality: "image", label: 9, cluster: 5, imageID: "img", imageTag: "Image"},
	{x: -0.3, y: 1.5, modality: "audio", label: 4, cluster: 6, imageID: "aud", imageTag: "Audio"},
}

// Write streams the sample archive to out.
func Write(out io.Writer, opts Options) (archive.Summary, error) {
	w, err := archive.NewWriter(out, archive.Options{Title: opts.Title, Subtitle: opts.Subtitle, TempDir: opts.TempDir})
	if err != nil {
		return archive.Summary{}, err
	}
	return fill(w, opts)
}

// WriteFile writes the sample archive to path.
func WriteFile(path string, opts Options) (archive.Summary, error) {
	w, err := archive.Create(path, archive.Options{Title: opts.Title, Subtitle: opts.Subtitle, TempDir: opts.TempDir})
	if err != nil {
		return archive.Summary{}, err
	}
	return fill(w, opts)
}

func fill(w *archive.Writer, opts Options) (archive.Summary, error) {
	rng := newRand(opts.Seed)

	g, err := w.Group(GroupID)
	if err != nil {
		w.Abort()
		return archive.Summary{}, err
	}
	for _, p := range points {
		img, err := archive.NewImage(p.imageID, p.imageTag, noise(rng))
		if err != nil {
			w.Abort()
			return archive.Summary{}, err
		}
		err = g.AddPoint(archive.PointInput{
			X: p.x,
			Y: p.y,
			ShapeOptions: []embeddings.Option{
				{Name: "Modality", Value: embeddings.String(p.modality)},
			},
			ColorOptions: []embeddings.Option{
				{Name: "Ground truth label", Value: embeddings.Number(float64(p.label))},
				{Name: "Cluster", Value: embeddings.Number(float64(p.cluster))},
			},
			Extras: []archive.Extra{
				archive.NewTextExtra("modality", "Modality", p.modality),
				archive.NewTextExtra("gtl", "Ground truth label", fmt.Sprint(p.label)),
				archive.NewTextExtra("cluster", "Cluster", fmt.Sprint(p.cluster)),
				img,
			},
		})
		if err != nil {
			w.Abort()
			return archive.Summary{}, err
		}
	}

	if err := w.Close(); err != nil {
		return archive.Summary{}, err
	}
	return w.Summary(), nil
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = 1
	}
	return rand.New(rand.NewSource(seed))
}

// noise returns an opaque ImageSize by ImageSize image of random RGB pixels.
func noise(rng *rand.Rand) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, ImageSize, ImageSize))
	for y := 0; y < ImageSize; y++ {
		for x := 0; x < ImageSize; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}
