// Package chart turns an embedding document into scatter-chart descriptors,
// one per (group, color option, shape option) triple.
package chart

import (
	"errors"
	"fmt"
	"sort"

	"embedview/internal/embeddings"
)

const seriesType = "scatter"

var axisYGridThickness = 0

// dimension is one categorical option name with the point indices for each
// of its values.
type dimension struct {
	name    string
	indices map[embeddings.Value][]int
	values  []embeddings.Value // ascending; position is the value's rank
}

// Convert builds chart descriptors for every group in doc. The document is
// validated first and any error aborts the whole conversion.
func Convert(doc *embeddings.Document, opts Options) (Charts, error) {
	if doc == nil {
		return nil, errors.New("chart: nil document")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if len(opts.Palette) < MinPaletteSize {
		return nil, fmt.Errorf("chart: palette has %d colors, need at least %d", len(opts.Palette), MinPaletteSize)
	}
	opts.Layout = opts.Layout.withDefaults()

	out := make(Charts, len(doc.Groups))
	for i := range doc.Groups {
		out[doc.Groups[i].ID] = convertGroup(doc, &doc.Groups[i], opts)
	}
	return out, nil
}

func convertGroup(doc *embeddings.Document, g *embeddings.Group, opts Options) map[string]map[string]*Descriptor {
	colors := indexDimensions(g.Points, func(p *embeddings.Point) []embeddings.Option { return p.ColorOptions })
	shapes := indexDimensions(g.Points, func(p *embeddings.Point) []embeddings.Option { return p.ShapeOptions })

	payloads := make([]DataPoint, len(g.Points))
	for i := range g.Points {
		p := &g.Points[i]
		payloads[i] = DataPoint{X: p.X, Y: p.Y, ToolTipContent: Tooltip(p.Extras, opts.LinkPrefix)}
	}

	byColor := make(map[string]map[string]*Descriptor, len(colors))
	if len(shapes) == 0 {
		return byColor
	}
	for _, color := range colors {
		byShape := make(map[string]*Descriptor, len(shapes))
		for _, shape := range shapes {
			byShape[shape.name] = buildDescriptor(doc, color, shape, payloads, opts)
		}
		byColor[color.name] = byShape
	}
	return byColor
}

// indexDimensions walks the points once and returns one dimension per option
// name, in first-seen order.
func indexDimensions(points []embeddings.Point, pick func(*embeddings.Point) []embeddings.Option) []*dimension {
	var dims []*dimension
	byName := make(map[string]*dimension)
	for i := range points {
		for _, opt := range pick(&points[i]) {
			d, ok := byName[opt.Name]
			if !ok {
				d = &dimension{name: opt.Name, indices: make(map[embeddings.Value][]int)}
				byName[opt.Name] = d
				dims = append(dims, d)
			}
			if _, seen := d.indices[opt.Value]; !seen {
				d.values = append(d.values, opt.Value)
			}
			d.indices[opt.Value] = append(d.indices[opt.Value], i)
		}
	}
	for _, d := range dims {
		sort.Slice(d.values, func(a, b int) bool { return d.values[a].Compare(d.values[b]) < 0 })
	}
	return dims
}

func buildDescriptor(doc *embeddings.Document, color, shape *dimension, payloads []DataPoint, opts Options) *Descriptor {
	layout := opts.Layout
	grid := axisYGridThickness
	desc := &Descriptor{
		AnimationEnabled: layout.AnimationEnabled,
		Height:           layout.Height,
		Width:            layout.Width,
		AxisY:            Axis{GridThickness: &grid},
		Data:             make([]Series, 0, len(color.values)*len(shape.values)),
	}
	if doc.Title != "" {
		desc.Title = &Text{Text: doc.Title, FontSize: layout.TitleFontSize}
	}
	if doc.Subtitle != "" {
		desc.Subtitles = append(desc.Subtitles, Text{Text: doc.Subtitle, FontSize: layout.SubtitleFontSize})
	}
	desc.Subtitles = append(desc.Subtitles, Text{
		Text:     fmt.Sprintf("Colored by %s; Shapes represent %s", color.name, shape.name),
		FontSize: layout.SubtitleFontSize,
	})

	for colorRank, colorValue := range color.values {
		for shapeRank, shapeValue := range shape.values {
			indices := intersect(color.indices[colorValue], shape.indices[shapeValue])
			points := make([]DataPoint, 0, len(indices))
			for _, idx := range indices {
				points = append(points, payloads[idx])
			}
			desc.Data = append(desc.Data, Series{
				Type:        seriesType,
				MarkerType:  ShapeFor(shapeRank),
				MarkerColor: opts.Palette.Color(colorRank),
				DataPoints:  points,
				ColorValue:  colorValue,
				ShapeValue:  shapeValue,
			})
		}
	}
	return desc
}

// intersect merges two ascending index lists.
func intersect(a, b []int) []int {
	var out []int
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func (l Layout) withDefaults() Layout {
	def := DefaultLayout()
	if l.Width <= 0 {
		l.Width = def.Width
	}
	if l.Height <= 0 {
		l.Height = def.Height
	}
	if l.TitleFontSize <= 0 {
		l.TitleFontSize = def.TitleFontSize
	}
	if l.SubtitleFontSize <= 0 {
		l.SubtitleFontSize = def.SubtitleFontSize
	}
	return l
}
