package chart

import (
	"fmt"
	"sort"
	"strings"
)

// Palette is an ordered table of marker colors. Color ranks index into it
// cyclically.
type Palette []string

// Color returns the color for a zero-based rank. Ranks beyond the palette
// length wrap around.
func (p Palette) Color(rank int) string {
	return p[rank%len(p)]
}

// MinPaletteSize is the smallest palette accepted by Convert.
const MinPaletteSize = 12

// Paired is the 12-hue qualitative "Paired" palette.
var Paired = Palette{
	"#a6cee3", "#1f78b4", "#b2df8a", "#33a02c",
	"#fb9a99", "#e31a1c", "#fdbf6f", "#ff7f00",
	"#cab2d6", "#6a3d9a", "#ffff99", "#b15928",
}

// Set3 is the 12-hue qualitative "Set3" palette.
var Set3 = Palette{
	"#8dd3c7", "#ffffb3", "#bebada", "#fb8072",
	"#80b1d3", "#fdb462", "#b3de69", "#fccde5",
	"#d9d9d9", "#bc80bd", "#ccebc5", "#ffed6f",
}

var palettes = map[string]Palette{
	"paired": Paired,
	"set3":   Set3,
}

// PaletteByName looks up a built-in palette. Names are case-insensitive.
func PaletteByName(name string) (Palette, error) {
	p, ok := palettes[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown palette %q (available: %s)", name, strings.Join(PaletteNames(), ", "))
	}
	return p, nil
}

// PaletteNames lists the built-in palettes in sorted order.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkerShape is a scatter marker type understood by the front-end.
type MarkerShape string

const (
	ShapeCircle   MarkerShape = "circle"
	ShapeSquare   MarkerShape = "square"
	ShapeTriangle MarkerShape = "triangle"
	ShapeCross    MarkerShape = "cross"
)

// Shapes is the fixed marker sequence indexed by shape rank modulo 4.
var Shapes = [4]MarkerShape{ShapeCircle, ShapeSquare, ShapeTriangle, ShapeCross}

// ShapeFor returns the marker for a zero-based shape rank.
func ShapeFor(rank int) MarkerShape {
	return Shapes[rank%len(Shapes)]
}
