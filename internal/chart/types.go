package chart

import "embedview/internal/embeddings"

// Charts maps group id to color option name to shape option name to descriptor.
type Charts map[string]map[string]map[string]*Descriptor

// Descriptor is one scatter chart as consumed by the front-end's plotting
// library.
type Descriptor struct {
	AnimationEnabled bool     `json:"animationEnabled"`
	Height           int      `json:"height"`
	Width            int      `json:"width"`
	AxisX            Axis     `json:"axisX"`
	AxisY            Axis     `json:"axisY"`
	Title            *Text    `json:"title,omitempty"`
	Subtitles        []Text   `json:"subtitles"`
	Data             []Series `json:"data"`
}

// Axis holds per-axis display settings.
type Axis struct {
	GridThickness *int `json:"gridThickness,omitempty"`
}

// Text is a title or subtitle line.
type Text struct {
	Text     string `json:"text"`
	FontSize int    `json:"fontSize"`
}

// Series is the set of points sharing one (color value, shape value) pair.
type Series struct {
	Type        string      `json:"type"`
	MarkerType  MarkerShape `json:"markerType"`
	MarkerColor string      `json:"markerColor"`
	DataPoints  []DataPoint `json:"dataPoints"`

	ColorValue embeddings.Value `json:"-"`
	ShapeValue embeddings.Value `json:"-"`
}

// DataPoint is a plotted point with its rendered tooltip.
type DataPoint struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	ToolTipContent string  `json:"toolTipContent"`
}

// Layout controls the chart-level display fields of every descriptor.
type Layout struct {
	Width            int  `json:"width"`
	Height           int  `json:"height"`
	AnimationEnabled bool `json:"animation_enabled"`
	TitleFontSize    int  `json:"title_font_size"`
	SubtitleFontSize int  `json:"subtitle_font_size"`
}

// DefaultLayout returns the standard 800x800 animated layout.
func DefaultLayout() Layout {
	return Layout{
		Width:            800,
		Height:           800,
		AnimationEnabled: true,
		TitleFontSize:    16,
		SubtitleFontSize: 14,
	}
}

// Options configures Convert.
type Options struct {
	// LinkPrefix is prepended to every image extra's resource path.
	LinkPrefix string
	// Palette supplies marker colors; it must hold at least MinPaletteSize entries.
	Palette Palette
	// Layout fields left at zero take their DefaultLayout values, except
	// AnimationEnabled which is used as given.
	Layout Layout
}

// DefaultOptions returns options using the Paired palette, the default
// layout and no link prefix.
func DefaultOptions() Options {
	return Options{
		Palette: Paired,
		Layout:  DefaultLayout(),
	}
}
