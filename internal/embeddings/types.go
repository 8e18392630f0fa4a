// Package embeddings defines the embedding document stored as meta.json
// inside an embedview archive, together with its parser and validation.
package embeddings

const (
	// Version is the only supported embeddings-viewer-version.
	Version = 1

	// VersionKey is the top-level meta.json key holding the version tag.
	VersionKey = "embeddings-viewer-version"

	// MetaFileName is the document's name at the archive root.
	MetaFileName = "meta.json"

	// ResourcesDir holds binary extra payloads inside the archive.
	ResourcesDir = "resources"
)

// ExtraType is the kind of a tooltip annotation.
type ExtraType string

const (
	ExtraText  ExtraType = "text"
	ExtraImage ExtraType = "image"
)

// Document is the top-level container serialized as meta.json.
type Document struct {
	Version  int     `json:"embeddings-viewer-version"`
	Title    string  `json:"title,omitempty"`
	Subtitle string  `json:"subtitle,omitempty"`
	Groups   []Group `json:"data"`
}

// Group is one named set of embedding points.
type Group struct {
	ID     string  `json:"id"`
	Points []Point `json:"data"`
}

// Point is a single 2-D embedding with its categorical options and extras.
type Point struct {
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
	ShapeOptions []Option `json:"shapeOptions,omitempty"`
	ColorOptions []Option `json:"colorOptions,omitempty"`
	Extras       []Extra  `json:"extras,omitempty"`
}

// Option is a (name, value) pair of a categorical dimension, e.g.
// ("Cluster", 5).
type Option struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Extra is a tooltip annotation. For text extras Value is the literal text,
// for image extras it is a resource path relative to the archive root.
type Extra struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Type  ExtraType `json:"type"`
	Value string    `json:"value"`
}

// PointCount returns the number of points across all groups.
func (d *Document) PointCount() int {
	n := 0
	for _, g := range d.Groups {
		n += len(g.Points)
	}
	return n
}

// Group returns the group with the given id.
func (d *Document) Group(id string) (*Group, bool) {
	for i := range d.Groups {
		if d.Groups[i].ID == id {
			return &d.Groups[i], true
		}
	}
	return nil, false
}
