package embeddings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// wire types mirror meta.json with pointer fields so that absent keys can be
// told apart from zero values.
type wireDocument struct {
	Title    *string     `json:"title"`
	Subtitle *string     `json:"subtitle"`
	Data     []wireGroup `json:"data"`
}

type wireGroup struct {
	ID   *string     `json:"id"`
	Data []wirePoint `json:"data"`
}

type wirePoint struct {
	X            *float64     `json:"x"`
	Y            *float64     `json:"y"`
	ShapeOptions []wireOption `json:"shapeOptions"`
	ColorOptions []wireOption `json:"colorOptions"`
	Extras       []wireExtra  `json:"extras"`
}

type wireOption struct {
	Name  *string         `json:"name"`
	Value json.RawMessage `json:"value"`
}

type wireExtra struct {
	ID    *string         `json:"id"`
	Name  *string         `json:"name"`
	Type  *string         `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Load reads and parses a meta.json file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Decode reads a whole document from r and parses it.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Parse(data)
}

// Parse decodes meta.json content. The version tag is checked before
// anything else; a *FormatError is returned when it is missing or not 1.
// Structural problems are reported as *SchemaError.
func Parse(data []byte) (*Document, error) {
	if err := checkVersion(data); err != nil {
		return nil, err
	}

	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &SchemaError{Reason: "invalid document", Err: err}
	}

	doc := &Document{Version: Version}
	if w.Title != nil {
		doc.Title = *w.Title
	}
	if w.Subtitle != nil {
		doc.Subtitle = *w.Subtitle
	}

	doc.Groups = make([]Group, 0, len(w.Data))
	for gi, wg := range w.Data {
		path := fmt.Sprintf("data[%d]", gi)
		if wg.ID == nil {
			return nil, schemaErrorf(path, "missing required field %q", "id")
		}
		g := Group{ID: *wg.ID, Points: make([]Point, 0, len(wg.Data))}
		for pi, wp := range wg.Data {
			p, err := wp.point(fmt.Sprintf("%s.data[%d]", path, pi))
			if err != nil {
				return nil, err
			}
			g.Points = append(g.Points, p)
		}
		doc.Groups = append(doc.Groups, g)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func checkVersion(data []byte) error {
	var head map[string]json.RawMessage
	if err := json.Unmarshal(data, &head); err != nil {
		return &SchemaError{Reason: "document is not a JSON object", Err: err}
	}
	raw, ok := head[VersionKey]
	if !ok || len(raw) == 0 {
		return &FormatError{}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return &FormatError{Found: string(raw)}
	}
	num, ok := v.(json.Number)
	if !ok {
		return &FormatError{Found: string(raw)}
	}
	f, err := num.Float64()
	if err != nil || f != Version {
		return &FormatError{Found: num.String()}
	}
	return nil
}

func (wp wirePoint) point(path string) (Point, error) {
	if wp.X == nil {
		return Point{}, schemaErrorf(path, "missing required field %q", "x")
	}
	if wp.Y == nil {
		return Point{}, schemaErrorf(path, "missing required field %q", "y")
	}
	p := Point{X: *wp.X, Y: *wp.Y}

	var err error
	if p.ShapeOptions, err = convertOptions(path+".shapeOptions", wp.ShapeOptions); err != nil {
		return Point{}, err
	}
	if p.ColorOptions, err = convertOptions(path+".colorOptions", wp.ColorOptions); err != nil {
		return Point{}, err
	}

	for i, we := range wp.Extras {
		epath := fmt.Sprintf("%s.extras[%d]", path, i)
		e, err := we.extra(epath)
		if err != nil {
			return Point{}, err
		}
		p.Extras = append(p.Extras, e)
	}
	return p, nil
}

func convertOptions(path string, in []wireOption) ([]Option, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]Option, 0, len(in))
	for i, wo := range in {
		opath := fmt.Sprintf("%s[%d]", path, i)
		if wo.Name == nil {
			return nil, schemaErrorf(opath, "missing required field %q", "name")
		}
		if len(wo.Value) == 0 {
			return nil, schemaErrorf(opath, "missing required field %q", "value")
		}
		var v Value
		if err := json.Unmarshal(wo.Value, &v); err != nil {
			return nil, &SchemaError{Path: opath, Reason: "invalid value", Err: err}
		}
		out = append(out, Option{Name: *wo.Name, Value: v})
	}
	return out, nil
}

func (we wireExtra) extra(path string) (Extra, error) {
	if we.Name == nil {
		return Extra{}, schemaErrorf(path, "missing required field %q", "name")
	}
	if we.Type == nil {
		return Extra{}, schemaErrorf(path, "missing required field %q", "type")
	}
	if len(we.Value) == 0 {
		return Extra{}, schemaErrorf(path, "missing required field %q", "value")
	}
	var v Value
	if err := json.Unmarshal(we.Value, &v); err != nil {
		return Extra{}, &SchemaError{Path: path, Reason: "invalid value", Err: err}
	}
	e := Extra{Name: *we.Name, Type: ExtraType(*we.Type), Value: v.String()}
	if we.ID != nil {
		e.ID = *we.ID
	}
	return e, nil
}

// Validate checks a document built in memory against the same rules Parse
// enforces.
func (d *Document) Validate() error {
	if d.Version != Version {
		return &FormatError{Found: strconv.Itoa(d.Version)}
	}
	ids := make(map[string]bool, len(d.Groups))
	for gi, g := range d.Groups {
		path := fmt.Sprintf("data[%d]", gi)
		if g.ID == "" {
			return schemaErrorf(path, "group id is empty")
		}
		if ids[g.ID] {
			return schemaErrorf(path, "duplicate group id %q", g.ID)
		}
		ids[g.ID] = true
		for pi, p := range g.Points {
			if err := p.validate(fmt.Sprintf("%s.data[%d]", path, pi)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate checks a single point: finite coordinates, unique non-empty
// option names and known extra types.
func (p *Point) Validate() error {
	return p.validate("point")
}

func (p *Point) validate(path string) error {
	if math.IsNaN(p.X) || math.IsInf(p.X, 0) {
		return schemaErrorf(path, "x is not a finite number")
	}
	if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
		return schemaErrorf(path, "y is not a finite number")
	}
	if err := validateOptions(path+".shapeOptions", p.ShapeOptions); err != nil {
		return err
	}
	if err := validateOptions(path+".colorOptions", p.ColorOptions); err != nil {
		return err
	}
	for i, e := range p.Extras {
		epath := fmt.Sprintf("%s.extras[%d]", path, i)
		switch e.Type {
		case ExtraText, ExtraImage:
		default:
			return schemaErrorf(epath, "unknown extra type %q", e.Type)
		}
		if e.Type == ExtraImage && e.Value == "" {
			return schemaErrorf(epath, "image extra has an empty resource path")
		}
	}
	return nil
}

func validateOptions(path string, opts []Option) error {
	seen := make(map[string]bool, len(opts))
	for i, o := range opts {
		opath := fmt.Sprintf("%s[%d]", path, i)
		if o.Name == "" {
			return schemaErrorf(opath, "option name is empty")
		}
		if !o.Value.IsValid() {
			return schemaErrorf(opath, "option %q has no value", o.Name)
		}
		if seen[o.Name] {
			return schemaErrorf(opath, "duplicate option name %q", o.Name)
		}
		seen[o.Name] = true
	}
	return nil
}

// Marshal serializes the document as meta.json content.
func Marshal(d *Document) ([]byte, error) {
	out := *d
	out.Groups = make([]Group, len(d.Groups))
	copy(out.Groups, d.Groups)
	for i := range out.Groups {
		if out.Groups[i].Points == nil {
			out.Groups[i].Points = []Point{}
		}
	}
	return json.Marshal(&out)
}
