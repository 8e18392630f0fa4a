package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"embedview/internal/embeddings"
)

// GroupState is the lifecycle state of a GroupBuilder.
type GroupState int

const (
	GroupEmpty GroupState = iota
	GroupAccumulating
	GroupFinished
)

func (s GroupState) String() string {
	switch s {
	case GroupEmpty:
		return "empty"
	case GroupAccumulating:
		return "accumulating"
	case GroupFinished:
		return "finished"
	default:
		return fmt.Sprintf("GroupState(%d)", int(s))
	}
}

// PointInput is one embedding handed to GroupBuilder.AddPoint. Options keep
// the order given; use embeddings.SortedOptions for map input.
type PointInput struct {
	X, Y         float64
	ColorOptions []embeddings.Option
	ShapeOptions []embeddings.Option
	Extras       []Extra
}

// GroupBuilder accumulates the points of one group. Finish is the only way a
// group reaches the archive.
type GroupBuilder struct {
	w      *Writer
	id     string
	points []embeddings.Point
	extras []Extra
	state  GroupState
}

// ID returns the group id.
func (g *GroupBuilder) ID() string { return g.id }

// State returns the builder's lifecycle state.
func (g *GroupBuilder) State() GroupState { return g.state }

// Len returns the number of points added since the last Clear.
func (g *GroupBuilder) Len() int { return len(g.points) }

// AddPoint appends a point. The point is validated immediately.
func (g *GroupBuilder) AddPoint(in PointInput) error {
	if err := g.writable(); err != nil {
		return err
	}

	p := embeddings.Point{X: in.X, Y: in.Y}
	var err error
	if p.ColorOptions, err = embeddings.NewOptions(in.ColorOptions...); err != nil {
		return fmt.Errorf("color options: %w", err)
	}
	if p.ShapeOptions, err = embeddings.NewOptions(in.ShapeOptions...); err != nil {
		return fmt.Errorf("shape options: %w", err)
	}
	for _, e := range in.Extras {
		if e == nil {
			return fmt.Errorf("nil extra")
		}
		p.Extras = append(p.Extras, e.Meta())
	}
	if err := p.Validate(); err != nil {
		return err
	}

	g.points = append(g.points, p)
	g.extras = append(g.extras, in.Extras...)
	g.state = GroupAccumulating
	return nil
}

// Clear drops every point added so far and returns the builder to the empty
// state.
func (g *GroupBuilder) Clear() error {
	if err := g.writable(); err != nil {
		return err
	}
	g.points = nil
	g.extras = nil
	g.state = GroupEmpty
	return nil
}

// Finish saves the group's resources and appends it to the document. On a
// resource failure nothing is appended and files saved for this group are
// removed.
func (g *GroupBuilder) Finish() error {
	if err := g.writable(); err != nil {
		return err
	}

	var saved []string
	for _, e := range g.extras {
		if err := e.SaveResource(g.w.resDir); err != nil {
			for _, p := range saved {
				os.Remove(p)
			}
			return err
		}
		if img, ok := e.(*ImageExtra); ok {
			saved = append(saved, filepath.Join(g.w.resDir, img.Filename()))
		}
	}

	points := g.points
	if points == nil {
		points = []embeddings.Point{}
	}
	g.w.doc.Groups = append(g.w.doc.Groups, embeddings.Group{ID: g.id, Points: points})
	g.points = nil
	g.extras = nil
	g.state = GroupFinished
	return nil
}

func (g *GroupBuilder) writable() error {
	if g.w.closed {
		return ErrWriterClosed
	}
	if g.state == GroupFinished {
		return ErrGroupFinished
	}
	return nil
}
