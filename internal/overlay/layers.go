// Package overlay turns marker and tumor-area collections into declarative
// drawable layers, and hit-tests them for clicks. It never draws anything
// itself; a Renderer does.
package overlay

import (
	"image/color"

	"github.com/pathoscope/wsiview/internal/geo"
	"github.com/pathoscope/wsiview/pkg/core"
)

// Layer ids, bottom to top.
const (
	LayerTumorAreas   = "tumor-areas"
	LayerBoxMarkers   = "box-markers"
	LayerPointMarkers = "point-markers"
)

// Kind selects how a layer's items are drawn.
type Kind int

const (
	KindPolygon Kind = iota
	KindScatter
)

const (
	pointRadius         = 8
	pointRadiusSelected = 12
	lineWidth           = 2
	lineWidthMinPixels  = 1
)

var (
	boxFill           = color.RGBA{R: 100, G: 200, B: 255, A: 120}
	boxFillSelected   = color.RGBA{R: 255, G: 100, B: 100, A: 180}
	pointFill         = color.RGBA{R: 255, G: 200, B: 0, A: 200}
	pointFillSelected = color.RGBA{R: 255, G: 100, B: 100, A: 220}
	tumorFill         = color.RGBA{R: 200, G: 60, B: 80, A: 85}
	tumorLine         = color.RGBA{R: 180, G: 40, B: 60, A: 200}
	markerLine        = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Style is the resolved appearance of one item. Radius and LineWidth are in
// image units; LineWidthMinPixels is a screen-space floor.
type Style struct {
	Fill               color.RGBA
	Line               color.RGBA
	LineWidth          float64
	LineWidthMinPixels float64
	Radius             float64
}

// Item is one drawable. Polygon layers use Polygon, scatter layers use
// Position.
type Item struct {
	ID       string
	Label    string
	Polygon  core.Polygon
	Position core.Point
	Selected bool
}

// Layer is a declarative description of one drawable category.
type Layer struct {
	ID       string
	Kind     Kind
	Items    []Item
	Style    func(Item) Style
	OnClick  func(Item)
	Pickable bool
}

// Visibility holds the flags that decide which layers are built.
type Visibility struct {
	Overlay      bool
	TumorAreas   bool
	BoxMarkers   bool
	PointMarkers bool
}

// AllVisible turns every layer on.
func AllVisible() Visibility {
	return Visibility{Overlay: true, TumorAreas: true, BoxMarkers: true, PointMarkers: true}
}

// Selector receives marker selections from click callbacks.
type Selector interface {
	SetSelected(id string)
}

// Input is everything Build depends on.
type Input struct {
	Markers    []core.Marker
	TumorAreas []core.TumorArea
	Visibility Visibility
	SelectedID string
	Selector   Selector
}

// Build derives the overlay layers. The order is always tumor areas, box
// markers, point markers; a category whose flag is off or whose collection
// is empty is left out.
func Build(in Input) []Layer {
	if !in.Visibility.Overlay {
		return nil
	}

	points, boxes := core.SplitMarkers(in.Markers)
	onClick := selectOnClick(in.Selector)

	var layers []Layer

	if in.Visibility.TumorAreas && len(in.TumorAreas) > 0 {
		items := make([]Item, len(in.TumorAreas))
		for i, t := range in.TumorAreas {
			items[i] = Item{ID: t.ID, Label: t.Label, Polygon: geo.ClosePolygon(t.Polygon)}
		}
		layers = append(layers, Layer{
			ID:       LayerTumorAreas,
			Kind:     KindPolygon,
			Items:    items,
			Style:    tumorStyle,
			Pickable: true,
		})
	}

	if in.Visibility.BoxMarkers && len(boxes) > 0 {
		items := make([]Item, len(boxes))
		for i, m := range boxes {
			items[i] = Item{
				ID:       m.ID,
				Label:    m.Label,
				Polygon:  geo.BoxPolygon(m.X, m.Y, m.Width, m.Height),
				Selected: m.ID == in.SelectedID,
			}
		}
		layers = append(layers, Layer{
			ID:       LayerBoxMarkers,
			Kind:     KindPolygon,
			Items:    items,
			Style:    boxStyle,
			OnClick:  onClick,
			Pickable: true,
		})
	}

	if in.Visibility.PointMarkers && len(points) > 0 {
		items := make([]Item, len(points))
		for i, m := range points {
			items[i] = Item{
				ID:       m.ID,
				Label:    m.Label,
				Position: core.Point{X: m.X, Y: m.Y},
				Selected: m.ID == in.SelectedID,
			}
		}
		layers = append(layers, Layer{
			ID:       LayerPointMarkers,
			Kind:     KindScatter,
			Items:    items,
			Style:    pointStyle,
			OnClick:  onClick,
			Pickable: true,
		})
	}

	return layers
}

func selectOnClick(sel Selector) func(Item) {
	if sel == nil {
		return nil
	}
	return func(it Item) {
		if it.ID != "" {
			sel.SetSelected(it.ID)
		}
	}
}

func tumorStyle(Item) Style {
	return Style{
		Fill:               tumorFill,
		Line:               tumorLine,
		LineWidth:          lineWidth,
		LineWidthMinPixels: lineWidthMinPixels,
	}
}

func boxStyle(it Item) Style {
	s := Style{
		Fill:               boxFill,
		Line:               markerLine,
		LineWidth:          lineWidth,
		LineWidthMinPixels: lineWidthMinPixels,
	}
	if it.Selected {
		s.Fill = boxFillSelected
	}
	return s
}

func pointStyle(it Item) Style {
	s := Style{
		Fill:               pointFill,
		Line:               markerLine,
		LineWidth:          lineWidth,
		LineWidthMinPixels: lineWidthMinPixels,
		Radius:             pointRadius,
	}
	if it.Selected {
		s.Fill = pointFillSelected
		s.Radius = pointRadiusSelected
	}
	return s
}
