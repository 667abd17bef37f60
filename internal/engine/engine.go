// Package engine describes the pyramidal tile engine as the viewer sees it:
// a black box with its own normalized viewport space, pan/zoom commands and
// navigation events. Sim is an in-process implementation used by the
// headless CLI and the tests.
package engine

import (
	"errors"
	"fmt"

	"github.com/pathoscope/wsiview/internal/dispatcher"
	"github.com/pathoscope/wsiview/pkg/core"
)

// Event kinds emitted by an engine.
const (
	EventOpen         = "open"
	EventPan          = "pan"
	EventZoom         = "zoom"
	EventAnimation    = "animation"
	EventCanvasScroll = "canvas-scroll"
	EventCanvasPress  = "canvas-press"
)

// ErrInvalidSource is returned when a tile source cannot describe a pyramid.
var ErrInvalidSource = errors.New("invalid tile source")

// Engine is the narrow capability a viewer needs from a tile engine.
// Viewport space is the engine's own: the image spans x in [0,1].
type Engine interface {
	VisibleBounds() core.Rect
	ViewportToImageRect(r core.Rect) core.Rect
	Center() core.Point
	Zoom() float64
	ViewportToImageZoom(zoom float64) float64
	ImageToViewportZoom(imageZoom float64) float64
	ImageToViewportDelta(delta core.Point) core.Point
	ScreenToViewport(p core.Point) core.Point

	PanBy(delta core.Point)
	ZoomTo(zoom float64, ref core.Point)
	ZoomBy(factor float64, ref core.Point)
	ApplyConstraints()
	ZoomPerScroll() float64

	AddHandler(kind string, h dispatcher.HandlerFunc)
	Destroy()
}

// TileSource describes a tiled image pyramid. Levels follow the engine's
// convention: MinLevel is the most zoomed-out, MaxLevel is full resolution.
type TileSource struct {
	Width    int
	Height   int
	TileSize int
	MinLevel int
	MaxLevel int
	TileURL  func(level, x, y int) string
}

// Validate checks that the source describes a usable pyramid.
func (s TileSource) Validate() error {
	switch {
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("%w: extent %dx%d", ErrInvalidSource, s.Width, s.Height)
	case s.TileSize <= 0:
		return fmt.Errorf("%w: tile size %d", ErrInvalidSource, s.TileSize)
	case s.MinLevel < 0 || s.MaxLevel < s.MinLevel:
		return fmt.Errorf("%w: levels %d..%d", ErrInvalidSource, s.MinLevel, s.MaxLevel)
	}
	return nil
}

// Options configures a new engine instance.
type Options struct {
	// Container size in screen pixels.
	Width  float64
	Height float64

	// Zoom limits in image zoom log2 (screen px per image px).
	MinZoomLog2 float64
	MaxZoomLog2 float64

	ZoomPerScroll float64

	// Loop receives the asynchronous open and, with AsyncEvents, every
	// navigation event delivery.
	Loop        dispatcher.Poster
	AsyncEvents bool

	Logger dispatcher.Logger
}

// Factory constructs an engine bound to a tile source. The engine fires
// EventOpen once its first frame is available.
type Factory func(src TileSource, opts Options) (Engine, error)
