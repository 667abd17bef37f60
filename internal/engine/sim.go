package engine

import (
	"fmt"
	"math"

	"github.com/pathoscope/wsiview/internal/dispatcher"
	"github.com/pathoscope/wsiview/pkg/core"
)

const defaultZoomPerScroll = 1.2

var _ Engine = (*Sim)(nil)

// Sim is a deterministic tile engine with deep-zoom viewport math. Pan and
// zoom take effect immediately; there is no animation.
type Sim struct {
	source TileSource
	opts   Options

	width, height float64
	aspect        float64 // image height / width

	center core.Point
	zoom   float64

	events *dispatcher.Dispatcher

	opened    bool
	destroyed bool
}

// NewSim creates an engine for src. It is not open until Open is called.
func NewSim(src TileSource, opts Options) (*Sim, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("container size %vx%v: %w", opts.Width, opts.Height, ErrInvalidSource)
	}
	if opts.ZoomPerScroll <= 0 {
		opts.ZoomPerScroll = defaultZoomPerScroll
	}
	if opts.MaxZoomLog2 <= opts.MinZoomLog2 {
		opts.MinZoomLog2, opts.MaxZoomLog2 = math.Inf(-1), math.Inf(1)
	}

	d, err := dispatcher.New(opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating event dispatcher: %w", err)
	}

	s := &Sim{
		source: src,
		opts:   opts,
		width:  opts.Width,
		height: opts.Height,
		aspect: float64(src.Height) / float64(src.Width),
		events: d,
	}
	s.goHome()
	return s, nil
}

// NewSimFactory returns a Factory producing Sim engines that open on the
// next loop tick.
func NewSimFactory() Factory {
	return func(src TileSource, opts Options) (Engine, error) {
		s, err := NewSim(src, opts)
		if err != nil {
			return nil, err
		}
		if opts.Loop != nil {
			opts.Loop.Post(s.Open)
		}
		return s, nil
	}
}

// goHome fits the whole image into the container.
func (s *Sim) goHome() {
	s.center = core.Point{X: 0.5, Y: s.aspect / 2}
	s.zoom = math.Min(1, (s.height/s.width)/s.aspect)
}

// Open fires EventOpen. Calling it again or after Destroy does nothing.
func (s *Sim) Open() {
	if s.opened || s.destroyed {
		return
	}
	s.opened = true
	s.emit(&dispatcher.Event{Kind: EventOpen})
}

// IsOpen reports whether the engine has fired EventOpen.
func (s *Sim) IsOpen() bool { return s.opened }

// Source returns the bound tile source.
func (s *Sim) Source() TileSource { return s.source }

func (s *Sim) AddHandler(kind string, h dispatcher.HandlerFunc) {
	var opts []dispatcher.Option
	if s.opts.Logger != nil {
		opts = append(opts, dispatcher.Logged())
	}
	// canvas-scroll handlers must run inline so PreventDefault is honoured.
	if s.opts.AsyncEvents && s.opts.Loop != nil && kind != EventCanvasScroll {
		opts = append(opts, dispatcher.Deferred(s.opts.Loop))
	}
	s.events.Register(kind, h, opts...)
}

func (s *Sim) Destroy() {
	s.destroyed = true
	s.events.Clear()
}

// Destroyed reports whether Destroy was called.
func (s *Sim) Destroyed() bool { return s.destroyed }

func (s *Sim) VisibleBounds() core.Rect {
	w := 1 / s.zoom
	h := (s.height / s.width) / s.zoom
	return core.Rect{X: s.center.X - w/2, Y: s.center.Y - h/2, Width: w, Height: h}
}

func (s *Sim) ViewportToImageRect(r core.Rect) core.Rect {
	k := float64(s.source.Width)
	return core.Rect{X: r.X * k, Y: r.Y * k, Width: r.Width * k, Height: r.Height * k}
}

func (s *Sim) Center() core.Point { return s.center }

func (s *Sim) Zoom() float64 { return s.zoom }

func (s *Sim) ViewportToImageZoom(zoom float64) float64 {
	return zoom * s.width / float64(s.source.Width)
}

func (s *Sim) ImageToViewportZoom(imageZoom float64) float64 {
	return imageZoom * float64(s.source.Width) / s.width
}

func (s *Sim) ImageToViewportDelta(delta core.Point) core.Point {
	k := float64(s.source.Width)
	return core.Point{X: delta.X / k, Y: delta.Y / k}
}

func (s *Sim) ScreenToViewport(p core.Point) core.Point {
	k := 1 / (s.zoom * s.width)
	return core.Point{
		X: s.center.X + (p.X-s.width/2)*k,
		Y: s.center.Y + (p.Y-s.height/2)*k,
	}
}

func (s *Sim) ZoomPerScroll() float64 { return s.opts.ZoomPerScroll }

func (s *Sim) PanBy(delta core.Point) {
	if s.destroyed || !delta.IsFinite() {
		return
	}
	s.center = s.center.Add(delta)
	s.emit(&dispatcher.Event{Kind: EventPan})
	s.emit(&dispatcher.Event{Kind: EventAnimation})
}

// PanTo moves the viewport center to p (viewport space).
func (s *Sim) PanTo(p core.Point) {
	s.PanBy(p.Sub(s.center))
}

// ZoomTo sets the viewport zoom keeping ref at the same screen position.
func (s *Sim) ZoomTo(zoom float64, ref core.Point) {
	if s.destroyed || zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) || !ref.IsFinite() {
		return
	}
	s.center = ref.Add(s.center.Sub(ref).Scale(s.zoom / zoom))
	s.zoom = zoom
	s.emit(&dispatcher.Event{Kind: EventZoom})
	s.emit(&dispatcher.Event{Kind: EventAnimation})
}

func (s *Sim) ZoomBy(factor float64, ref core.Point) {
	s.ZoomTo(s.zoom*factor, ref)
}

// ApplyConstraints clamps zoom to the configured limits and keeps the
// viewport center over the image.
func (s *Sim) ApplyConstraints() {
	if s.destroyed {
		return
	}
	lo := s.ImageToViewportZoom(math.Exp2(s.opts.MinZoomLog2))
	hi := s.ImageToViewportZoom(math.Exp2(s.opts.MaxZoomLog2))
	if z := math.Max(lo, math.Min(hi, s.zoom)); z != s.zoom {
		s.ZoomTo(z, s.center)
	}

	c := core.Point{
		X: math.Max(0, math.Min(1, s.center.X)),
		Y: math.Max(0, math.Min(s.aspect, s.center.Y)),
	}
	if c != s.center {
		s.PanTo(c)
	}
}

// Scroll simulates a wheel event at a screen position. Unless a handler
// prevents it, the built-in behaviour zooms about the viewport center.
func (s *Sim) Scroll(amount float64, pos core.Point) {
	if s.destroyed {
		return
	}
	e := &dispatcher.Event{Kind: EventCanvasScroll, Scroll: amount, Position: pos}
	s.events.Dispatch(e)
	if !e.DefaultPrevented() {
		s.ZoomBy(math.Pow(s.opts.ZoomPerScroll, amount), s.center)
	}
}

// Press simulates a pointer press at a screen position.
func (s *Sim) Press(pos core.Point) {
	if s.destroyed {
		return
	}
	s.emit(&dispatcher.Event{Kind: EventCanvasPress, Position: pos})
}

// Emit fires a bare event of the given kind, as the engine does for
// animation frames.
func (s *Sim) Emit(kind string) {
	if s.destroyed {
		return
	}
	s.emit(&dispatcher.Event{Kind: kind})
}

func (s *Sim) emit(e *dispatcher.Event) {
	s.events.Dispatch(e)
}
