// Package bridge keeps one canonical view state per viewer in step with the
// tile engine's own viewport, and translates canonical pan/zoom commands
// back into engine-native ones.
package bridge

import (
	"log/slog"

	"github.com/pathoscope/wsiview/internal/engine"
	"github.com/pathoscope/wsiview/internal/geo"
	"github.com/pathoscope/wsiview/pkg/core"
)

// Options bounds the canonical zoom of one bridge.
type Options struct {
	MinZoomLog2 float64
	MaxZoomLog2 float64
	// DefaultZoom is the image zoom used by Reset.
	DefaultZoom float64
	Logger      *slog.Logger
}

// DefaultOptions mirrors the viewer defaults.
func DefaultOptions() Options {
	return Options{MinZoomLog2: -4, MaxZoomLog2: 8, DefaultZoom: 0.5}
}

// UpdateFunc receives the new view state after a successful read.
type UpdateFunc func(kind string, state core.ViewState)

// Bridge is the viewport adapter of a single viewer instance.
type Bridge struct {
	engine engine.Engine
	state  core.ViewState
	opts   Options

	subscribers []UpdateFunc
	logger      *slog.Logger
}

// New creates a detached bridge.
func New(opts Options) *Bridge {
	if opts.MaxZoomLog2 < opts.MinZoomLog2 {
		opts.MinZoomLog2, opts.MaxZoomLog2 = opts.MaxZoomLog2, opts.MinZoomLog2
	}
	if opts.DefaultZoom <= 0 {
		opts.DefaultZoom = DefaultOptions().DefaultZoom
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{opts: opts, logger: logger}
}

// Attach binds the bridge to an engine. Reads and writes before Attach are
// no-ops.
func (b *Bridge) Attach(e engine.Engine) {
	b.engine = e
}

// Detach forgets the engine without destroying it.
func (b *Bridge) Detach() {
	b.engine = nil
}

// Attached reports whether an engine is bound.
func (b *Bridge) Attached() bool {
	return b.engine != nil
}

// Reset discards the current view state and centers on the slide midpoint
// at the default zoom.
func (b *Bridge) Reset(slide core.SlideInfo) {
	c := slide.Center()
	b.state = core.ViewState{
		CenterX:  c.X,
		CenterY:  c.Y,
		ZoomLog2: b.clamp(geo.ZoomLog2(b.opts.DefaultZoom)),
	}
}

// Clear forgets the view state; a detached viewer reports the zero state.
func (b *Bridge) Clear() {
	b.state = core.ViewState{}
}

// OnUpdate registers fn to run after every successful read.
func (b *Bridge) OnUpdate(fn UpdateFunc) {
	b.subscribers = append(b.subscribers, fn)
}

// Sync re-reads the engine viewport into canonical space. Non-finite reads
// are dropped and the previous state is kept. It reports whether the state
// moved by more than geo.Tolerance.
func (b *Bridge) Sync(kind string) bool {
	if b.engine == nil {
		return false
	}

	rect := b.engine.ViewportToImageRect(b.engine.VisibleBounds())
	center := rect.Center()
	imageZoom := b.engine.ViewportToImageZoom(b.engine.Zoom())

	if !center.IsFinite() || !geo.IsFinite(imageZoom) {
		b.logger.Debug("dropping non-finite viewport read", "event", kind)
		return false
	}

	next := core.ViewState{
		CenterX:  center.X,
		CenterY:  center.Y,
		ZoomLog2: b.clamp(geo.ZoomLog2(imageZoom)),
	}
	changed := !geo.NearView(next, b.state, geo.Tolerance)
	b.state = next

	for _, fn := range b.subscribers {
		fn(kind, next)
	}
	return changed
}

// ViewState returns the current canonical view state.
func (b *Bridge) ViewState() core.ViewState { return b.state }

// Center returns the canonical view center.
func (b *Bridge) Center() core.Point { return b.state.Center() }

// ZoomLog2 returns the canonical zoom.
func (b *Bridge) ZoomLog2() float64 { return b.state.ZoomLog2 }

// PanBy moves the engine viewport by a canonical (image-pixel) delta.
func (b *Bridge) PanBy(delta core.Point) {
	if b.engine == nil || !delta.IsFinite() {
		return
	}
	vd := b.engine.ImageToViewportDelta(delta)
	if !vd.IsFinite() {
		return
	}
	b.engine.PanBy(vd)
}

// ZoomTo applies an absolute canonical zoom anchored at the engine's
// current center.
func (b *Bridge) ZoomTo(zoomLog2 float64) {
	if b.engine == nil || !geo.IsFinite(zoomLog2) {
		return
	}
	zoom := b.engine.ImageToViewportZoom(geo.ImageScale(b.clamp(zoomLog2)))
	anchor := b.engine.Center()
	if !geo.IsFinite(zoom) || zoom <= 0 || !anchor.IsFinite() {
		return
	}
	b.engine.ZoomTo(zoom, anchor)
}

func (b *Bridge) clamp(zoomLog2 float64) float64 {
	return geo.ClampZoom(zoomLog2, b.opts.MinZoomLog2, b.opts.MaxZoomLog2)
}
