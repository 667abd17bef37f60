// Package viewer binds one tile engine and one overlay renderer to the same
// visual rectangle and keeps them in step through a viewport bridge.
package viewer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/pathoscope/wsiview/internal/bridge"
	"github.com/pathoscope/wsiview/internal/dispatcher"
	"github.com/pathoscope/wsiview/internal/engine"
	"github.com/pathoscope/wsiview/internal/eventloop"
	"github.com/pathoscope/wsiview/internal/geo"
	"github.com/pathoscope/wsiview/internal/overlay"
	"github.com/pathoscope/wsiview/internal/store"
	"github.com/pathoscope/wsiview/pkg/core"
)

var (
	ErrNotReady      = errors.New("viewer not ready")
	ErrMissingDeps   = errors.New("missing viewer dependency")
	ErrInvalidSlide  = errors.New("invalid slide info")
	ErrNoTileSources = errors.New("no tile source builder configured")
)

// State is the lifecycle phase of a viewer instance.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TileSourceBuilder maps a slide to the tile source its engine loads.
type TileSourceBuilder interface {
	TileSource(slideID string, info core.SlideInfo) engine.TileSource
}

// Dependencies holds the collaborators of a viewer.
type Dependencies struct {
	Store    *store.Store
	Loop     *eventloop.Loop
	Engines  engine.Factory
	Tiles    TileSourceBuilder
	Renderer overlay.Renderer
	Logger   *slog.Logger
	// EventLogger receives engine event-dispatch logs; Logger is used when nil.
	EventLogger dispatcher.Logger
}

// Options configures one viewer instance.
type Options struct {
	Width         float64
	Height        float64
	MinZoomLog2   float64
	MaxZoomLog2   float64
	DefaultZoom   float64
	ZoomPerScroll float64
	// Interactive enables overlay pointer input (marker clicks).
	Interactive bool
	// AsyncEvents delivers engine navigation events on the next loop tick.
	AsyncEvents bool
}

// DefaultOptions returns the single-viewer defaults.
func DefaultOptions() Options {
	return Options{
		Width:         800,
		Height:        600,
		MinZoomLog2:   -4,
		MaxZoomLog2:   8,
		DefaultZoom:   0.5,
		ZoomPerScroll: 1.2,
		Interactive:   true,
	}
}

// Viewer is a single slide viewer.
type Viewer struct {
	deps Dependencies
	opts Options

	state      State
	static     bool
	staticView core.ViewState
	slideID    string
	slide      core.SlideInfo
	engine     engine.Engine
	bridge     *bridge.Bridge

	markers    []core.Marker
	tumorAreas []core.TumorArea

	unsubscribe func()
	onPan       func()
	onZoom      func()
	onFocus     func()

	logger *slog.Logger
}

// New creates an uninitialized viewer.
func New(deps Dependencies, opts Options) (*Viewer, error) {
	if deps.Store == nil || deps.Loop == nil || deps.Renderer == nil {
		return nil, ErrMissingDeps
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("viewer size %vx%v: %w", opts.Width, opts.Height, ErrMissingDeps)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v := &Viewer{
		deps:   deps,
		opts:   opts,
		logger: logger,
		bridge: bridge.New(bridge.Options{
			MinZoomLog2: opts.MinZoomLog2,
			MaxZoomLog2: opts.MaxZoomLog2,
			DefaultZoom: opts.DefaultZoom,
			Logger:      logger,
		}),
	}
	v.bridge.OnUpdate(v.handleUpdate)
	return v, nil
}

func (v *Viewer) eventLogger() dispatcher.Logger {
	if v.deps.EventLogger != nil {
		return v.deps.EventLogger
	}
	return v.logger
}

// Open binds the viewer to a slide. A previously open slide is torn down
// first; the canonical view state restarts at the new slide's midpoint.
func (v *Viewer) Open(slideID string, info core.SlideInfo) error {
	if v.deps.Engines == nil || v.deps.Tiles == nil {
		return ErrNoTileSources
	}
	if info.Width <= 0 || info.Height <= 0 || info.LevelCount <= 0 {
		return fmt.Errorf("%w: %s is %dx%d with %d levels", ErrInvalidSlide, slideID, info.Width, info.Height, info.LevelCount)
	}

	v.teardown()

	src := v.deps.Tiles.TileSource(slideID, info)
	eng, err := v.deps.Engines(src, engine.Options{
		Width:         v.opts.Width,
		Height:        v.opts.Height,
		MinZoomLog2:   v.opts.MinZoomLog2,
		MaxZoomLog2:   v.opts.MaxZoomLog2,
		ZoomPerScroll: v.opts.ZoomPerScroll,
		Loop:          v.deps.Loop,
		AsyncEvents:   v.opts.AsyncEvents,
		Logger:        v.eventLogger(),
	})
	if err != nil {
		return fmt.Errorf("creating engine for %s: %w", slideID, err)
	}

	v.slideID = slideID
	v.slide = info
	v.engine = eng
	v.bridge.Reset(info)
	v.bindEngine(eng)
	v.bridge.Attach(eng)
	v.subscribe()
	v.state = StateLoading

	if info.NonPowerOfTwo() {
		v.logger.Warn("slide pyramid is not power-of-two, tiles may be misplaced",
			"slide", slideID, "downsamples", info.LevelDownsamples)
	}
	v.logger.Debug("engine created", "slide", slideID, "levels", info.LevelCount)
	return nil
}

// Preview shows the overlay over a static image of the given extent, with
// no tile engine. The viewer is ready immediately, centered at zoom 0.
func (v *Viewer) Preview(info core.SlideInfo) error {
	if info.Width <= 0 || info.Height <= 0 {
		return fmt.Errorf("%w: preview %dx%d", ErrInvalidSlide, info.Width, info.Height)
	}
	v.teardown()

	c := info.Center()
	v.slide = info
	v.static = true
	v.bridge.Reset(info)
	v.staticView = core.ViewState{CenterX: c.X, CenterY: c.Y, ZoomLog2: 0}
	v.subscribe()
	v.state = StateReady
	v.render()
	return nil
}

// Close destroys the engine and stops listening to the store.
func (v *Viewer) Close() {
	v.teardown()
	v.state = StateDestroyed
}

func (v *Viewer) teardown() {
	if v.engine != nil {
		v.engine.Destroy()
		v.engine = nil
	}
	v.bridge.Detach()
	v.bridge.Clear()
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
	v.static = false
	v.slideID = ""
	v.slide = core.SlideInfo{}
	v.state = StateUninitialized
}

func (v *Viewer) subscribe() {
	if v.unsubscribe != nil {
		return
	}
	v.unsubscribe = v.deps.Store.Subscribe(func(c store.Change, _ store.Snapshot) {
		switch c {
		case store.ChangeSelection, store.ChangeOverlay, store.ChangeLayer, store.ChangeReset:
			v.render()
		}
	})
}

// bindEngine registers the engine handlers. Handlers ignore events from an
// engine that has since been replaced.
func (v *Viewer) bindEngine(eng engine.Engine) {
	current := func() bool { return v.engine == eng }

	eng.AddHandler(engine.EventOpen, func(*dispatcher.Event) {
		if !current() {
			return
		}
		v.state = StateReady
		v.bridge.Sync(engine.EventOpen)
		v.render()
	})
	for _, kind := range []string{engine.EventPan, engine.EventZoom, engine.EventAnimation} {
		kind := kind
		eng.AddHandler(kind, func(*dispatcher.Event) {
			if current() {
				v.bridge.Sync(kind)
			}
		})
	}
	eng.AddHandler(engine.EventCanvasScroll, func(e *dispatcher.Event) {
		if current() {
			v.zoomAtCursor(eng, e)
		}
	})
	eng.AddHandler(engine.EventCanvasPress, func(*dispatcher.Event) {
		if current() {
			v.Focus()
		}
	})
}

// zoomAtCursor replaces the engine's wheel handling: a multiplicative zoom
// about the pointer, re-clamped to the engine constraints.
func (v *Viewer) zoomAtCursor(eng engine.Engine, e *dispatcher.Event) {
	e.PreventDefault()
	factor := math.Pow(eng.ZoomPerScroll(), e.Scroll)
	ref := eng.ScreenToViewport(e.Position)
	if !geo.IsFinite(factor) || factor <= 0 || !ref.IsFinite() {
		return
	}
	eng.ZoomBy(factor, ref)
	eng.ApplyConstraints()
}

func (v *Viewer) handleUpdate(kind string, _ core.ViewState) {
	if kind == engine.EventOpen {
		return
	}
	v.render()

	switch kind {
	case engine.EventPan:
		if v.onPan != nil {
			v.onPan()
		}
	case engine.EventZoom:
		if v.onZoom != nil {
			v.onZoom()
		}
	}
}
