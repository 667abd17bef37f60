// Package quadview arranges four independent viewers in a grid with shared
// selection and optional synchronized navigation.
package quadview

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pathoscope/wsiview/internal/dispatcher"
	"github.com/pathoscope/wsiview/internal/engine"
	"github.com/pathoscope/wsiview/internal/eventloop"
	"github.com/pathoscope/wsiview/internal/overlay"
	"github.com/pathoscope/wsiview/internal/panelsync"
	"github.com/pathoscope/wsiview/internal/store"
	"github.com/pathoscope/wsiview/internal/viewer"
	"github.com/pathoscope/wsiview/pkg/core"
)

var ErrSlotRange = errors.New("panel slot out of range")

// Dependencies holds the collaborators shared by every panel.
type Dependencies struct {
	Store   *store.Store
	Loop    *eventloop.Loop
	Engines engine.Factory
	Tiles   viewer.TileSourceBuilder
	// NewRenderer returns the overlay renderer of one panel.
	NewRenderer func(index int) overlay.Renderer
	// Observer, when set, sees every panel's view after a pan or zoom.
	Observer    ViewObserver
	Logger      *slog.Logger
	EventLogger dispatcher.Logger
}

// ViewObserver receives panel view updates.
type ViewObserver interface {
	ViewChanged(panel int, slideID, kind string, view core.ViewState)
}

// PanelOptions returns the viewer defaults for a grid panel.
func PanelOptions() viewer.Options {
	opts := viewer.DefaultOptions()
	opts.Width, opts.Height = 400, 260
	return opts
}

// Grid is a 2x2 multi-slide view.
type Grid struct {
	viewers  [panelsync.PanelCount]*viewer.Viewer
	sync     *panelsync.Synchronizer
	store    *store.Store
	unbind   func()
	observer ViewObserver
	logger   *slog.Logger
}

// New builds a grid with four empty panels.
func New(deps Dependencies, opts viewer.Options) (*Grid, error) {
	if deps.Store == nil || deps.Loop == nil || deps.NewRenderer == nil {
		return nil, viewer.ErrMissingDeps
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sync, err := panelsync.New(deps.Loop, logger)
	if err != nil {
		return nil, fmt.Errorf("creating synchronizer: %w", err)
	}

	g := &Grid{sync: sync, store: deps.Store, observer: deps.Observer, logger: logger}
	for i := range g.viewers {
		v, err := viewer.New(viewer.Dependencies{
			Store:       deps.Store,
			Loop:        deps.Loop,
			Engines:     deps.Engines,
			Tiles:       deps.Tiles,
			Renderer:    deps.NewRenderer(i),
			Logger:      logger.With("panel", i),
			EventLogger: deps.EventLogger,
		}, opts)
		if err != nil {
			return nil, fmt.Errorf("creating panel %d: %w", i, err)
		}

		index := i
		v.OnPan(func() {
			sync.OnPan(index)
			g.observe(index, "pan")
		})
		v.OnZoom(func() {
			sync.OnZoom(index)
			g.observe(index, "zoom")
		})
		v.OnFocus(func() { deps.Store.SetFocusedPanel(index) })

		if err := sync.SetPanel(i, v); err != nil {
			return nil, err
		}
		g.viewers[i] = v
	}
	g.unbind = sync.Bind(deps.Store)
	return g, nil
}

func (g *Grid) observe(index int, kind string) {
	if g.observer == nil {
		return
	}
	v := g.viewers[index]
	g.observer.ViewChanged(index, v.SlideID(), kind, v.ViewState())
}

// Viewer returns the viewer of a slot.
func (g *Grid) Viewer(index int) (*viewer.Viewer, error) {
	if index < 0 || index >= len(g.viewers) {
		return nil, fmt.Errorf("%w: %d", ErrSlotRange, index)
	}
	return g.viewers[index], nil
}

// Synchronizer exposes the grid's synchronizer.
func (g *Grid) Synchronizer() *panelsync.Synchronizer { return g.sync }

// SetSlot opens a slide in one panel, replacing what it showed.
func (g *Grid) SetSlot(index int, slideID string, info core.SlideInfo) error {
	v, err := g.Viewer(index)
	if err != nil {
		return err
	}
	if err := v.Open(slideID, info); err != nil {
		return fmt.Errorf("panel %d: %w", index, err)
	}
	g.logger.Info("panel slide set", "panel", index, "slide", slideID)
	return nil
}

// ClearSlot closes one panel.
func (g *Grid) ClearSlot(index int) error {
	v, err := g.Viewer(index)
	if err != nil {
		return err
	}
	v.Close()
	return nil
}

// SetAnnotations gives every panel the same annotation collections.
func (g *Grid) SetAnnotations(markers []core.Marker, tumorAreas []core.TumorArea) {
	for _, v := range g.viewers {
		v.SetAnnotations(markers, tumorAreas)
	}
}

// ShowScale reports whether a panel shows its scale readout: only the
// focused panel does, and only once it is ready.
func (g *Grid) ShowScale(index int) bool {
	v, err := g.Viewer(index)
	if err != nil {
		return false
	}
	return g.store.Snapshot().FocusedPanel == index && v.State() == viewer.StateReady
}

// Status returns the HUD line of every panel.
func (g *Grid) Status() []viewer.Status {
	out := make([]viewer.Status, len(g.viewers))
	for i, v := range g.viewers {
		out[i] = v.Status()
	}
	return out
}

// Close tears down every panel and detaches from the store.
func (g *Grid) Close() {
	if g.unbind != nil {
		g.unbind()
		g.unbind = nil
	}
	for _, v := range g.viewers {
		v.Close()
	}
}
