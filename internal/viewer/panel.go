package viewer

import (
	"github.com/pathoscope/wsiview/internal/engine"
	"github.com/pathoscope/wsiview/pkg/core"
)

// State returns the lifecycle phase.
func (v *Viewer) State() State { return v.state }

// SlideID returns the open slide, or "" when none is.
func (v *Viewer) SlideID() string { return v.slideID }

// Slide returns the open slide's metadata.
func (v *Viewer) Slide() core.SlideInfo { return v.slide }

// Engine returns the live engine, or nil.
func (v *Viewer) Engine() engine.Engine { return v.engine }

// Options returns the viewer configuration.
func (v *Viewer) Options() Options { return v.opts }

// ViewState returns the canonical view state.
func (v *Viewer) ViewState() core.ViewState {
	if v.static {
		return v.staticView
	}
	return v.bridge.ViewState()
}

// OnPan sets the callback run after every pan read.
func (v *Viewer) OnPan(fn func()) { v.onPan = fn }

// OnZoom sets the callback run after every zoom read.
func (v *Viewer) OnZoom(fn func()) { v.onZoom = fn }

// OnFocus sets the callback run when the viewer receives pointer input.
func (v *Viewer) OnFocus(fn func()) { v.onFocus = fn }

// Focus reports pointer input to the focus callback.
func (v *Viewer) Focus() {
	if v.onFocus != nil {
		v.onFocus()
	}
}

// Active reports whether the viewer has a ready engine that can take
// synchronized pan and zoom.
func (v *Viewer) Active() bool {
	return v.state == StateReady && v.engine != nil
}

// Center returns the canonical view center.
func (v *Viewer) Center() core.Point { return v.ViewState().Center() }

// ZoomLog2 returns the canonical zoom.
func (v *Viewer) ZoomLog2() float64 { return v.ViewState().ZoomLog2 }

// PanBy pans by a canonical delta.
func (v *Viewer) PanBy(delta core.Point) { v.bridge.PanBy(delta) }

// ZoomTo applies an absolute canonical zoom at the current center.
func (v *Viewer) ZoomTo(zoomLog2 float64) { v.bridge.ZoomTo(zoomLog2) }
