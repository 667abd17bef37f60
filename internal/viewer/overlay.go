package viewer

import (
	"fmt"
	"math"

	"github.com/pathoscope/wsiview/internal/geo"
	"github.com/pathoscope/wsiview/internal/overlay"
	"github.com/pathoscope/wsiview/internal/store"
	"github.com/pathoscope/wsiview/pkg/core"
)

// SetAnnotations replaces the marker and tumor-area collections drawn over
// the slide.
func (v *Viewer) SetAnnotations(markers []core.Marker, tumorAreas []core.TumorArea) {
	v.markers = markers
	v.tumorAreas = tumorAreas
	v.render()
}

// Layers builds the overlay layers for the current store state. It is
// empty until the viewer is ready.
func (v *Viewer) Layers() []overlay.Layer {
	if v.state != StateReady {
		return nil
	}
	snap := v.deps.Store.Snapshot()
	return overlay.Build(overlay.Input{
		Markers:    v.markers,
		TumorAreas: v.tumorAreas,
		Visibility: visibility(snap),
		SelectedID: snap.SelectedID,
		Selector:   v.deps.Store,
	})
}

func visibility(snap store.Snapshot) overlay.Visibility {
	return overlay.Visibility{
		Overlay:      snap.OverlayVisible,
		TumorAreas:   snap.TumorAreasVisible,
		BoxMarkers:   snap.BoxMarkersVisible,
		PointMarkers: snap.PointMarkersVisible,
	}
}

// Render draws the overlay for the current view state.
func (v *Viewer) Render() error {
	if v.state != StateReady {
		return ErrNotReady
	}
	return v.deps.Renderer.Render(overlay.Frame{
		View:          v.ViewState(),
		Width:         v.opts.Width,
		Height:        v.opts.Height,
		Layers:        v.Layers(),
		PointerEvents: v.opts.Interactive,
	})
}

// render is Render for event handlers: nothing crosses the loop boundary.
func (v *Viewer) render() {
	if v.state != StateReady {
		return
	}
	if err := v.Render(); err != nil {
		v.logger.Error("overlay render failed", "slide", v.slideID, "error", err)
	}
}

// Click hit-tests a screen position against the overlay and runs the
// click callback of the top-most item. It does nothing when pointer input
// is disabled or the viewer is not ready.
func (v *Viewer) Click(screen core.Point) (overlay.Hit, bool) {
	if !v.opts.Interactive || v.state != StateReady {
		return overlay.Hit{}, false
	}
	v.Focus()
	cam := geo.NewOrthoCamera(v.ViewState(), v.opts.Width, v.opts.Height)
	return overlay.Click(v.Layers(), cam.ScreenToImage(screen))
}

// Status is the HUD line of a viewer.
type Status struct {
	State   State
	SlideID string
	Zoom    float64
	CenterX int
	CenterY int
}

func (s Status) String() string {
	return fmt.Sprintf("%s zoom %.2fx center (%d, %d)", s.State, s.Zoom, s.CenterX, s.CenterY)
}

// Status reports the current zoom factor and rounded center.
func (v *Viewer) Status() Status {
	vs := v.ViewState()
	return Status{
		State:   v.state,
		SlideID: v.slideID,
		Zoom:    vs.ImageScale(),
		CenterX: int(math.Round(vs.CenterX)),
		CenterY: int(math.Round(vs.CenterY)),
	}
}
