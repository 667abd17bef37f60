// Package panelsync propagates pan and zoom between the panels of a grid.
//
// Pan is synchronized by delta: every other panel moves by the same
// image-space offset the triggering panel moved, measured against the
// synchronizer's own remembered center. Zoom is synchronized by value: the
// triggering panel's absolute zoom is applied to every other panel at that
// panel's own center.
//
// Applying a pan to panel B makes B's engine fire its own pan event, which
// re-enters the synchronizer. A single guard flag suppresses that feedback.
// The guard is cleared by a task posted after the propagation, so every
// event the propagation caused, whether delivered inline or on the loop,
// still sees it set.
package panelsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pathoscope/wsiview/internal/geo"
	"github.com/pathoscope/wsiview/internal/store"
	"github.com/pathoscope/wsiview/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PanelCount is the number of slots in the grid.
const PanelCount = 4

// Panel is the view capability the synchronizer drives.
type Panel interface {
	Active() bool
	Center() core.Point
	ZoomLog2() float64
	PanBy(delta core.Point)
	ZoomTo(zoomLog2 float64)
}

// Poster schedules work on the next loop tick.
type Poster interface {
	Post(task func())
}

// Synchronizer coordinates the panels of one grid.
type Synchronizer struct {
	panels [PanelCount]Panel
	loop   Poster
	logger *slog.Logger

	syncMode   bool
	syncing    bool
	lastCenter core.Point
	hasLast    bool

	// OTEL metrics
	propagations metric.Int64Counter
	suppressed   metric.Int64Counter
}

// New creates a synchronizer with empty slots and sync mode off.
func New(loop Poster, logger *slog.Logger) (*Synchronizer, error) {
	if loop == nil {
		return nil, fmt.Errorf("panelsync: nil loop")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synchronizer{loop: loop, logger: logger}

	m := meter()
	var err error
	s.propagations, err = m.Int64Counter(
		"panelsync.propagations",
		metric.WithDescription("Pan and zoom propagations to other panels"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating propagations counter: %w", err)
	}
	s.suppressed, err = m.Int64Counter(
		"panelsync.suppressed",
		metric.WithDescription("Re-entrant pan and zoom events suppressed by the guard"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating suppressed counter: %w", err)
	}
	return s, nil
}

// SetPanel fills or clears (nil) a slot.
func (s *Synchronizer) SetPanel(index int, p Panel) error {
	if index < 0 || index >= PanelCount {
		return fmt.Errorf("panel index %d out of range [0,%d)", index, PanelCount)
	}
	s.panels[index] = p
	return nil
}

// Panel returns the panel in a slot, or nil.
func (s *Synchronizer) Panel(index int) Panel {
	if index < 0 || index >= PanelCount {
		return nil
	}
	return s.panels[index]
}

// SetSyncMode turns synchronization on or off. Turning it on discards the
// remembered center so the next event sets a fresh baseline.
func (s *Synchronizer) SetSyncMode(on bool) {
	if on && !s.syncMode {
		s.hasLast = false
		s.lastCenter = core.Point{}
	}
	s.syncMode = on
	s.logger.Debug("sync mode changed", "on", on)
}

// SyncMode reports whether synchronization is on.
func (s *Synchronizer) SyncMode() bool { return s.syncMode }

// Syncing reports whether a propagation guard is active.
func (s *Synchronizer) Syncing() bool { return s.syncing }

// LastCenter returns the remembered baseline center.
func (s *Synchronizer) LastCenter() (core.Point, bool) {
	return s.lastCenter, s.hasLast
}

// Bind follows the store's sync mode. The returned function unbinds.
func (s *Synchronizer) Bind(st *store.Store) func() {
	s.SetSyncMode(st.Snapshot().SyncMode)
	return st.Subscribe(func(c store.Change, snap store.Snapshot) {
		if c == store.ChangeSyncMode || c == store.ChangeReset {
			s.SetSyncMode(snap.SyncMode)
		}
	})
}

// SetBaseline records panel index's current center as the reference for
// the next pan without propagating anything. It is a no-op while sync mode
// is off or the panel is empty or inactive.
func (s *Synchronizer) SetBaseline(index int) {
	if !s.syncMode {
		return
	}
	p := s.Panel(index)
	if p == nil || !p.Active() {
		return
	}
	if c := p.Center(); c.IsFinite() {
		s.lastCenter, s.hasLast = c, true
	}
}

// OnPan is called after panel index read a new pan position.
func (s *Synchronizer) OnPan(index int) {
	p, ok := s.trigger(index, "pan")
	if !ok {
		return
	}

	center := p.Center()
	prev, hadPrev := s.lastCenter, s.hasLast
	s.lastCenter, s.hasLast = center, true

	if !hadPrev || !prev.IsFinite() || !center.IsFinite() {
		return
	}
	if geo.NearPoint(center, prev, geo.Tolerance) {
		return
	}
	delta := center.Sub(prev)

	s.propagate(index, "pan", func(other Panel) { other.PanBy(delta) })
}

// OnZoom is called after panel index read a new zoom.
func (s *Synchronizer) OnZoom(index int) {
	p, ok := s.trigger(index, "zoom")
	if !ok {
		return
	}

	zoom := p.ZoomLog2()
	if !geo.IsFinite(zoom) {
		return
	}

	s.propagate(index, "zoom", func(other Panel) { other.ZoomTo(zoom) })

	if c := p.Center(); c.IsFinite() {
		s.lastCenter, s.hasLast = c, true
	}
}

// trigger applies the common preconditions of OnPan and OnZoom.
func (s *Synchronizer) trigger(index int, kind string) (Panel, bool) {
	if !s.syncMode {
		return nil, false
	}
	if s.syncing {
		s.suppressed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
		return nil, false
	}
	p := s.Panel(index)
	if p == nil || !p.Active() {
		return nil, false
	}
	return p, true
}

// propagate applies fn to every active panel except the trigger, holding
// the guard until the next loop tick.
func (s *Synchronizer) propagate(from int, kind string, fn func(Panel)) {
	s.syncing = true
	defer s.loop.Post(func() { s.syncing = false })

	for i, other := range s.panels {
		if i == from || other == nil || !other.Active() {
			continue
		}
		fn(other)
		s.propagations.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
	s.logger.Debug("propagated", "kind", kind, "from", from)
}
