package bridge

import (
	"math"
	"testing"

	"github.com/pathoscope/wsiview/internal/dispatcher"
	"github.com/pathoscope/wsiview/internal/engine"
	"github.com/pathoscope/wsiview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine returns fixed geometry and records commands.
type stubEngine struct {
	bounds core.Rect
	zoom   float64
	center core.Point

	pans  []core.Point
	zooms []float64
}

func (s *stubEngine) VisibleBounds() core.Rect { return s.bounds }
func (s *stubEngine) ViewportToImageRect(r core.Rect) core.Rect { return r }
func (s *stubEngine) Center() core.Point { return s.center }
func (s *stubEngine) Zoom() float64 { return s.zoom }
func (s *stubEngine) ViewportToImageZoom(z float64) float64 { return z }
func (s *stubEngine) ImageToViewportZoom(z float64) float64 { return z }
func (s *stubEngine) ImageToViewportDelta(d core.Point) core.Point {
	return d
}
func (s *stubEngine) ScreenToViewport(p core.Point) core.Point { return p }
func (s *stubEngine) PanBy(d core.Point) { s.pans = append(s.pans, d) }
func (s *stubEngine) ZoomTo(z float64, _ core.Point) { s.zooms = append(s.zooms, z) }
func (s *stubEngine) ZoomBy(f float64, ref core.Point) { s.ZoomTo(s.zoom*f, ref) }
func (s *stubEngine) ApplyConstraints() {}
func (s *stubEngine) ZoomPerScroll() float64 { return 1.2 }
func (s *stubEngine) AddHandler(string, dispatcher.HandlerFunc) {}
func (s *stubEngine) Destroy() {}

func newSim(t *testing.T) *engine.Sim {
	t.Helper()
	s, err := engine.NewSim(engine.TileSource{
		Width: 2000, Height: 1000, TileSize: 256, MaxLevel: 3,
	}, engine.Options{Width: 800, Height: 600})
	require.NoError(t, err)
	return s
}

func TestBridge_SyncReadsCentroidAndZoom(t *testing.T) {
	b := New(DefaultOptions())
	b.Attach(newSim(t))

	assert.True(t, b.Sync(engine.EventOpen))

	vs := b.ViewState()
	assert.InDelta(t, 1000, vs.CenterX, 1e-9)
	assert.InDelta(t, 500, vs.CenterY, 1e-9)
	assert.InDelta(t, math.Log2(0.4), vs.ZoomLog2, 1e-12)
}

func TestBridge_SyncReportsUnchanged(t *testing.T) {
	b := New(DefaultOptions())
	b.Attach(newSim(t))

	require.True(t, b.Sync(engine.EventOpen))
	assert.False(t, b.Sync(engine.EventAnimation))
}

func TestBridge_SubToleranceJitterIsUnchanged(t *testing.T) {
	stub := &stubEngine{bounds: core.Rect{X: 1000, Y: 500, Width: 400, Height: 300}, zoom: 1}
	b := New(DefaultOptions())
	b.Attach(stub)
	require.True(t, b.Sync(engine.EventOpen))

	stub.bounds.X += 1e-7
	assert.False(t, b.Sync(engine.EventAnimation))

	stub.bounds.X += 2
	assert.True(t, b.Sync(engine.EventPan))
	assert.InDelta(t, 1202, b.ViewState().CenterX, 1e-6)
}

func TestBridge_NonFiniteReadKeepsPreviousState(t *testing.T) {
	stub := &stubEngine{bounds: core.Rect{X: 0, Y: 0, Width: 100, Height: 50}, zoom: 1}
	b := New(DefaultOptions())
	b.Attach(stub)

	notified := 0
	b.OnUpdate(func(string, core.ViewState) { notified++ })

	require.True(t, b.Sync(engine.EventOpen))
	good := b.ViewState()

	stub.bounds.X = math.NaN()
	assert.False(t, b.Sync(engine.EventAnimation))
	assert.Equal(t, good, b.ViewState())

	stub.bounds.X = 0
	stub.zoom = math.Inf(1)
	assert.False(t, b.Sync(engine.EventZoom))
	assert.Equal(t, good, b.ViewState())

	assert.Equal(t, 1, notified)
}

func TestBridge_ZeroZoomIsFlooredAndClamped(t *testing.T) {
	stub := &stubEngine{bounds: core.Rect{Width: 10, Height: 10}, zoom: 0}
	b := New(Options{MinZoomLog2: -20, MaxZoomLog2: 8})
	b.Attach(stub)

	b.Sync(engine.EventZoom)
	assert.InDelta(t, math.Log2(1e-3), b.ZoomLog2(), 1e-12)

	clamped := New(DefaultOptions())
	clamped.Attach(stub)
	clamped.Sync(engine.EventZoom)
	assert.Equal(t, -4.0, clamped.ZoomLog2())
}

func TestBridge_ReadPathClampsToMax(t *testing.T) {
	sim := newSim(t)
	b := New(DefaultOptions())
	b.Attach(sim)

	sim.ZoomTo(sim.ImageToViewportZoom(1024), sim.Center())
	b.Sync(engine.EventZoom)

	assert.Equal(t, 8.0, b.ZoomLog2())
}

func TestBridge_PanByMovesCanonicalCenterByDelta(t *testing.T) {
	b := New(DefaultOptions())
	b.Attach(newSim(t))
	b.Sync(engine.EventOpen)
	before := b.Center()

	b.PanBy(core.Point{X: 120, Y: -40})
	b.Sync(engine.EventPan)

	after := b.Center()
	assert.InDelta(t, before.X+120, after.X, 1e-9)
	assert.InDelta(t, before.Y-40, after.Y, 1e-9)
}

func TestBridge_ZoomToAnchorsAtCenter(t *testing.T) {
	b := New(DefaultOptions())
	b.Attach(newSim(t))
	b.Sync(engine.EventOpen)
	before := b.Center()

	b.ZoomTo(1)
	b.Sync(engine.EventZoom)

	assert.InDelta(t, 1, b.ZoomLog2(), 1e-12)
	assert.InDelta(t, before.X, b.Center().X, 1e-9)
	assert.InDelta(t, before.Y, b.Center().Y, 1e-9)
}

func TestBridge_NonFiniteWritesIgnored(t *testing.T) {
	stub := &stubEngine{zoom: 1}
	b := New(DefaultOptions())
	b.Attach(stub)

	b.PanBy(core.Point{X: math.NaN(), Y: 1})
	b.ZoomTo(math.Inf(-1))

	stub.center = core.Point{X: math.NaN()}
	b.ZoomTo(1)

	assert.Empty(t, stub.pans)
	assert.Empty(t, stub.zooms)
}

func TestBridge_DetachedIsInert(t *testing.T) {
	b := New(DefaultOptions())

	assert.False(t, b.Sync(engine.EventPan))
	assert.NotPanics(t, func() {
		b.PanBy(core.Point{X: 1})
		b.ZoomTo(1)
	})
	assert.False(t, b.Attached())
}

func TestBridge_ResetCentersOnSlide(t *testing.T) {
	b := New(DefaultOptions())
	b.Attach(newSim(t))
	b.Sync(engine.EventOpen)

	b.Reset(core.SlideInfo{Width: 1000, Height: 600})

	assert.Equal(t, core.ViewState{CenterX: 500, CenterY: 300, ZoomLog2: -1}, b.ViewState())
}

func TestBridge_ClearForgetsState(t *testing.T) {
	b := New(DefaultOptions())
	b.Attach(newSim(t))
	require.True(t, b.Sync(engine.EventOpen))

	b.Detach()
	b.Clear()

	assert.Equal(t, core.ViewState{}, b.ViewState())
}
