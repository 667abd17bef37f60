package quadview

import (
	"testing"

	"github.com/pathoscope/wsiview/internal/engine"
	"github.com/pathoscope/wsiview/internal/eventloop"
	"github.com/pathoscope/wsiview/internal/overlay"
	"github.com/pathoscope/wsiview/internal/store"
	"github.com/pathoscope/wsiview/internal/viewer"
	"github.com/pathoscope/wsiview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTiles struct{}

func (stubTiles) TileSource(_ string, info core.SlideInfo) engine.TileSource {
	return engine.TileSource{Width: info.Width, Height: info.Height, TileSize: info.TileSize, MaxLevel: info.MaxLevel()}
}

var slides = []core.SlideInfo{
	{Width: 2000, Height: 1000, LevelCount: 4, TileSize: 256},
	{Width: 1000, Height: 800, LevelCount: 3, TileSize: 256},
	{Width: 4000, Height: 4000, LevelCount: 5, TileSize: 512},
	{Width: 2000, Height: 1000, LevelCount: 4, TileSize: 256},
}

type viewEvent struct {
	panel   int
	slideID string
	kind    string
	view    core.ViewState
}

type recordingObserver struct {
	events []viewEvent
}

func (o *recordingObserver) ViewChanged(panel int, slideID, kind string, view core.ViewState) {
	o.events = append(o.events, viewEvent{panel, slideID, kind, view})
}

type gridFixture struct {
	loop     *eventloop.Loop
	store    *store.Store
	grid     *Grid
	observer *recordingObserver
}

func newGridFixture(t *testing.T, async bool) *gridFixture {
	t.Helper()
	f := &gridFixture{loop: eventloop.New(nil), store: store.New(), observer: &recordingObserver{}}

	opts := PanelOptions()
	opts.AsyncEvents = async
	g, err := New(Dependencies{
		Store:       f.store,
		Loop:        f.loop,
		Engines:     engine.NewSimFactory(),
		Tiles:       stubTiles{},
		NewRenderer: func(int) overlay.Renderer { return &overlay.Recorder{} },
		Observer:    f.observer,
	}, opts)
	require.NoError(t, err)

	for i, info := range slides {
		require.NoError(t, g.SetSlot(i, "slide", info))
	}
	f.loop.RunPending()
	f.grid = g
	return f
}

func (f *gridFixture) sim(t *testing.T, i int) *engine.Sim {
	t.Helper()
	v, err := f.grid.Viewer(i)
	require.NoError(t, err)
	return v.Engine().(*engine.Sim)
}

func (f *gridFixture) centers(t *testing.T) []core.Point {
	t.Helper()
	out := make([]core.Point, 4)
	for i := range out {
		v, _ := f.grid.Viewer(i)
		out[i] = v.Center()
	}
	return out
}

func TestGrid_SyncedPanMovesOthersByEqualDelta(t *testing.T) {
	for _, async := range []bool{false, true} {
		f := newGridFixture(t, async)
		f.store.SetSyncMode(true)

		// The first pan after enabling sync only records the baseline.
		f.sim(t, 0).PanBy(core.Point{X: 0.01})
		f.loop.RunPending()
		before := f.centers(t)

		// 0.05 of a 2000px-wide slide is 100 image pixels.
		f.sim(t, 0).PanBy(core.Point{X: 0.05, Y: 0.025})
		f.loop.RunPending()
		after := f.centers(t)

		assert.InDelta(t, before[0].X+100, after[0].X, 1e-6, "async=%v", async)
		assert.InDelta(t, before[0].Y+50, after[0].Y, 1e-6, "async=%v", async)
		for i := 1; i < 4; i++ {
			assert.InDelta(t, before[i].X+100, after[i].X, 1e-6, "panel %d async=%v", i, async)
			assert.InDelta(t, before[i].Y+50, after[i].Y, 1e-6, "panel %d async=%v", i, async)
		}
		assert.False(t, f.grid.Synchronizer().Syncing())
	}
}

func TestGrid_SyncOffLeavesOthersAlone(t *testing.T) {
	f := newGridFixture(t, false)
	before := f.centers(t)

	f.sim(t, 1).PanBy(core.Point{X: 0.1})
	f.sim(t, 1).PanBy(core.Point{X: 0.1})
	f.loop.RunPending()
	after := f.centers(t)

	assert.NotEqual(t, before[1], after[1])
	for _, i := range []int{0, 2, 3} {
		assert.Equal(t, before[i], after[i])
	}
}

func TestGrid_SyncedZoomAppliesAbsoluteZoom(t *testing.T) {
	for _, async := range []bool{false, true} {
		f := newGridFixture(t, async)
		f.store.SetSyncMode(true)
		before := f.centers(t)

		f.sim(t, 2).Scroll(3, core.Point{X: 200, Y: 130})
		f.loop.RunPending()

		src, _ := f.grid.Viewer(2)
		for _, i := range []int{0, 1, 3} {
			v, _ := f.grid.Viewer(i)
			assert.InDelta(t, src.ZoomLog2(), v.ZoomLog2(), 1e-9, "panel %d async=%v", i, async)
			assert.InDelta(t, before[i].X, v.Center().X, 1e-6, "zoom anchors at each panel's own center")
			assert.InDelta(t, before[i].Y, v.Center().Y, 1e-6)
		}
	}
}

func TestGrid_ClearedSlotIsSkipped(t *testing.T) {
	f := newGridFixture(t, false)
	f.store.SetSyncMode(true)
	require.NoError(t, f.grid.ClearSlot(3))

	f.sim(t, 0).PanBy(core.Point{X: 0.01})
	f.sim(t, 0).PanBy(core.Point{X: 0.01})
	f.loop.RunPending()

	v, _ := f.grid.Viewer(3)
	assert.Equal(t, viewer.StateDestroyed, v.State())
	assert.False(t, v.Active())
}

func TestGrid_FocusAndScale(t *testing.T) {
	f := newGridFixture(t, false)

	assert.True(t, f.grid.ShowScale(0))

	f.sim(t, 2).Press(core.Point{X: 5, Y: 5})

	assert.Equal(t, 2, f.store.Snapshot().FocusedPanel)
	assert.True(t, f.grid.ShowScale(2))
	assert.False(t, f.grid.ShowScale(0))
	assert.False(t, f.grid.ShowScale(9))
}

func TestGrid_SharedSelection(t *testing.T) {
	f := newGridFixture(t, false)
	f.grid.SetAnnotations([]core.Marker{core.NewPointMarker("p1", 1000, 500, "")}, nil)

	v0, _ := f.grid.Viewer(0)
	screen := core.Point{X: 200, Y: 130} // panel 0 is centered on (1000, 500)
	_, ok := v0.Click(screen)
	require.True(t, ok)

	v3, _ := f.grid.Viewer(3)
	layers := v3.Layers()
	require.NotEmpty(t, layers)
	assert.True(t, layers[len(layers)-1].Items[0].Selected, "selection is shared by every panel")
}

func TestGrid_SlotErrors(t *testing.T) {
	f := newGridFixture(t, false)

	assert.ErrorIs(t, f.grid.SetSlot(4, "x", slides[0]), ErrSlotRange)
	assert.ErrorIs(t, f.grid.ClearSlot(-1), ErrSlotRange)
	assert.Error(t, f.grid.SetSlot(0, "x", core.SlideInfo{}))
	assert.Len(t, f.grid.Status(), 4)
}

func TestGrid_Close(t *testing.T) {
	f := newGridFixture(t, false)
	f.grid.Close()

	for i := 0; i < 4; i++ {
		v, _ := f.grid.Viewer(i)
		assert.Equal(t, viewer.StateDestroyed, v.State())
	}

	f.store.SetSyncMode(true)
	assert.False(t, f.grid.Synchronizer().SyncMode())
}

func TestGrid_ObserverSeesPanelViews(t *testing.T) {
	f := newGridFixture(t, false)
	f.observer.events = nil

	f.sim(t, 1).PanBy(core.Point{X: 0.1})
	f.loop.RunPending()

	require.NotEmpty(t, f.observer.events)
	last := f.observer.events[len(f.observer.events)-1]
	v, err := f.grid.Viewer(1)
	require.NoError(t, err)
	assert.Equal(t, 1, last.panel)
	assert.Equal(t, "slide", last.slideID)
	assert.Equal(t, "pan", last.kind)
	assert.Equal(t, v.ViewState(), last.view)

	f.observer.events = nil
	f.sim(t, 2).ZoomBy(2, f.sim(t, 2).Center())
	f.loop.RunPending()

	kinds := map[string]bool{}
	for _, e := range f.observer.events {
		assert.Equal(t, 2, e.panel)
		kinds[e.kind] = true
	}
	assert.True(t, kinds["zoom"])
}
