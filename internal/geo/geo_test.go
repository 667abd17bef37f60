package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/pathoscope/wsiview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosePolygon_OpenPolygonIsClosed(t *testing.T) {
	open := core.Polygon{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}

	closed := ClosePolygon(open)

	require.Len(t, closed, 4)
	assert.Equal(t, open[0], closed[3])
	assert.Len(t, open, 3, "input must not be modified")
}

func TestClosePolygon_Idempotent(t *testing.T) {
	polygons := []core.Polygon{
		{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}},
		{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 1}, {X: 1, Y: 2}},
		{{X: -5, Y: -5}, {X: 5, Y: -5}, {X: 5, Y: 5}, {X: -5, Y: 5}},
	}

	for _, p := range polygons {
		once := ClosePolygon(p)
		twice := ClosePolygon(once)
		assert.Equal(t, once, twice)
	}
}

func TestClosePolygon_AlreadyClosedUnchanged(t *testing.T) {
	closed := core.Polygon{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 1}, {X: 1, Y: 2}}
	assert.Equal(t, closed, ClosePolygon(closed))
}

func TestClosePolygon_FewerThanThreeVerticesNoOp(t *testing.T) {
	cases := []core.Polygon{
		nil,
		{},
		{{X: 1, Y: 1}},
		{{X: 1, Y: 1}, {X: 2, Y: 2}},
	}
	for _, p := range cases {
		assert.Equal(t, p, ClosePolygon(p))
	}
}

func TestBoxPolygon(t *testing.T) {
	got := BoxPolygon(10, 20, 5, 8)

	want := core.Polygon{
		{X: 10, Y: 20},
		{X: 15, Y: 20},
		{X: 15, Y: 28},
		{X: 10, Y: 28},
		{X: 10, Y: 20},
	}
	assert.Equal(t, want, got)
}

func TestZoomLog2_RoundTrip(t *testing.T) {
	for _, z := range []float64{0.001, 0.01, 0.125, 0.5, 1, 2, 3.7, 10, 64, 100} {
		got := ImageScale(ZoomLog2(z))
		assert.True(t, Near(got, z, 1e-9), "round trip of %v gave %v", z, got)
	}
}

func TestNearPoint(t *testing.T) {
	a := core.Point{X: 2048, Y: 1536}

	assert.True(t, NearPoint(a, core.Point{X: 2048 + 1e-7, Y: 1536}, Tolerance))
	assert.False(t, NearPoint(a, core.Point{X: 2048.01, Y: 1536}, Tolerance))
	assert.True(t, NearPoint(core.Point{}, core.Point{X: 1e-12, Y: -1e-12}, Tolerance))
}

func TestNearView(t *testing.T) {
	a := core.ViewState{CenterX: 100, CenterY: 50, ZoomLog2: -1}

	assert.True(t, NearView(a, core.ViewState{CenterX: 100, CenterY: 50, ZoomLog2: -1 + 1e-13}, Tolerance))
	assert.False(t, NearView(a, core.ViewState{CenterX: 100, CenterY: 50, ZoomLog2: -0.9}, Tolerance))
	assert.False(t, NearView(a, core.ViewState{CenterX: 101, CenterY: 50, ZoomLog2: -1}, Tolerance))
}

func TestZoomLog2_FloorsInvalidInput(t *testing.T) {
	for _, z := range []float64{0, -1, -1e9, 1e-9, math.NaN(), math.Inf(-1)} {
		got := ZoomLog2(z)
		assert.True(t, IsFinite(got), "ZoomLog2(%v) = %v", z, got)
		assert.InDelta(t, math.Log2(ZoomEpsilon), got, 1e-12)
	}
}

func TestClampZoom(t *testing.T) {
	assert.Equal(t, -4.0, ClampZoom(-10, -4, 8))
	assert.Equal(t, 8.0, ClampZoom(12, -4, 8))
	assert.Equal(t, 1.5, ClampZoom(1.5, -4, 8))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(1, 2, 3))
	assert.True(t, IsFinite())
	assert.False(t, IsFinite(1, math.NaN()))
	assert.False(t, IsFinite(math.Inf(1)))
}

func TestContainsPoint_Box(t *testing.T) {
	box := BoxPolygon(10, 20, 5, 8)

	assert.True(t, ContainsPoint(box, core.Point{X: 12, Y: 24}))
	assert.True(t, ContainsPoint(box, core.Point{X: 10, Y: 20}), "boundary counts as a hit")
	assert.False(t, ContainsPoint(box, core.Point{X: 9, Y: 24}))
	assert.False(t, ContainsPoint(box, core.Point{X: 12, Y: 29}))
}

func TestContainsPoint_OpenTriangle(t *testing.T) {
	tri := core.Polygon{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 100}}

	assert.True(t, ContainsPoint(tri, core.Point{X: 10, Y: 10}))
	assert.False(t, ContainsPoint(tri, core.Point{X: 80, Y: 80}))
}

func TestContainsPoint_Degenerate(t *testing.T) {
	assert.False(t, ContainsPoint(core.Polygon{{X: 0, Y: 0}, {X: 1, Y: 1}}, core.Point{X: 0, Y: 0}))
	assert.False(t, ContainsPoint(BoxPolygon(0, 0, 10, 10), core.Point{X: math.NaN(), Y: 1}))
}

func TestContainsPoint_SelfIntersectingRingRejected(t *testing.T) {
	bowtie := core.Polygon{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 10}}

	assert.False(t, ContainsPoint(bowtie, core.Point{X: 8, Y: 5}))
	assert.False(t, ContainsPoint(bowtie, core.Point{X: 2, Y: 5}))
}

func TestParsePolygon_Valid(t *testing.T) {
	polygon, err := ParsePolygon("[[1,2],[3.5,4],[5,6]]")

	require.NoError(t, err)
	assert.Equal(t, core.Polygon{{X: 1, Y: 2}, {X: 3.5, Y: 4}, {X: 5, Y: 6}}, polygon)
}

func TestParsePolygon_Invalid(t *testing.T) {
	for _, input := range []string{"", "not json", "[]", "[[1]]", "[[1,2],[3]]"} {
		_, err := ParsePolygon(input)
		require.Error(t, err, "input %q", input)
		assert.True(t, errors.Is(err, ErrInvalidPolygon))
	}
}

func TestBounds(t *testing.T) {
	r := Bounds(core.Polygon{{X: 5, Y: 1}, {X: -2, Y: 7}, {X: 3, Y: 3}})
	assert.Equal(t, core.Rect{X: -2, Y: 1, Width: 7, Height: 6}, r)
	assert.Equal(t, core.Rect{}, Bounds(nil))
}

func TestOrthoCamera_CenterMapsToViewportMiddle(t *testing.T) {
	cam := NewOrthoCamera(core.ViewState{CenterX: 500, CenterY: 300, ZoomLog2: 1}, 800, 600)

	p := cam.ImageToScreen(core.Point{X: 500, Y: 300})
	assert.Equal(t, core.Point{X: 400, Y: 300}, p)

	below := cam.ImageToScreen(core.Point{X: 500, Y: 310})
	assert.Equal(t, 320.0, below.Y, "y grows downward on screen")
}

func TestOrthoCamera_RoundTrip(t *testing.T) {
	cam := NewOrthoCamera(core.ViewState{CenterX: 1234, CenterY: 567, ZoomLog2: -2.5}, 400, 260)

	for _, p := range []core.Point{{X: 0, Y: 0}, {X: 1234, Y: 567}, {X: -50, Y: 9000}} {
		back := cam.ScreenToImage(cam.ImageToScreen(p))
		assert.InDelta(t, p.X, back.X, 1e-9)
		assert.InDelta(t, p.Y, back.Y, 1e-9)
	}
}

func TestOrthoCamera_VisibleRect(t *testing.T) {
	cam := NewOrthoCamera(core.ViewState{CenterX: 100, CenterY: 100, ZoomLog2: 1}, 800, 600)
	assert.Equal(t, core.Rect{X: -100, Y: -50, Width: 400, Height: 300}, cam.VisibleRect())
}
