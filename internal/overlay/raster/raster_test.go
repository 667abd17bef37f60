package raster

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/pathoscope/wsiview/internal/overlay"
	"github.com/pathoscope/wsiview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame() overlay.Frame {
	layers := overlay.Build(overlay.Input{
		Markers: []core.Marker{
			core.NewBoxMarker("b1", 40, 40, 20, 20, "box"),
			core.NewPointMarker("p1", 100, 100, "point"),
		},
		TumorAreas: []core.TumorArea{
			{ID: "t1", Polygon: core.Polygon{{X: 0, Y: 0}, {X: 150, Y: 0}, {X: 150, Y: 30}}},
		},
		Visibility: overlay.AllVisible(),
	})
	return overlay.Frame{
		View:   core.ViewState{CenterX: 80, CenterY: 80, ZoomLog2: 0},
		Width:  160,
		Height: 160,
		Layers: layers,
	}
}

func TestRenderer_DrawsMarkers(t *testing.T) {
	r := New()
	defer r.Close()

	require.NoError(t, r.Render(testFrame()))

	img := r.Image()
	require.NotNil(t, img)
	assert.Equal(t, 160, img.Bounds().Dx())

	// Box center and point center are filled, a far corner is not.
	_, _, _, boxAlpha := img.At(50, 50).RGBA()
	_, _, _, pointAlpha := img.At(100, 100).RGBA()
	_, _, _, emptyAlpha := img.At(5, 150).RGBA()
	assert.NotZero(t, boxAlpha)
	assert.NotZero(t, pointAlpha)
	assert.Zero(t, emptyAlpha)
}

func TestRenderer_WritePNG(t *testing.T) {
	r := New(WithBackground(0, 0, 0, 1))
	defer r.Close()

	var buf bytes.Buffer
	assert.Error(t, r.WritePNG(&buf), "nothing rendered yet")

	require.NoError(t, r.Render(testFrame()))
	require.NoError(t, r.WritePNG(&buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dy())
	assert.Equal(t, 1, r.Frames())
}

func TestRenderer_RejectsEmptyFrame(t *testing.T) {
	r := New()
	assert.Error(t, r.Render(overlay.Frame{}))
	assert.Nil(t, r.Image())
	assert.NoError(t, r.Close())
}
