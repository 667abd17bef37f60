package geo

import "github.com/pathoscope/wsiview/pkg/core"

// OrthoCamera is the overlay renderer's orthographic projection. FlipY is
// the one place the vertical axis convention is decided: with FlipY set,
// screen y grows downward exactly like image y.
type OrthoCamera struct {
	View   core.ViewState
	Width  float64
	Height float64
	FlipY  bool
}

// NewOrthoCamera returns a y-down camera for a viewport of the given size.
func NewOrthoCamera(view core.ViewState, width, height float64) OrthoCamera {
	return OrthoCamera{View: view, Width: width, Height: height, FlipY: true}
}

// Scale is the number of screen pixels per image pixel.
func (c OrthoCamera) Scale() float64 {
	return c.View.ImageScale()
}

// ImageToScreen projects an image-space point onto the viewport.
func (c OrthoCamera) ImageToScreen(p core.Point) core.Point {
	s := c.Scale()
	dy := (p.Y - c.View.CenterY) * s
	if !c.FlipY {
		dy = -dy
	}
	return core.Point{
		X: (p.X-c.View.CenterX)*s + c.Width/2,
		Y: dy + c.Height/2,
	}
}

// ScreenToImage is the inverse of ImageToScreen.
func (c OrthoCamera) ScreenToImage(p core.Point) core.Point {
	s := c.Scale()
	dy := (p.Y - c.Height/2) / s
	if !c.FlipY {
		dy = -dy
	}
	return core.Point{
		X: (p.X-c.Width/2)/s + c.View.CenterX,
		Y: dy + c.View.CenterY,
	}
}

// VisibleRect returns the image-space rectangle covered by the viewport.
func (c OrthoCamera) VisibleRect() core.Rect {
	s := c.Scale()
	w, h := c.Width/s, c.Height/s
	return core.Rect{X: c.View.CenterX - w/2, Y: c.View.CenterY - h/2, Width: w, Height: h}
}
