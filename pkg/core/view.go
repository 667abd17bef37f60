// pkg/core/view.go
package core

import "math"

// ViewState is where a viewer is looking: the image-space center and the
// zoom as log2 of the image scale (screen pixels per image pixel).
type ViewState struct {
	CenterX  float64 `json:"centerX"`
	CenterY  float64 `json:"centerY"`
	ZoomLog2 float64 `json:"zoomLog2"`
}

// Center returns the view center as a point.
func (v ViewState) Center() Point {
	return Point{X: v.CenterX, Y: v.CenterY}
}

// ImageScale returns 2^ZoomLog2.
func (v ViewState) ImageScale() float64 {
	return math.Exp2(v.ZoomLog2)
}

// IsFinite reports whether every component is finite.
func (v ViewState) IsFinite() bool {
	return v.Center().IsFinite() && !math.IsNaN(v.ZoomLog2) && !math.IsInf(v.ZoomLog2, 0)
}
