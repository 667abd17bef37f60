// pkg/core/slide.go
package core

import "math"

// SlideItem is one entry of the tile server's slide listing.
type SlideItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SlideInfo describes the level-0 extents and pyramid shape of a slide.
type SlideInfo struct {
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	LevelCount       int       `json:"levelCount"`
	TileSize         int       `json:"tileSize"`
	LevelDimensions  [][2]int  `json:"levelDimensions,omitempty"`
	LevelDownsamples []float64 `json:"levelDownsamples,omitempty"`
}

// Center returns the midpoint of the slide in image-pixel space.
func (s SlideInfo) Center() Point {
	return Point{X: float64(s.Width) / 2, Y: float64(s.Height) / 2}
}

// MaxLevel is the highest engine level, i.e. the full-resolution one.
func (s SlideInfo) MaxLevel() int {
	return s.LevelCount - 1
}

// NonPowerOfTwo reports whether the server's downsample factors diverge from
// the 2^n pyramid a deep-zoom engine assumes. Missing data counts as regular.
func (s SlideInfo) NonPowerOfTwo() bool {
	for i, d := range s.LevelDownsamples {
		want := math.Pow(2, float64(i))
		if math.Abs(d-want) > want*0.01 {
			return true
		}
	}
	return false
}
