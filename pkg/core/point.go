// pkg/core/point.go
package core

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a position in image-pixel space (level 0, origin top-left, y down).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns p-o.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Scale multiplies both components by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// IsFinite reports whether both components are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the centroid of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Polygon is an ordered vertex list. It is encoded as [[x,y],...] on the wire.
type Polygon []Point

// MarshalJSON encodes the polygon as an array of [x,y] pairs.
func (p Polygon) MarshalJSON() ([]byte, error) {
	pairs := make([][2]float64, len(p))
	for i, v := range p {
		pairs[i] = [2]float64{v.X, v.Y}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes an array of [x,y] pairs.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	out := make(Polygon, len(pairs))
	for i, pair := range pairs {
		if len(pair) < 2 {
			return fmt.Errorf("vertex %d has %d values, need 2", i, len(pair))
		}
		out[i] = Point{X: pair[0], Y: pair[1]}
	}
	*p = out
	return nil
}
