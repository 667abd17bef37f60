package engine

import "math"

// Tile addresses one tile of the pyramid at an engine level.
type Tile struct {
	Level int
	X, Y  int
	URL   string
}

// Level returns the pyramid level the engine draws at its current zoom: the
// lowest level whose resolution is at least the on-screen image zoom.
func (s *Sim) Level() int {
	imageZoom := s.ViewportToImageZoom(s.zoom)
	level := s.source.MaxLevel + int(math.Ceil(math.Log2(imageZoom)))
	return max(s.source.MinLevel, min(s.source.MaxLevel, level))
}

// VisibleTiles lists the tiles covering the current viewport, row by row.
func (s *Sim) VisibleTiles() []Tile {
	level := s.Level()
	scale := math.Exp2(float64(level - s.source.MaxLevel))
	ts := float64(s.source.TileSize)

	cols := int(math.Ceil(math.Ceil(float64(s.source.Width)*scale) / ts))
	rows := int(math.Ceil(math.Ceil(float64(s.source.Height)*scale) / ts))

	r := s.ViewportToImageRect(s.VisibleBounds())
	if r.X+r.Width <= 0 || r.Y+r.Height <= 0 ||
		r.X >= float64(s.source.Width) || r.Y >= float64(s.source.Height) {
		return nil
	}

	x0 := clampIndex(r.X*scale/ts, cols)
	x1 := clampIndex((r.X+r.Width)*scale/ts, cols)
	y0 := clampIndex(r.Y*scale/ts, rows)
	y1 := clampIndex((r.Y+r.Height)*scale/ts, rows)

	tiles := make([]Tile, 0, (x1-x0+1)*(y1-y0+1))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			t := Tile{Level: level, X: x, Y: y}
			if s.source.TileURL != nil {
				t.URL = s.source.TileURL(level, x, y)
			}
			tiles = append(tiles, t)
		}
	}
	return tiles
}

func clampIndex(v float64, n int) int {
	return max(0, min(n-1, int(math.Floor(v))))
}
