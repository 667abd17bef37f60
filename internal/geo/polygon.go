package geo

import (
	"encoding/json"
	"fmt"

	"github.com/pathoscope/wsiview/pkg/core"
)

// ParsePolygon parses a JSON array of coordinates into a core.Polygon.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePolygon(input string) (core.Polygon, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}

	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: no vertices", ErrInvalidPolygon)
	}

	polygon := make(core.Polygon, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("%w: coordinate %d has insufficient values", ErrInvalidPolygon, i)
		}
		polygon[i] = core.Point{X: coord[0], Y: coord[1]}
	}

	return polygon, nil
}

// Bounds returns the axis-aligned bounding box of the polygon.
func Bounds(polygon core.Polygon) core.Rect {
	if len(polygon) == 0 {
		return core.Rect{}
	}
	minX, minY := polygon[0].X, polygon[0].Y
	maxX, maxY := minX, minY
	for _, v := range polygon[1:] {
		minX, maxX = min(minX, v.X), max(maxX, v.X)
		minY, maxY = min(minY, v.Y), max(maxY, v.Y)
	}
	return core.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
