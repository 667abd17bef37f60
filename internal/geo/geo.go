package geo

import (
	"errors"
	"math"

	"github.com/pathoscope/wsiview/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gonum.org/v1/gonum/floats/scalar"
)

// IMAGE SPACE
// Every marker, polygon and view state is expressed in level-0 image pixels:
// origin top-left, x to the right, y downward. Engine-native spaces are
// converted at the viewport bridge; nothing else sees them.

// ZoomEpsilon floors image zoom before taking its log so the stored
// zoomLog2 is always finite.
const ZoomEpsilon = 1e-3

// ErrInvalidPolygon is returned when polygon input cannot be parsed
var ErrInvalidPolygon = errors.New("invalid polygon provided")

// IsFinite reports whether every value is a finite number.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Tolerance is the agreement threshold for canonical coordinates and zooms.
const Tolerance = 1e-9

// Near reports whether a and b agree within tol, absolutely or relatively.
func Near(a, b, tol float64) bool {
	return scalar.EqualWithinAbsOrRel(a, b, tol, tol)
}

// NearPoint reports whether both coordinates of a and b agree within tol.
func NearPoint(a, b core.Point, tol float64) bool {
	return Near(a.X, b.X, tol) && Near(a.Y, b.Y, tol)
}

// NearView reports whether two view states agree within tol.
func NearView(a, b core.ViewState, tol float64) bool {
	return NearPoint(a.Center(), b.Center(), tol) && Near(a.ZoomLog2, b.ZoomLog2, tol)
}

// ZoomLog2 converts an image zoom (screen px per image px) to log2 space.
// Zero, negative and non-finite zooms are floored to ZoomEpsilon.
func ZoomLog2(imageZoom float64) float64 {
	if !IsFinite(imageZoom) || imageZoom < ZoomEpsilon {
		imageZoom = ZoomEpsilon
	}
	return math.Log2(imageZoom)
}

// ImageScale converts a log2 zoom back to an image zoom.
func ImageScale(zoomLog2 float64) float64 {
	return math.Exp2(zoomLog2)
}

// ClampZoom limits a log2 zoom to [lo, hi].
func ClampZoom(zoomLog2, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, zoomLog2))
}

// ClosePolygon appends the first vertex when the polygon is open.
// Polygons with fewer than 3 vertices are returned unchanged.
func ClosePolygon(polygon core.Polygon) core.Polygon {
	if len(polygon) < 3 {
		return polygon
	}
	first, last := polygon[0], polygon[len(polygon)-1]
	if first == last {
		return polygon
	}
	closed := make(core.Polygon, len(polygon), len(polygon)+1)
	copy(closed, polygon)
	return append(closed, first)
}

// BoxPolygon returns the closed rectangle for a box marker, clockwise from
// the top-left corner in y-down space.
func BoxPolygon(x, y, width, height float64) core.Polygon {
	return core.Polygon{
		{X: x, Y: y},
		{X: x + width, Y: y},
		{X: x + width, Y: y + height},
		{X: x, Y: y + height},
		{X: x, Y: y},
	}
}

// ContainsPoint reports whether p lies inside or on the boundary of the
// polygon. Degenerate or invalid rings never contain anything.
func ContainsPoint(polygon core.Polygon, p core.Point) bool {
	ring := ClosePolygon(polygon)
	if len(ring) < 4 || !p.IsFinite() {
		return false
	}

	flatCoords := make([]float64, 0, len(ring)*2)
	for _, v := range ring {
		flatCoords = append(flatCoords, v.X, v.Y)
	}
	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return false
	}
	poly, err := geom.NewPolygon([]geom.LineString{ls})
	if err != nil {
		return false
	}

	point, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Type: geom.DimXY,
	})
	if err != nil {
		return false
	}
	return geom.Intersects(poly.AsGeometry(), point.AsGeometry())
}
