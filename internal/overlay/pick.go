package overlay

import (
	"math"

	"github.com/pathoscope/wsiview/internal/geo"
	"github.com/pathoscope/wsiview/pkg/core"
)

// Hit is the result of a successful pick.
type Hit struct {
	LayerID string
	Item    Item
}

// Pick returns the top-most pickable item under p (image space). Later
// layers and later items win.
func Pick(layers []Layer, p core.Point) (Hit, bool) {
	if !p.IsFinite() {
		return Hit{}, false
	}
	for li := len(layers) - 1; li >= 0; li-- {
		l := layers[li]
		if !l.Pickable {
			continue
		}
		for ii := len(l.Items) - 1; ii >= 0; ii-- {
			it := l.Items[ii]
			if hits(l, it, p) {
				return Hit{LayerID: l.ID, Item: it}, true
			}
		}
	}
	return Hit{}, false
}

// Click picks at p and runs the owning layer's click callback, if any.
func Click(layers []Layer, p core.Point) (Hit, bool) {
	hit, ok := Pick(layers, p)
	if !ok {
		return hit, false
	}
	for _, l := range layers {
		if l.ID == hit.LayerID && l.OnClick != nil {
			l.OnClick(hit.Item)
			break
		}
	}
	return hit, true
}

func hits(l Layer, it Item, p core.Point) bool {
	switch l.Kind {
	case KindScatter:
		r := l.Style(it).Radius
		return math.Hypot(p.X-it.Position.X, p.Y-it.Position.Y) <= r
	case KindPolygon:
		b := geo.Bounds(it.Polygon)
		if p.X < b.X || p.Y < b.Y || p.X > b.X+b.Width || p.Y > b.Y+b.Height {
			return false
		}
		return geo.ContainsPoint(it.Polygon, p)
	}
	return false
}
