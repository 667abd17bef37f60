// pkg/core/marker.go
package core

import "encoding/json"

// MarkerKind tags the marker variant.
type MarkerKind string

const (
	MarkerPoint MarkerKind = "point"
	MarkerBox   MarkerKind = "box"
)

// Marker is a point or box annotation in image-pixel space.
// Width and Height are only meaningful for MarkerBox.
type Marker struct {
	Kind   MarkerKind `json:"kind"`
	ID     string     `json:"id"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Width  float64    `json:"width,omitempty"`
	Height float64    `json:"height,omitempty"`
	Label  string     `json:"label"`
}

// NewPointMarker creates a point marker.
func NewPointMarker(id string, x, y float64, label string) Marker {
	return Marker{Kind: MarkerPoint, ID: id, X: x, Y: y, Label: label}
}

// NewBoxMarker creates a box marker.
func NewBoxMarker(id string, x, y, width, height float64, label string) Marker {
	return Marker{Kind: MarkerBox, ID: id, X: x, Y: y, Width: width, Height: height, Label: label}
}

// IsBox reports whether the marker is a box marker.
func (m Marker) IsBox() bool {
	return m.Kind == MarkerBox
}

// UnmarshalJSON accepts both the tagged form and the untagged form used by
// annotation exports, where a box is any record carrying width and height.
func (m *Marker) UnmarshalJSON(data []byte) error {
	type plain Marker
	var raw struct {
		plain
		Width  *float64 `json:"width"`
		Height *float64 `json:"height"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Marker(raw.plain)
	if raw.Width != nil {
		out.Width = *raw.Width
	}
	if raw.Height != nil {
		out.Height = *raw.Height
	}
	if out.Kind == "" {
		out.Kind = MarkerPoint
		if raw.Width != nil && raw.Height != nil {
			out.Kind = MarkerBox
		}
	}
	*m = out
	return nil
}

// SplitMarkers separates a mixed collection into point and box markers,
// preserving input order within each group.
func SplitMarkers(markers []Marker) (points, boxes []Marker) {
	for _, m := range markers {
		if m.IsBox() {
			boxes = append(boxes, m)
		} else {
			points = append(points, m)
		}
	}
	return points, boxes
}

// FindMarker returns the marker with the given id.
func FindMarker(markers []Marker, id string) (Marker, bool) {
	for _, m := range markers {
		if m.ID == id {
			return m, true
		}
	}
	return Marker{}, false
}

// TumorArea is a labelled region outlined by a polygon in image-pixel space.
type TumorArea struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Polygon Polygon `json:"polygon"`
}
