// Package raster draws overlay frames into an RGBA image with gogpu/gg.
// It backs the headless snapshot command; an interactive front end would
// plug a GPU renderer into the same overlay.Renderer interface.
package raster

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"
	"github.com/pathoscope/wsiview/internal/geo"
	"github.com/pathoscope/wsiview/internal/overlay"
	"github.com/pathoscope/wsiview/pkg/core"
)

// Renderer rasterizes each frame into a fresh canvas.
type Renderer struct {
	background gg.RGBA
	dc         *gg.Context
	frames     int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithBackground fills the canvas before drawing. Components are 0-1.
func WithBackground(r, g, b, a float64) Option {
	return func(rr *Renderer) {
		rr.background = gg.RGBA2(r, g, b, a)
	}
}

// New creates a renderer with a transparent background.
func New(opts ...Option) *Renderer {
	r := &Renderer{background: gg.Transparent}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws f, replacing the previous canvas.
func (r *Renderer) Render(f overlay.Frame) error {
	w, h := int(math.Round(f.Width)), int(math.Round(f.Height))
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid frame size %vx%v", f.Width, f.Height)
	}

	if r.dc != nil {
		_ = r.dc.Close()
	}
	r.dc = gg.NewContext(w, h)
	r.dc.ClearWithColor(r.background)
	r.frames++

	cam := geo.NewOrthoCamera(f.View, f.Width, f.Height)
	for _, l := range f.Layers {
		for _, it := range l.Items {
			if err := r.drawItem(cam, l, it); err != nil {
				return fmt.Errorf("drawing %s/%s: %w", l.ID, it.ID, err)
			}
		}
	}
	return nil
}

func (r *Renderer) drawItem(cam geo.OrthoCamera, l overlay.Layer, it overlay.Item) error {
	style := l.Style(it)

	switch l.Kind {
	case overlay.KindPolygon:
		if len(it.Polygon) < 2 {
			return nil
		}
		tracePolygon(r.dc, cam, it.Polygon)
	case overlay.KindScatter:
		c := cam.ImageToScreen(it.Position)
		r.dc.DrawCircle(c.X, c.Y, style.Radius*cam.Scale())
	default:
		return nil
	}

	r.dc.SetColor(style.Fill)
	if err := r.dc.FillPreserve(); err != nil {
		return err
	}
	r.dc.SetColor(style.Line)
	r.dc.SetLineWidth(math.Max(style.LineWidthMinPixels, style.LineWidth*cam.Scale()))
	return r.dc.Stroke()
}

func tracePolygon(dc *gg.Context, cam geo.OrthoCamera, polygon core.Polygon) {
	for i, v := range polygon {
		p := cam.ImageToScreen(v)
		if i == 0 {
			dc.MoveTo(p.X, p.Y)
			continue
		}
		dc.LineTo(p.X, p.Y)
	}
	dc.ClosePath()
}

// Frames returns how many frames have been drawn.
func (r *Renderer) Frames() int { return r.frames }

// Image returns the last drawn frame, or nil before the first Render.
func (r *Renderer) Image() image.Image {
	if r.dc == nil {
		return nil
	}
	return r.dc.Image()
}

// WritePNG encodes the last drawn frame.
func (r *Renderer) WritePNG(w io.Writer) error {
	if r.dc == nil {
		return fmt.Errorf("no frame rendered")
	}
	return r.dc.EncodePNG(w)
}

// Close releases the canvas.
func (r *Renderer) Close() error {
	if r.dc == nil {
		return nil
	}
	err := r.dc.Close()
	r.dc = nil
	return err
}
