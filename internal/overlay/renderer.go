package overlay

import "github.com/pathoscope/wsiview/pkg/core"

// Frame is everything a renderer needs to draw the overlay once.
type Frame struct {
	View          core.ViewState
	Width         float64
	Height        float64
	Layers        []Layer
	PointerEvents bool
}

// Renderer draws overlay frames.
type Renderer interface {
	Render(Frame) error
}

// Recorder is a Renderer that keeps every frame it is given.
type Recorder struct {
	Frames []Frame
}

func (r *Recorder) Render(f Frame) error {
	r.Frames = append(r.Frames, f)
	return nil
}

// Last returns the most recent frame.
func (r *Recorder) Last() (Frame, bool) {
	if len(r.Frames) == 0 {
		return Frame{}, false
	}
	return r.Frames[len(r.Frames)-1], true
}

// Reset forgets recorded frames.
func (r *Recorder) Reset() {
	r.Frames = nil
}
