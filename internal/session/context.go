// Package session tracks which slide the current command is working on, so
// log records and stream hellos can name it.
package session

import (
	"log/slog"
	"sync"
	"time"
)

const noSlide = "No slide loaded"

// Context holds the current slide and when it was opened.
type Context struct {
	mu       sync.RWMutex
	slideID  string
	openedAt time.Time
}

// NewContext creates a Context with no slide.
func NewContext() *Context {
	return &Context{}
}

// Slide returns the current slide id and whether one is set.
func (c *Context) Slide() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slideID, c.slideID != ""
}

// SetSlide records the slide now being viewed. An empty id clears it.
func (c *Context) SetSlide(slideID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slideID = slideID
	c.openedAt = time.Now()
}

// Attrs returns the log attributes describing the session.
func (c *Context) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.slideID == "" {
		return []slog.Attr{slog.String("slide", noSlide)}
	}
	return []slog.Attr{
		slog.String("slide", c.slideID),
		slog.Duration("slideOpenFor", time.Since(c.openedAt).Round(time.Millisecond)),
	}
}
