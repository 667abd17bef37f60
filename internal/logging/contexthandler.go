package logging

import (
	"context"
	"log/slog"

	"github.com/pathoscope/wsiview/internal/session"
)

// FocusSource reports which grid panel has focus.
type FocusSource interface {
	FocusedPanel() int
}

// ContextHandler stamps every record with the session's current slide and
// the focused panel. Both are read when the record is handled, not when
// the logger is built.
type ContextHandler struct {
	inner   slog.Handler
	session *session.Context
	focus   FocusSource
}

// NewContextHandler wraps inner. Either source may be nil.
func NewContextHandler(inner slog.Handler, sess *session.Context, focus FocusSource) *ContextHandler {
	return &ContextHandler{inner: inner, session: sess, focus: focus}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.session != nil {
		r.AddAttrs(h.session.Attrs()...)
	}
	if h.focus != nil {
		r.AddAttrs(slog.Int("focusedPanel", h.focus.FocusedPanel()))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.wrap(h.inner.WithAttrs(attrs))
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.wrap(h.inner.WithGroup(name))
}

func (h *ContextHandler) wrap(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner, session: h.session, focus: h.focus}
}
