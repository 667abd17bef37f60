package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pathoscope/wsiview/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is a navigation or input event emitted by a tile engine.
type Event struct {
	Kind      string
	Scroll    float64    // wheel steps, positive zooms in
	Position  core.Point // pointer position in screen pixels
	Timestamp time.Time

	defaultPrevented bool
}

// PreventDefault asks the emitter to skip its built-in handling of the event.
// Only meaningful for handlers that run synchronously.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether any handler called PreventDefault.
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// HandlerFunc processes an event.
type HandlerFunc func(*Event)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Poster schedules work on an event loop.
type Poster interface {
	Post(task func())
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
	poster Poster
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Deferred runs the handler as a task on p instead of inside Dispatch.
func Deferred(p Poster) Option {
	return func(c *config) {
		c.poster = p
	}
}

// Dispatcher routes events to registered handlers. Several handlers may
// listen to the same kind; they run in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	logger   Logger

	// OTEL metrics
	dispatched metric.Int64Counter
	recovered  metric.Int64Counter
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	d := &Dispatcher{
		handlers: make(map[string][]HandlerFunc),
		logger:   logger,
	}

	m := meter()

	var err error
	d.dispatched, err = m.Int64Counter(
		"engine.events.dispatched",
		metric.WithDescription("Total engine events delivered to handlers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dispatched counter: %w", err)
	}

	d.recovered, err = m.Int64Counter(
		"engine.events.recovered",
		metric.WithDescription("Total handler panics recovered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating recovered counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given event kind with optional configuration.
func (d *Dispatcher) Register(kind string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withRecover(kind, h)

	if cfg.logged {
		handler = d.withLogging(kind, handler)
	}

	if cfg.poster != nil {
		handler = withDeferral(cfg.poster, handler)
	}

	d.mu.Lock()
	d.handlers[kind] = append(d.handlers[kind], handler)
	d.mu.Unlock()
}

// Dispatch delivers an event to every handler registered for its kind and
// returns how many handlers received it. Events nobody listens to are not
// an error.
func (d *Dispatcher) Dispatch(e *Event) int {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.mu.RLock()
	hs := make([]HandlerFunc, len(d.handlers[e.Kind]))
	copy(hs, d.handlers[e.Kind])
	d.mu.RUnlock()

	for _, h := range hs {
		h(e)
	}
	if len(hs) > 0 {
		d.dispatched.Add(context.Background(), int64(len(hs)),
			metric.WithAttributes(attribute.String("kind", e.Kind)))
	}
	return len(hs)
}

// HasHandler returns true if a handler is registered for the kind.
func (d *Dispatcher) HasHandler(kind string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[kind]) > 0
}

// Clear removes every handler.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.handlers = make(map[string][]HandlerFunc)
	d.mu.Unlock()
}

func withDeferral(p Poster, h HandlerFunc) HandlerFunc {
	return func(e *Event) {
		ev := *e
		p.Post(func() { h(&ev) })
	}
}

func (d *Dispatcher) withRecover(kind string, h HandlerFunc) HandlerFunc {
	return func(e *Event) {
		defer func() {
			if r := recover(); r != nil {
				d.recovered.Add(context.Background(), 1,
					metric.WithAttributes(attribute.String("kind", kind)))
				d.logger.Error("handler panicked", "kind", kind, "error", fmt.Sprint(r))
			}
		}()
		h(e)
	}
}

func (d *Dispatcher) withLogging(kind string, h HandlerFunc) HandlerFunc {
	return func(e *Event) {
		start := time.Now()
		d.logger.Debug("handling event", "kind", kind, "scroll", e.Scroll)
		h(e)
		d.logger.Debug("event complete", "kind", kind, "duration", time.Since(start))
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
