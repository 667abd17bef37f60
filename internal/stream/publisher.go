// Package stream mirrors viewer navigation and shared view state to a
// remote follower over a WebSocket, so a second screen can track a session.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pathoscope/wsiview/internal/store"
	"github.com/pathoscope/wsiview/pkg/core"
)

// Config holds publisher configuration.
type Config struct {
	URL    string
	Secret string
}

// Publisher sends view-state envelopes. Publishing is fire-and-forget;
// only the hello handshake waits for an ack. After a reconnect the follower
// is sent the hello, the bound store's current state and the last view of
// every panel, in that order.
type Publisher struct {
	conn    *connection
	cfg     Config
	logger  *slog.Logger
	sent    atomic.Uint64
	dropped atomic.Uint64

	mu    sync.Mutex
	hello []byte
	bound *store.Store
	views map[int][]byte // last view_state envelope per panel
}

// New creates a publisher. Call Connect before publishing.
func New(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		cfg:    cfg,
		logger: logger,
		views:  make(map[int][]byte),
	}
	p.conn = newConnection(logger, p.replayFrames)
	return p
}

// Connect dials the follower and performs the hello handshake.
func (p *Publisher) Connect(hello HelloPayload) error {
	data, err := marshalEnvelope(TypeHello, hello)
	if err != nil {
		return err
	}
	if err := p.conn.dial(p.cfg.URL, p.cfg.Secret); err != nil {
		return err
	}

	p.mu.Lock()
	p.hello = data
	p.mu.Unlock()

	return p.conn.sendAndWait(data, TypeHello, ackTimeout)
}

// replayFrames is what a reconnected follower needs to catch up.
func (p *Publisher) replayFrames() [][]byte {
	p.mu.Lock()
	hello, bound := p.hello, p.bound
	var views [][]byte
	for _, panel := range slices.Sorted(maps.Keys(p.views)) {
		views = append(views, p.views[panel])
	}
	p.mu.Unlock()

	if hello == nil {
		return nil
	}
	frames := [][]byte{hello}
	if bound != nil {
		for _, m := range snapshotMessages(bound.Snapshot()) {
			data, err := marshalEnvelope(m.typ, m.payload)
			if err != nil {
				p.logger.Warn("skipping replay of store state", "type", m.typ, "error", err)
				continue
			}
			frames = append(frames, data)
		}
	}
	return append(frames, views...)
}

// Close disconnects from the follower.
func (p *Publisher) Close() error {
	return p.conn.close()
}

// Sent returns how many envelopes were queued for sending.
func (p *Publisher) Sent() uint64 { return p.sent.Load() }

// Dropped returns how many envelopes were dropped on a full queue.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (p *Publisher) publish(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	p.enqueue(data)
	return nil
}

func (p *Publisher) enqueue(data []byte) {
	if p.conn.send(data) {
		p.sent.Add(1)
	} else {
		p.dropped.Add(1)
	}
}

// PublishView sends one panel's view state and remembers it for replay.
// Non-finite views are skipped.
func (p *Publisher) PublishView(panel int, slideID, kind string, view core.ViewState) error {
	if !view.IsFinite() {
		return nil
	}
	data, err := marshalEnvelope(TypeViewState, ViewStatePayload{Panel: panel, SlideID: slideID, Kind: kind, View: view})
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.views[panel] = data
	p.mu.Unlock()
	p.enqueue(data)
	return nil
}

// ViewChanged is PublishView with errors logged instead of returned.
func (p *Publisher) ViewChanged(panel int, slideID, kind string, view core.ViewState) {
	if err := p.PublishView(panel, slideID, kind, view); err != nil {
		p.logger.Warn("failed to publish view", "panel", panel, "error", err)
	}
}

type message struct {
	typ     string
	payload any
}

// snapshotMessages lists the shared-state messages for snap in send order.
func snapshotMessages(snap store.Snapshot) []message {
	return []message{
		{TypeSelection, SelectionPayload{SelectedID: snap.SelectedID}},
		{TypeSyncMode, SyncModePayload{Enabled: snap.SyncMode}},
		{TypeFocus, FocusPayload{Panel: snap.FocusedPanel}},
		{TypeLayers, LayersPayload{
			Overlay:      snap.OverlayVisible,
			TumorAreas:   snap.TumorAreasVisible,
			BoxMarkers:   snap.BoxMarkersVisible,
			PointMarkers: snap.PointMarkersVisible,
		}},
	}
}

// PublishSnapshot sends every shared-state message for snap.
func (p *Publisher) PublishSnapshot(snap store.Snapshot) error {
	for _, m := range snapshotMessages(snap) {
		if err := p.publish(m.typ, m.payload); err != nil {
			return err
		}
	}
	return nil
}

// changeMessage picks the one message a store change affects.
func changeMessage(change store.Change) (string, bool) {
	switch change {
	case store.ChangeSelection:
		return TypeSelection, true
	case store.ChangeSyncMode:
		return TypeSyncMode, true
	case store.ChangeFocus:
		return TypeFocus, true
	case store.ChangeOverlay, store.ChangeLayer:
		return TypeLayers, true
	}
	return "", false
}

// Bind forwards store changes to the follower and makes s the state
// replayed after a reconnect. The returned function undoes both.
func (p *Publisher) Bind(s *store.Store) func() {
	p.mu.Lock()
	p.bound = s
	p.mu.Unlock()

	unsubscribe := s.Subscribe(func(change store.Change, snap store.Snapshot) {
		var err error
		if change == store.ChangeReset {
			err = p.PublishSnapshot(snap)
		} else if typ, ok := changeMessage(change); ok {
			for _, m := range snapshotMessages(snap) {
				if m.typ == typ {
					err = p.publish(m.typ, m.payload)
				}
			}
		}
		if err != nil {
			p.logger.Warn("failed to publish store change", "change", change.String(), "error", err)
		}
	})
	return func() {
		unsubscribe()
		p.mu.Lock()
		if p.bound == s {
			p.bound = nil
		}
		p.mu.Unlock()
	}
}
