package stream

import (
	"encoding/json"

	"github.com/pathoscope/wsiview/pkg/core"
)

// Message type constants of the follower protocol.
const (
	TypeHello     = "hello"
	TypeViewState = "view_state"
	TypeSelection = "selection"
	TypeSyncMode  = "sync_mode"
	TypeFocus     = "focus"
	TypeLayers    = "layers"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the follower's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`
}

// HelloPayload opens a session and is replayed after every reconnect.
type HelloPayload struct {
	Client string   `json:"client"`
	Panels int      `json:"panels"`
	Slides []string `json:"slides,omitempty"`
}

// ViewStatePayload carries one panel's canonical view after a pan or zoom.
type ViewStatePayload struct {
	Panel   int            `json:"panel"`
	SlideID string         `json:"slideId"`
	Kind    string         `json:"kind"`
	View    core.ViewState `json:"view"`
}

// SelectionPayload carries the shared marker selection. An empty
// SelectedID means nothing is selected.
type SelectionPayload struct {
	SelectedID string `json:"selectedId"`
}

type SyncModePayload struct {
	Enabled bool `json:"enabled"`
}

type FocusPayload struct {
	Panel int `json:"panel"`
}

// LayersPayload carries overlay and per-layer visibility.
type LayersPayload struct {
	Overlay      bool `json:"overlay"`
	TumorAreas   bool `json:"tumorAreas"`
	BoxMarkers   bool `json:"boxMarkers"`
	PointMarkers bool `json:"pointMarkers"`
}
