// Package store holds the view state shared by every viewer in the process:
// overlay and layer visibility, the selected marker, sync mode and the
// focused panel. It has no business logic beyond setting and toggling.
package store

import (
	"fmt"
	"sync"
)

// LayerKey names an overlay layer category.
type LayerKey string

const (
	LayerTumorAreas   LayerKey = "tumor-areas"
	LayerBoxMarkers   LayerKey = "box-markers"
	LayerPointMarkers LayerKey = "point-markers"
)

// Change identifies which part of the state a notification is about.
type Change int

const (
	ChangeSelection Change = iota
	ChangeOverlay
	ChangeLayer
	ChangeSyncMode
	ChangeFocus
	ChangeReset
)

func (c Change) String() string {
	switch c {
	case ChangeSelection:
		return "selection"
	case ChangeOverlay:
		return "overlay"
	case ChangeLayer:
		return "layer"
	case ChangeSyncMode:
		return "sync-mode"
	case ChangeFocus:
		return "focus"
	case ChangeReset:
		return "reset"
	default:
		return fmt.Sprintf("change(%d)", int(c))
	}
}

// Snapshot is a copy of the store state. An empty SelectedID means nothing
// is selected.
type Snapshot struct {
	SelectedID          string
	OverlayVisible      bool
	TumorAreasVisible   bool
	BoxMarkersVisible   bool
	PointMarkersVisible bool
	SyncMode            bool
	FocusedPanel        int
}

// Selected returns the selected marker id, if any.
func (s Snapshot) Selected() (string, bool) {
	return s.SelectedID, s.SelectedID != ""
}

// LayerVisible reports the flag for one layer category.
func (s Snapshot) LayerVisible(key LayerKey) bool {
	switch key {
	case LayerTumorAreas:
		return s.TumorAreasVisible
	case LayerBoxMarkers:
		return s.BoxMarkersVisible
	case LayerPointMarkers:
		return s.PointMarkersVisible
	}
	return false
}

// Defaults returns the state a fresh process starts with.
func Defaults() Snapshot {
	return Snapshot{
		OverlayVisible:      true,
		TumorAreasVisible:   true,
		BoxMarkersVisible:   true,
		PointMarkersVisible: true,
	}
}

// Listener is notified after a state change.
type Listener func(Change, Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Store is the observable shared state. It is passed by reference to every
// component that reads or writes it.
type Store struct {
	mu        sync.RWMutex
	state     Snapshot
	listeners []subscription
	nextID    int
}

// New creates a store holding Defaults().
func New() *Store {
	return &Store{state: Defaults()}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// update applies mutate and notifies listeners when the state actually
// changed.
func (s *Store) update(change Change, mutate func(*Snapshot)) {
	s.mu.Lock()
	before := s.state
	mutate(&s.state)
	after := s.state
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if before == after {
		return
	}
	for _, sub := range listeners {
		sub.fn(change, after)
	}
}

// SetSelected selects a marker by id, replacing any previous selection.
// An empty id clears the selection.
func (s *Store) SetSelected(id string) {
	s.update(ChangeSelection, func(st *Snapshot) { st.SelectedID = id })
}

// ClearSelection deselects the current marker.
func (s *Store) ClearSelection() {
	s.SetSelected("")
}

func (s *Store) SetOverlayVisible(visible bool) {
	s.update(ChangeOverlay, func(st *Snapshot) { st.OverlayVisible = visible })
}

func (s *Store) ToggleOverlay() {
	s.update(ChangeOverlay, func(st *Snapshot) { st.OverlayVisible = !st.OverlayVisible })
}

// SetLayerVisible sets the flag of one layer category. Unknown keys are
// ignored.
func (s *Store) SetLayerVisible(key LayerKey, visible bool) {
	s.update(ChangeLayer, func(st *Snapshot) {
		if flag := layerFlag(st, key); flag != nil {
			*flag = visible
		}
	})
}

func (s *Store) ToggleLayer(key LayerKey) {
	s.update(ChangeLayer, func(st *Snapshot) {
		if flag := layerFlag(st, key); flag != nil {
			*flag = !*flag
		}
	})
}

func (s *Store) SetSyncMode(on bool) {
	s.update(ChangeSyncMode, func(st *Snapshot) { st.SyncMode = on })
}

func (s *Store) ToggleSyncMode() {
	s.update(ChangeSyncMode, func(st *Snapshot) { st.SyncMode = !st.SyncMode })
}

// SetFocusedPanel records which panel last received pointer input.
func (s *Store) SetFocusedPanel(index int) {
	if index < 0 {
		return
	}
	s.update(ChangeFocus, func(st *Snapshot) { st.FocusedPanel = index })
}

// FocusedPanel returns the focused panel index.
func (s *Store) FocusedPanel() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.FocusedPanel
}

// Reset restores Defaults().
func (s *Store) Reset() {
	s.update(ChangeReset, func(st *Snapshot) { *st = Defaults() })
}

func layerFlag(st *Snapshot, key LayerKey) *bool {
	switch key {
	case LayerTumorAreas:
		return &st.TumorAreasVisible
	case LayerBoxMarkers:
		return &st.BoxMarkersVisible
	case LayerPointMarkers:
		return &st.PointMarkersVisible
	}
	return nil
}
