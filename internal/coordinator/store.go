package coordinator

import (
	"sync"
	"time"

	"github.com/veluxhome/lumen-core/internal/device"
)

// StateStore holds the current state of every known device.
//
// Writes go through Apply, which runs the merge under the write lock so
// concurrent refresh results and commands serialise cleanly. Readers always
// receive clones, never references into the map.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]device.State

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]device.State),
		now:    time.Now,
	}
}

// Apply merges an incoming update into the stored state for a device and
// returns the resulting state.
//
// API and optimistic updates stamp UpdatedAt; stale updates keep the previous
// timestamp, so UpdatedAt always reflects when the values were last produced
// rather than when they were last confirmed missing.
func (s *StateStore) Apply(deviceID string, incoming device.State, kind device.UpdateKind) device.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *device.State
	if p, ok := s.states[deviceID]; ok {
		pc := p.Clone()
		prev = &pc
	}

	merged := device.Merge(prev, incoming, kind)
	merged.DeviceID = deviceID
	if kind != device.KindStale {
		merged.UpdatedAt = s.now()
	}

	s.states[deviceID] = merged
	return merged.Clone()
}

// Get returns the state of one device and whether any state is known.
func (s *StateStore) Get(deviceID string) (device.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[deviceID]
	if !ok {
		return device.State{}, false
	}
	return st.Clone(), true
}

// All returns a snapshot of every known device state.
func (s *StateStore) All() map[string]device.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]device.State, len(s.states))
	for id, st := range s.states {
		out[id] = st.Clone()
	}
	return out
}

// Count returns the number of devices with known state.
func (s *StateStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
