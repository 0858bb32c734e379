package registry

import (
	"sync"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// Host is one monitored endpoint. Its active flag and history are guarded by
// a lock owned by the host alone, so hosts never contend with each other.
type Host struct {
	id string

	mu      sync.Mutex
	active  bool
	history []float64
}

func newHost(s domain.HostSnapshot) *Host {
	hist := make([]float64, len(s.History), domain.HistoryLimit+1)
	copy(hist, s.History)
	return &Host{id: s.ID, active: s.Active, history: hist}
}

func (h *Host) ID() string { return h.id }

func (h *Host) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *Host) setActive(v bool) {
	h.mu.Lock()
	h.active = v
	h.mu.Unlock()
}

// History returns a copy of the samples, oldest first.
func (h *Host) History() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.history))
	copy(out, h.history)
	return out
}

// Update replaces the history with fn's result while holding the host lock.
// fn must not retain the slice it is given.
func (h *Host) Update(fn func(samples []float64) []float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = fn(h.history)
}

// Snapshot copies the host's current state.
func (h *Host) Snapshot() domain.HostSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	hist := make([]float64, len(h.history))
	copy(hist, h.history)
	return domain.HostSnapshot{ID: h.id, Active: h.active, History: hist}
}
