package domain

import "time"

// HistoryLimit is the number of latency samples kept per host.
const HistoryLimit = 100

// DefaultHostID is seeded into an empty registry.
const DefaultHostID = "45.238.146.173"

// DefaultIntervalSeconds applies when the persisted interval is missing or not positive.
const DefaultIntervalSeconds = 10

// HostSnapshot is a point-in-time copy of one monitored host.
// History is in chronological order; a 0 sample means the probe failed.
type HostSnapshot struct {
	ID      string    `json:"id"`
	Active  bool      `json:"active"`
	History []float64 `json:"history"`
}

// Outcome is the result of a single reachability probe.
type Outcome struct {
	Online    bool      `json:"online"`
	LatencyMS *float64  `json:"latency_ms,omitempty"` // nil when online but the round trip could not be read
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Transition is raised when a host's newest sample is a failure and the one before was not.
type Transition struct {
	HostID string    `json:"host_id"`
	At     time.Time `json:"at"`
}

// NormalizeInterval maps non-positive values to the default.
func NormalizeInterval(seconds int) int {
	if seconds <= 0 {
		return DefaultIntervalSeconds
	}
	return seconds
}
