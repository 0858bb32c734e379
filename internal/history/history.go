package history

import (
	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/registry"
)

// Failed is the sample stored for an offline probe.
const Failed = 0.0

// UnknownLatency is stored when a probe succeeded but reported no usable
// round trip. It is negative so it can never be mistaken for Failed.
const UnknownLatency = -1.0

// Sample converts a probe outcome into the value appended to a history.
func Sample(o domain.Outcome) float64 {
	if !o.Online {
		return Failed
	}
	if o.LatencyMS == nil || *o.LatencyMS <= 0 {
		return UnknownLatency
	}
	return *o.LatencyMS
}

// Append adds v and evicts the oldest samples beyond limit.
func Append(samples []float64, v float64, limit int) []float64 {
	samples = append(samples, v)
	if limit > 0 && len(samples) > limit {
		n := copy(samples, samples[len(samples)-limit:])
		samples = samples[:n]
	}
	return samples
}

// WentDown reports whether the newest sample is a failure following a non-failure.
func WentDown(samples []float64) bool {
	n := len(samples)
	return n >= 2 && samples[n-1] == Failed && samples[n-2] != Failed
}

// Tracker records outcomes into host histories.
type Tracker struct {
	Limit int
}

// NewTracker returns a tracker using the standard history bound.
func NewTracker() Tracker {
	return Tracker{Limit: domain.HistoryLimit}
}

// Record appends the outcome to h and classifies the result under h's lock.
// It returns nil unless the host just went down.
func (t Tracker) Record(h *registry.Host, o domain.Outcome) *domain.Transition {
	limit := t.Limit
	if limit <= 0 {
		limit = domain.HistoryLimit
	}
	sample := Sample(o)

	var down bool
	h.Update(func(samples []float64) []float64 {
		samples = Append(samples, sample, limit)
		down = WentDown(samples)
		return samples
	})
	if !down {
		return nil
	}
	return &domain.Transition{HostID: h.ID(), At: o.CheckedAt}
}
