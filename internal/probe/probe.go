package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// DefaultTimeout bounds a single probe attempt.
const DefaultTimeout = 2 * time.Second

// Prober performs one reachability and latency measurement against a host.
//
// Implementations never return errors: every failure becomes an offline
// Outcome with Reason set. They must be safe for concurrent use.
type Prober interface {
	Probe(ctx context.Context, host string) domain.Outcome
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, host string) domain.Outcome

func (f ProberFunc) Probe(ctx context.Context, host string) domain.Outcome { return f(ctx, host) }

// Mode selects the probe implementation.
type Mode string

const (
	ModeICMP Mode = "icmp"
	ModeTCP  Mode = "tcp"
)

// Options configures New.
type Options struct {
	Mode        Mode
	Timeout     time.Duration
	PingCommand string
	TCPPort     int
}

// New builds the prober selected by opts.Mode.
func New(opts Options) (Prober, error) {
	switch opts.Mode {
	case "", ModeICMP:
		return NewPingProber(opts.PingCommand, opts.Timeout), nil
	case ModeTCP:
		return NewTCPProber(opts.TCPPort, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown probe mode %q", opts.Mode)
	}
}

func offline(reason string) domain.Outcome {
	return domain.Outcome{Online: false, Reason: reason, CheckedAt: time.Now().UTC()}
}

func online(latency *float64, reason string) domain.Outcome {
	return domain.Outcome{Online: true, LatencyMS: latency, Reason: reason, CheckedAt: time.Now().UTC()}
}
