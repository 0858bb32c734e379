package scheduler

import (
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// AlertSink is told when a host goes down. Delivery is fire-and-forget.
type AlertSink interface {
	OnHostDown(id string)
}

// SnapshotSink receives the full registry state after each round.
// Implementations must not mutate hosts.
type SnapshotSink interface {
	OnSnapshot(hosts []domain.HostSnapshot)
}

type AlertFunc func(id string)

func (f AlertFunc) OnHostDown(id string) { f(id) }

type SnapshotFunc func(hosts []domain.HostSnapshot)

func (f SnapshotFunc) OnSnapshot(hosts []domain.HostSnapshot) { f(hosts) }

// MultiSnapshot forwards a snapshot to every sink in order.
type MultiSnapshot []SnapshotSink

func (m MultiSnapshot) OnSnapshot(hosts []domain.HostSnapshot) {
	for _, s := range m {
		if s != nil {
			s.OnSnapshot(hosts)
		}
	}
}

// guard runs fn and turns a panic into a log line.
func guard(log *zap.Logger, event string, fields []zap.Field, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(event, append(fields, zap.Any("panic", r))...)
		}
	}()
	fn()
}
