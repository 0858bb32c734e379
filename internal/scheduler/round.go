package scheduler

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/pingmonitor/internal/registry"
)

// runRound probes every active host and then emits one snapshot. It returns
// once the probes finish or the budget runs out, whichever comes first.
func (s *Scheduler) runRound(ctx context.Context, epoch uint64) {
	roundID := ulid.Make().String()
	hosts := s.reg.Active()
	s.metrics.roundStarted(len(hosts))
	log := s.log.With(zap.String("round", roundID))
	start := time.Now()

	var g errgroup.Group
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	finished := make(chan struct{})
	go func() {
		for _, h := range hosts {
			g.Go(func() error {
				s.probeHost(log, epoch, h)
				return nil
			})
		}
		_ = g.Wait()
		close(finished)
	}()

	budget := time.NewTimer(s.budget)
	defer budget.Stop()
	select {
	case <-finished:
	case <-budget.C:
		s.metrics.overran()
		log.Warn("round_budget_exceeded", zap.Duration("budget", s.budget))
	case <-ctx.Done():
	}

	if s.epoch.Load() != epoch {
		log.Debug("round_abandoned")
		return
	}
	log.Debug("round_completed",
		zap.Int("hosts", len(hosts)),
		zap.Duration("took", time.Since(start)),
	)
	s.emitSnapshot(log)
}

func (s *Scheduler) probeHost(log *zap.Logger, epoch uint64, h *registry.Host) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	out := s.prober.Probe(ctx, h.ID())
	s.metrics.probed(out, time.Since(start))

	s.applyMu.RLock()
	if s.epoch.Load() != epoch {
		s.applyMu.RUnlock()
		s.metrics.dropped()
		log.Debug("probe_discarded", zap.String("host", h.ID()))
		return
	}
	tr := s.tracker.Record(h, out)
	if tr != nil {
		// Stop waits on applyMu, so the alert is handed off before Stop can return.
		s.wentDown(log, tr.HostID, tr.At)
	}
	s.applyMu.RUnlock()

	fields := []zap.Field{zap.String("host", h.ID()), zap.Bool("online", out.Online), zap.String("reason", out.Reason)}
	if out.LatencyMS != nil {
		fields = append(fields, zap.Float64("latency_ms", *out.LatencyMS))
	}
	log.Debug("probe_result", fields...)
}

// wentDown runs with applyMu read-locked. Alert sinks must not block.
func (s *Scheduler) wentDown(log *zap.Logger, host string, at time.Time) {
	s.metrics.wentDown()
	log.Info("host_down", zap.String("host", host), zap.Time("at", at))
	if s.alerts == nil {
		return
	}
	guard(log, "alert_sink_panic", []zap.Field{zap.String("host", host)}, func() {
		s.alerts.OnHostDown(host)
	})
}

func (s *Scheduler) emitSnapshot(log *zap.Logger) {
	if s.snaps == nil {
		return
	}
	snap := s.reg.Snapshot()
	guard(log, "snapshot_sink_panic", nil, func() {
		s.snaps.OnSnapshot(snap)
	})
}
