package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/history"
	"github.com/hamed0406/pingmonitor/internal/probe"
	"github.com/hamed0406/pingmonitor/internal/registry"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrStopped        = errors.New("scheduler stopped")
	ErrNotRunning     = errors.New("scheduler not running")
)

type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type Options struct {
	Logger    *zap.Logger
	Registry  *registry.Registry
	Store     repo.StateStore
	Prober    probe.Prober
	Alerts    AlertSink
	Snapshots SnapshotSink
	Metrics   *Metrics

	// Interval between round starts. Non-positive means the default.
	Interval time.Duration
	// ProbeTimeout bounds each probe. It does not depend on Stop.
	ProbeTimeout time.Duration
	// RoundBudget is how long a round waits for its probes before sending
	// the snapshot anyway. Defaults to ProbeTimeout plus one second.
	RoundBudget time.Duration
	// MaxConcurrent limits probes in flight per round; 0 means no limit.
	MaxConcurrent int
}

type Scheduler struct {
	log     *zap.Logger
	reg     *registry.Registry
	store   repo.StateStore
	prober  probe.Prober
	tracker history.Tracker
	alerts  AlertSink
	snaps   SnapshotSink
	metrics *Metrics
	timeout time.Duration
	budget  time.Duration
	limit   int
	unit    time.Duration // one persisted interval step; tests shrink it

	intervalCh chan time.Duration

	mu       sync.Mutex
	state    State
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	// epoch changes on Stop. applyMu orders the epoch bump against results
	// being written into history.
	epoch   atomic.Uint64
	applyMu sync.RWMutex
	// rounds counts round goroutines started by the loop. Stop drains it.
	rounds sync.WaitGroup
}

func New(o Options) *Scheduler {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := o.ProbeTimeout
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}
	budget := o.RoundBudget
	if budget <= 0 {
		budget = timeout + time.Second
	}
	interval := o.Interval
	if interval <= 0 {
		interval = domain.DefaultIntervalSeconds * time.Second
	}
	limit := o.MaxConcurrent
	if limit < 0 {
		limit = 0
	}
	return &Scheduler{
		log:        log,
		reg:        o.Registry,
		store:      o.Store,
		prober:     o.Prober,
		tracker:    history.NewTracker(),
		alerts:     o.Alerts,
		snaps:      o.Snapshots,
		metrics:    o.Metrics,
		timeout:    timeout,
		budget:     budget,
		limit:      limit,
		unit:       time.Second,
		intervalCh: make(chan time.Duration, 1),
		interval:   interval,
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Start fires the first round immediately and then one round per interval.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Running:
		return ErrAlreadyStarted
	case Stopped:
		return ErrStopped
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.state = Running
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.interval)

	s.log.Info("scheduler_started",
		zap.Duration("interval", s.interval),
		zap.Duration("probe_timeout", s.timeout),
		zap.Int("hosts", s.reg.Len()),
	)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	s.launch(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.intervalCh:
			t.Reset(d)
			s.log.Info("interval_changed", zap.Duration("interval", d))
		case <-t.C:
			s.launch(ctx)
		}
	}
}

// launch starts a round without waiting for it, so a slow round never delays
// the next tick.
func (s *Scheduler) launch(ctx context.Context) {
	epoch := s.epoch.Load()
	s.rounds.Add(1)
	go func() {
		defer s.rounds.Done()
		s.runRound(ctx, epoch)
	}()
}

// Stop ends the timer loop, waits for its rounds to return and persists the
// registry. In-flight probes are abandoned; their results are discarded when
// they arrive.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Idle:
		s.mu.Unlock()
		return ErrNotRunning
	case Stopped:
		s.mu.Unlock()
		return ErrStopped
	}
	s.state = Stopped

	s.applyMu.Lock()
	s.epoch.Add(1)
	s.applyMu.Unlock()

	s.cancel()
	done := s.done
	s.mu.Unlock()

	// Rounds return on cancellation without waiting for their probes.
	drained := make(chan struct{})
	go func() {
		<-done
		s.rounds.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("scheduler_stopped")
	return s.Persist(ctx)
}

// RunOnce performs a single round and returns when its snapshot has been
// delivered. It is valid in Idle and Running.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.State() == Stopped {
		return ErrStopped
	}
	s.runRound(ctx, s.epoch.Load())
	return nil
}

// Persist writes the registry and interval to the store.
func (s *Scheduler) Persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	st, err := s.reg.State(s.intervalUnits())
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if err := s.store.Save(ctx, st); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (s *Scheduler) intervalUnits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int(s.interval / s.unit)
	if n < 1 {
		n = 1
	}
	return n
}

// Reload re-reads the store into the registry. A changed interval is applied
// from the next tick on.
func (s *Scheduler) Reload(ctx context.Context) (registry.LoadReport, error) {
	if s.State() == Stopped {
		return registry.LoadReport{}, ErrStopped
	}
	if s.store == nil {
		return registry.LoadReport{}, errors.New("reload: no store configured")
	}
	st, err := s.store.Load(ctx)
	if err != nil {
		return registry.LoadReport{}, fmt.Errorf("reload: %w", err)
	}
	rep := s.reg.Apply(st)
	if rep.Skipped > 0 {
		s.log.Warn("records_skipped", zap.Int("count", rep.Skipped))
	}

	next := time.Duration(rep.IntervalSeconds) * s.unit
	s.mu.Lock()
	changed := next != s.interval
	s.interval = next
	running := s.state == Running
	s.mu.Unlock()
	if changed && running {
		s.resetTicker(next)
	}

	s.log.Info(fmt.Sprintf("Monitoring %d hosts", s.reg.Len()),
		zap.Int("added", rep.Added),
		zap.Int("removed", rep.Removed),
		zap.Bool("seeded", rep.Seeded),
		zap.Duration("interval", next),
	)
	return rep, nil
}

// resetTicker hands d to the loop, replacing any value it has not read yet.
func (s *Scheduler) resetTicker(d time.Duration) {
	for {
		select {
		case s.intervalCh <- d:
			return
		default:
		}
		select {
		case <-s.intervalCh:
		default:
		}
	}
}

// AddHost registers id as an active host and persists the change.
// It reports whether the host was new.
func (s *Scheduler) AddHost(ctx context.Context, id string) (bool, error) {
	if s.State() == Stopped {
		return false, ErrStopped
	}
	added, err := s.reg.Add(id)
	if err != nil || !added {
		return added, err
	}
	s.log.Info("host_added", zap.String("host", id))
	s.persistQuietly(ctx)
	return true, nil
}

// SetActive toggles a host for later rounds and persists the change.
func (s *Scheduler) SetActive(ctx context.Context, id string, active bool) error {
	if s.State() == Stopped {
		return ErrStopped
	}
	if err := s.reg.SetActive(id, active); err != nil {
		return err
	}
	s.log.Info("host_toggled", zap.String("host", id), zap.Bool("active", active))
	s.persistQuietly(ctx)
	return nil
}

func (s *Scheduler) persistQuietly(ctx context.Context) {
	if err := s.Persist(ctx); err != nil {
		s.log.Warn("persist_error", zap.Error(err))
	}
}
