package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

// Metrics are the scheduler's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	rounds         prometheus.Counter
	probes         *prometheus.CounterVec
	probeDuration  prometheus.Histogram
	transitions    prometheus.Counter
	discarded      prometheus.Counter
	budgetOverruns prometheus.Counter
	activeHosts    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pingmonitor_rounds_total",
			Help: "Probe rounds started",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pingmonitor_probes_total",
			Help: "Probe results by outcome",
		}, []string{"outcome"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pingmonitor_probe_duration_seconds",
			Help:    "Wall time of a single probe",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		}),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pingmonitor_down_transitions_total",
			Help: "Hosts that went from reachable to failed",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pingmonitor_discarded_results_total",
			Help: "Probe results dropped because the scheduler had stopped",
		}),
		budgetOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pingmonitor_round_budget_overruns_total",
			Help: "Rounds whose snapshot was sent before every probe finished",
		}),
		activeHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pingmonitor_active_hosts",
			Help: "Hosts probed in the latest round",
		}),
	}
	reg.MustRegister(m.rounds, m.probes, m.probeDuration, m.transitions,
		m.discarded, m.budgetOverruns, m.activeHosts)
	return m
}

func outcomeLabel(o domain.Outcome) string {
	switch {
	case !o.Online:
		return "offline"
	case o.LatencyMS == nil:
		return "online_no_rtt"
	default:
		return "online"
	}
}

func (m *Metrics) roundStarted(active int) {
	if m == nil {
		return
	}
	m.rounds.Inc()
	m.activeHosts.Set(float64(active))
}

func (m *Metrics) probed(o domain.Outcome, took time.Duration) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(outcomeLabel(o)).Inc()
	m.probeDuration.Observe(took.Seconds())
}

func (m *Metrics) wentDown() {
	if m != nil {
		m.transitions.Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.discarded.Inc()
	}
}

func (m *Metrics) overran() {
	if m != nil {
		m.budgetOverruns.Inc()
	}
}
