package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

var (
	ErrNotFound  = errors.New("host not found")
	ErrInvalidID = errors.New("invalid host id")
)

// Options controls how a registry is seeded.
type Options struct {
	// DefaultHost is added when the persisted set is empty.
	DefaultHost string
	// DefaultInterval replaces a missing or non-positive persisted interval.
	DefaultInterval int
}

// LoadReport describes the outcome of a load or reload.
type LoadReport struct {
	Loaded          int
	Skipped         int
	Added           int
	Removed         int
	Seeded          bool
	IntervalSeconds int
}

// Registry maps host ids to hosts. The map itself is guarded by an RWMutex;
// per-host state is guarded by each Host.
type Registry struct {
	defaultHost     string
	defaultInterval int

	mu    sync.RWMutex
	hosts map[string]*Host
}

// New returns an empty registry.
func New(opts Options) *Registry {
	def := strings.TrimSpace(opts.DefaultHost)
	if def == "" {
		def = domain.DefaultHostID
	}
	return &Registry{
		defaultHost:     def,
		defaultInterval: domain.NormalizeInterval(opts.DefaultInterval),
		hosts:           make(map[string]*Host),
	}
}

// Load builds a registry from the persisted state in store.
func Load(ctx context.Context, store repo.StateStore, opts Options) (*Registry, LoadReport, error) {
	st, err := store.Load(ctx)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("load registry: %w", err)
	}
	r := New(opts)
	return r, r.Apply(st), nil
}

// ValidID reports whether id can be probed. Ids that are empty, contain
// whitespace or look like command-line flags are rejected.
func ValidID(id string) bool {
	if id == "" || strings.HasPrefix(id, "-") {
		return false
	}
	return strings.IndexFunc(id, unicode.IsSpace) < 0
}

// Apply merges a persisted state into the registry. Hosts already present
// keep their live history and take the persisted active flag, new hosts
// arrive with their persisted history and hosts missing from st are dropped.
// Records that do not decode are skipped.
func (r *Registry) Apply(st repo.State) LoadReport {
	rep := LoadReport{IntervalSeconds: st.IntervalSeconds}
	if rep.IntervalSeconds <= 0 {
		rep.IntervalSeconds = r.defaultInterval
	}

	incoming := make(map[string]domain.HostSnapshot, len(st.Records))
	for _, raw := range st.Records {
		s, err := domain.DecodeRecord(raw)
		if err != nil || !ValidID(s.ID) {
			rep.Skipped++
			continue
		}
		incoming[s.ID] = s
	}
	rep.Loaded = len(incoming)

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(incoming) == 0 {
		incoming[r.defaultHost] = domain.HostSnapshot{ID: r.defaultHost, Active: true}
		rep.Seeded = true
	}

	for id := range r.hosts {
		if _, ok := incoming[id]; !ok {
			delete(r.hosts, id)
			rep.Removed++
		}
	}
	for id, s := range incoming {
		if h, ok := r.hosts[id]; ok {
			h.setActive(s.Active)
			continue
		}
		r.hosts[id] = newHost(s)
		rep.Added++
	}
	return rep
}

// Hosts returns the current hosts ordered by id.
func (r *Registry) Hosts() []*Host {
	r.mu.RLock()
	out := make([]*Host, 0, len(r.hosts))
	for _, h := range r.hosts {
		out = append(out, h)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Active returns the hosts that take part in probe rounds.
func (r *Registry) Active() []*Host {
	all := r.Hosts()
	out := all[:0]
	for _, h := range all {
		if h.Active() {
			out = append(out, h)
		}
	}
	return out
}

func (r *Registry) Get(id string) (*Host, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hosts[id]
	return h, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hosts)
}

// SetActive toggles participation in later rounds. History is kept.
func (r *Registry) SetActive(id string, active bool) error {
	h, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("set active %q: %w", id, ErrNotFound)
	}
	h.setActive(active)
	return nil
}

// Add inserts an active host with an empty history. It reports false when
// the host already exists.
func (r *Registry) Add(id string) (bool, error) {
	id = strings.TrimSpace(id)
	if !ValidID(id) {
		return false, fmt.Errorf("add %q: %w", id, ErrInvalidID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hosts[id]; ok {
		return false, nil
	}
	r.hosts[id] = newHost(domain.HostSnapshot{ID: id, Active: true})
	return true, nil
}

// Snapshot copies every host, ordered by id.
func (r *Registry) Snapshot() []domain.HostSnapshot {
	hosts := r.Hosts()
	out := make([]domain.HostSnapshot, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, h.Snapshot())
	}
	return out
}

// State serializes the registry together with the interval for persistence.
func (r *Registry) State(intervalSeconds int) (repo.State, error) {
	snaps := r.Snapshot()
	st := repo.State{IntervalSeconds: intervalSeconds, Records: make([]string, 0, len(snaps))}
	for _, s := range snaps {
		rec, err := domain.EncodeRecord(s)
		if err != nil {
			return repo.State{}, err
		}
		st.Records = append(st.Records, rec)
	}
	return st, nil
}
