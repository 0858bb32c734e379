package repo

import "context"

// State is the persisted form of the monitor configuration: a set of
// serialized host records plus the probe interval.
type State struct {
	Records         []string
	IntervalSeconds int
}

// StateStore is implemented by a persistence layer. Load on a store with
// nothing saved returns an empty State and no error.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
}
