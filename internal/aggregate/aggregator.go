package aggregate

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind names one of the two result mappings.
type Kind string

const (
	KindAll   Kind = "all"
	KindExact Kind = "exact"
)

// Mirror receives every merged partial result, e.g. to share progress with
// other processes.
type Mirror interface {
	Add(ctx context.Context, kind Kind, m Mapping) error
}

// Aggregator owns the all and exact mappings. Each mapping has its own lock
// and no code path holds both while the other is being written.
type Aggregator struct {
	allMu sync.Mutex
	all   Mapping

	exactMu sync.Mutex
	exact   Mapping

	mirror        Mirror
	mirrorTimeout time.Duration
	logger        *slog.Logger
}

type Option func(*Aggregator)

func WithMirror(m Mirror) Option {
	return func(a *Aggregator) {
		a.mirror = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		all:           make(Mapping),
		exact:         make(Mapping),
		mirrorTimeout: 5 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Merge unions one worker's partial result into the mappings. Exact entries
// are also unioned into all so the exact keys stay a subset of the all keys.
// Merging the same partial twice is a no-op.
func (a *Aggregator) Merge(all, exact Mapping) {
	if len(all) == 0 && len(exact) == 0 {
		return
	}

	a.allMu.Lock()
	a.all.Union(all)
	a.all.Union(exact)
	a.allMu.Unlock()

	if len(exact) > 0 {
		a.exactMu.Lock()
		a.exact.Union(exact)
		a.exactMu.Unlock()
	}

	if a.mirror != nil {
		a.mirrorPartial(KindAll, all)
		a.mirrorPartial(KindExact, exact)
	}
}

// Seed loads previously collected results without mirroring them again.
func (a *Aggregator) Seed(all, exact Mapping) {
	a.allMu.Lock()
	a.all.Union(all)
	a.all.Union(exact)
	a.allMu.Unlock()

	a.exactMu.Lock()
	a.exact.Union(exact)
	a.exactMu.Unlock()
}

func (a *Aggregator) mirrorPartial(kind Kind, m Mapping) {
	if len(m) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.mirrorTimeout)
	defer cancel()
	if err := a.mirror.Add(ctx, kind, m); err != nil {
		a.logger.Warn("mirror update failed", "kind", kind, "error", err)
	}
}

// Snapshot returns deep copies of both mappings taken under their locks.
// Merge writes all before exact, so exact is copied first and every entry
// it holds is already in the later copy of all.
func (a *Aggregator) Snapshot() (all, exact Mapping) {
	a.exactMu.Lock()
	exact = a.exact.Clone()
	a.exactMu.Unlock()

	a.allMu.Lock()
	all = a.all.Clone()
	a.allMu.Unlock()
	return all, exact
}

// Counts returns the number of distinct emails in each mapping.
func (a *Aggregator) Counts() (all, exact int) {
	a.exactMu.Lock()
	exact = len(a.exact)
	a.exactMu.Unlock()

	a.allMu.Lock()
	all = len(a.all)
	a.allMu.Unlock()
	return all, exact
}
