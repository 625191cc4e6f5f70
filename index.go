package recidx

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/drpcorg/recidx/storage"
	"github.com/drpcorg/recidx/store"
	"github.com/drpcorg/recidx/utils"
)

type Options struct {
	// Name labels the index in logs and metrics.
	Name string
	// Policy selects when the cached mapping is refreshed.
	Policy RefreshPolicy
	// Stepper is the host's step boundary; required for
	// RefreshEachStep, ignored otherwise.
	Stepper store.Stepper
	Logger  utils.Logger
}

func (o *Options) SetDefaults() {
	if o.Name == "" {
		o.Name = "index"
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
}

// Index is the public surface of one secondary index: lookups plus
// policy-gated refreshing over a storage backend.
//
// Single-writer: lookups may be issued by several consumers within a
// step, but must not interleave with a refresh or a host mutation of
// the same index.
type Index[V comparable] struct {
	name   string
	st     storage.Storage[V]
	policy RefreshPolicy
	log    utils.Logger
	unstep func()
}

func New[V comparable](st storage.Storage[V], opts Options) (*Index[V], error) {
	opts.SetDefaults()
	ix := &Index[V]{
		name:   opts.Name,
		st:     st,
		policy: opts.Policy,
		log:    opts.Logger,
	}
	if opts.Policy == RefreshEachStep {
		if opts.Stepper == nil {
			return nil, fmt.Errorf("%w: index %q", ErrNoStepper, opts.Name)
		}
		ix.unstep = opts.Stepper.OnStep(func(store.Tick) {
			ix.refresh("step")
		})
	}
	return ix, nil
}

// Lookup yields the entries whose derived value equals v. The sequence
// is lazy, finite and restartable; order is unspecified. Under the
// before-use policy the cache is refreshed first; under manual policy
// results may be stale until an explicit refresh.
func (ix *Index[V]) Lookup(v V) iter.Seq[store.ID] {
	if ix.policy == RefreshBeforeUse {
		ix.refresh("policy")
	}
	LookupCount.WithLabelValues(ix.name).Inc()
	return ix.st.Lookup(v)
}

// LookupOne returns the single entry whose derived value equals v.
// ok is false when no entry matches; ErrUniqueViolation is returned
// when several do.
func (ix *Index[V]) LookupOne(v V) (id store.ID, ok bool, err error) {
	n := 0
	for found := range ix.Lookup(v) {
		if n == 0 {
			id = found
		}
		n++
		if n > 1 {
			break
		}
	}
	switch n {
	case 0:
		return 0, false, nil
	case 1:
		return id, true, nil
	}
	return 0, false, fmt.Errorf("%w: index %q, value %v", ErrUniqueViolation, ix.name, v)
}

// MustOne returns the entry whose derived value equals v, panicking
// unless exactly one matches. Only for callers holding an external
// uniqueness invariant.
func (ix *Index[V]) MustOne(v V) store.ID {
	id, ok, err := ix.LookupOne(v)
	if err != nil {
		panic(err.Error())
	}
	if !ok {
		panic(fmt.Sprintf("recidx: index %q: no entry for value %v", ix.name, v))
	}
	return id
}

// Refresh brings the cached mapping up to date unless it was already
// refreshed at the current logical time.
func (ix *Index[V]) Refresh() {
	ix.refresh("manual")
}

func (ix *Index[V]) refresh(reason string) {
	RefreshCount.WithLabelValues(ix.name, reason).Inc()
	ix.log.Debug("index refresh", "index", ix.name, "reason", reason)
	ix.st.Refresh()
}

// ForceRefresh reconciles the cached mapping unconditionally, bypassing
// both the policy and the tick guard.
func (ix *Index[V]) ForceRefresh() {
	RefreshCount.WithLabelValues(ix.name, "forced").Inc()
	ix.log.Debug("index refresh", "index", ix.name, "reason", "forced")
	ix.st.ForceRefresh()
}

// Close cancels the step subscription and closes the backend.
func (ix *Index[V]) Close() error {
	if ix.unstep != nil {
		ix.unstep()
	}
	return ix.st.Close()
}
