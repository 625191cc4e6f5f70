package storage

import (
	"iter"

	"github.com/drpcorg/recidx/store"
)

// Fullscan keeps no state at all. Every lookup walks the whole
// collection and recomputes the derived value per entry, so results are
// always consistent and refreshing is a no-op. Worth it when the record
// set is small or lookups are rare.
type Fullscan[R any, V comparable] struct {
	name  string
	coll  store.Collection[R]
	value func(R) V
}

func NewFullscan[R any, V comparable](name string, coll store.Collection[R], value func(R) V) *Fullscan[R, V] {
	return &Fullscan[R, V]{name: name, coll: coll, value: value}
}

func (f *Fullscan[R, V]) Lookup(v V) iter.Seq[store.ID] {
	return func(yield func(store.ID) bool) {
		ScanCount.WithLabelValues(f.name).Inc()
		for id, rec := range f.coll.All() {
			if f.value(rec) == v && !yield(id) {
				return
			}
		}
	}
}

func (f *Fullscan[R, V]) Refresh() {}

func (f *Fullscan[R, V]) ForceRefresh() {}

func (f *Fullscan[R, V]) Close() error { return nil }
