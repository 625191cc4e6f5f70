package storage

import (
	"iter"
	"time"

	"github.com/drpcorg/recidx/store"
)

// Hashmap caches the entry-to-value mapping in a UniqueMultiMap and
// reconciles it incrementally: a refresh re-derives values only for the
// entries the collection reports as changed since the previous refresh.
// Removal notifications erase stale entries directly, without waiting
// for a refresh, since a removed record can no longer be re-derived.
type Hashmap[R any, V comparable] struct {
	name  string
	coll  store.Collection[R]
	value func(R) V

	mm    *UniqueMultiMap[V]
	last  store.Tick
	unsub func()
}

// NewHashmap builds an empty cached mapping over the collection. The
// first refresh sees every record as changed and performs the initial
// build.
func NewHashmap[R any, V comparable](name string, coll store.Collection[R], value func(R) V) *Hashmap[R, V] {
	h := &Hashmap[R, V]{
		name:  name,
		coll:  coll,
		value: value,
		mm:    NewUniqueMultiMap[V](),
	}
	h.unsub = coll.OnRemove(h.onRemove)
	return h
}

func (h *Hashmap[R, V]) onRemove(id store.ID) {
	if _, had := h.mm.Remove(id); had {
		RemovalCleanups.WithLabelValues(h.name).Inc()
	}
}

// Lookup reads the cached set for v. Pure read; refreshing is the
// caller's business.
func (h *Hashmap[R, V]) Lookup(v V) iter.Seq[store.ID] {
	return h.mm.Get(v)
}

// Refresh reconciles the cache unless it already ran at the current
// tick. No new changes can appear within one tick, so the second call
// would rescan for nothing.
func (h *Hashmap[R, V]) Refresh() {
	if h.last == h.coll.Tick() {
		RefreshSkipped.WithLabelValues(h.name).Inc()
		return
	}
	h.ForceRefresh()
}

// ForceRefresh reconciles the cache unconditionally. Entries that
// changed several times since the last refresh are processed once,
// using only their current record.
func (h *Hashmap[R, V]) ForceRefresh() {
	start := time.Now()
	now := h.coll.Tick()
	for id := range h.coll.ChangedSince(h.last) {
		rec, ok := h.coll.Get(id)
		if !ok {
			// removed between the change scan and here
			h.mm.Remove(id)
			continue
		}
		h.mm.Put(h.value(rec), id)
	}
	h.last = now
	ScanCount.WithLabelValues(h.name).Inc()
	RefreshDuration.WithLabelValues(h.name).Observe(time.Since(start).Seconds())
}

// Close cancels the removal subscription.
func (h *Hashmap[R, V]) Close() error {
	h.unsub()
	return nil
}
