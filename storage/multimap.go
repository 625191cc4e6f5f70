package storage

import (
	"fmt"
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/drpcorg/recidx/store"
)

// UniqueMultiMap maps a value to the set of entries holding it, while an
// entry maps to at most one value at a time. Re-inserting an entry under
// its current value is a no-op; inserting it under a new value moves it.
//
// The forward and reverse maps are mutual inverses after every
// operation: an entry present in one is present in the other with the
// matching value.
type UniqueMultiMap[V comparable] struct {
	fwd map[V]*roaring64.Bitmap
	rev map[store.ID]V
}

func NewUniqueMultiMap[V comparable]() *UniqueMultiMap[V] {
	return &UniqueMultiMap[V]{
		fwd: make(map[V]*roaring64.Bitmap),
		rev: make(map[store.ID]V),
	}
}

// Get yields the entries recorded under v. The sequence is restartable;
// order is unspecified.
func (m *UniqueMultiMap[V]) Get(v V) iter.Seq[store.ID] {
	return func(yield func(store.ID) bool) {
		set, ok := m.fwd[v]
		if !ok {
			return
		}
		it := set.Iterator()
		for it.HasNext() {
			if !yield(store.ID(it.Next())) {
				return
			}
		}
	}
}

// Count returns the number of entries recorded under v.
func (m *UniqueMultiMap[V]) Count(v V) uint64 {
	set, ok := m.fwd[v]
	if !ok {
		return 0
	}
	return set.GetCardinality()
}

// Len returns the total number of entries in the map.
func (m *UniqueMultiMap[V]) Len() int {
	return len(m.rev)
}

// Put records the entry under v, moving it from its previous value if
// it had one. Returns the previous value.
func (m *UniqueMultiMap[V]) Put(v V, id store.ID) (old V, had bool) {
	old, had = m.rev[id]
	if had && old == v {
		return old, had
	}
	if had {
		m.purge(old, id, "put")
	}
	m.rev[id] = v
	set, ok := m.fwd[v]
	if !ok {
		set = roaring64.NewBitmap()
		m.fwd[v] = set
	}
	set.Add(uint64(id))
	return old, had
}

// Remove erases the entry from both maps. Returns the value it was
// recorded under.
func (m *UniqueMultiMap[V]) Remove(id store.ID) (old V, had bool) {
	old, had = m.rev[id]
	if !had {
		return old, had
	}
	delete(m.rev, id)
	m.purge(old, id, "remove")
	return old, had
}

// purge drops the entry from v's set, deleting the set once empty. The
// set must exist: the reverse map said so.
func (m *UniqueMultiMap[V]) purge(v V, id store.ID, op string) {
	set, ok := m.fwd[v]
	if !ok {
		panic(fmt.Sprintf("recidx: %s: reverse map value missing from forward map", op))
	}
	set.Remove(uint64(id))
	if set.IsEmpty() {
		delete(m.fwd, v)
	}
}
