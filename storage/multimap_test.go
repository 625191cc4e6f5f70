package storage

import (
	"iter"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/drpcorg/recidx/store"
)

func collect(t *testing.T, seq iter.Seq[store.ID]) []store.ID {
	t.Helper()
	ids := []store.ID{}
	for id := range seq {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// flatten renders both directions of the map as value -> sorted ids, so
// the mutual-inverse invariant reduces to "the two renderings agree".
func flattenForward(m *UniqueMultiMap[string]) map[string][]uint64 {
	out := map[string][]uint64{}
	for v, set := range m.fwd {
		ids := set.ToArray()
		slices.Sort(ids)
		out[v] = ids
	}
	return out
}

func flattenReverse(m *UniqueMultiMap[string]) map[string][]uint64 {
	out := map[string][]uint64{}
	for id, v := range m.rev {
		out[v] = append(out[v], uint64(id))
	}
	for _, ids := range out {
		slices.Sort(ids)
	}
	return out
}

func assertInverse(t *testing.T, m *UniqueMultiMap[string]) {
	t.Helper()
	if diff := cmp.Diff(flattenForward(m), flattenReverse(m)); diff != "" {
		t.Fatalf("forward and reverse maps diverged (-fwd +rev):\n%s", diff)
	}
}

func TestMultiMapPutGet(t *testing.T) {
	m := NewUniqueMultiMap[string]()
	m.Put("red", 1)
	m.Put("red", 3)
	m.Put("blue", 2)

	assert.Equal(t, []store.ID{1, 3}, collect(t, m.Get("red")))
	assert.Equal(t, []store.ID{2}, collect(t, m.Get("blue")))
	assert.Equal(t, []store.ID{}, collect(t, m.Get("green")))
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, uint64(2), m.Count("red"))
	assertInverse(t, m)
}

func TestMultiMapReinsertSameValue(t *testing.T) {
	m := NewUniqueMultiMap[string]()
	m.Put("red", 1)
	old, had := m.Put("red", 1)
	assert.True(t, had)
	assert.Equal(t, "red", old)
	assert.Equal(t, []store.ID{1}, collect(t, m.Get("red")))
	assertInverse(t, m)
}

func TestMultiMapMove(t *testing.T) {
	m := NewUniqueMultiMap[string]()
	m.Put("red", 1)
	m.Put("red", 2)

	old, had := m.Put("blue", 1)
	assert.True(t, had)
	assert.Equal(t, "red", old)
	assert.Equal(t, []store.ID{2}, collect(t, m.Get("red")))
	assert.Equal(t, []store.ID{1}, collect(t, m.Get("blue")))
	assertInverse(t, m)

	// moving the last holder deletes the forward set entirely
	m.Put("blue", 2)
	_, ok := m.fwd["red"]
	assert.False(t, ok)
	assertInverse(t, m)
}

func TestMultiMapRemove(t *testing.T) {
	m := NewUniqueMultiMap[string]()
	m.Put("red", 1)
	m.Put("red", 2)

	old, had := m.Remove(1)
	assert.True(t, had)
	assert.Equal(t, "red", old)
	assert.Equal(t, []store.ID{2}, collect(t, m.Get("red")))

	_, had = m.Remove(1)
	assert.False(t, had)

	old, had = m.Remove(2)
	assert.True(t, had)
	assert.Equal(t, "red", old)
	assert.Equal(t, 0, m.Len())
	_, ok := m.fwd["red"]
	assert.False(t, ok)
	assertInverse(t, m)
}

func TestMultiMapChurnKeepsInverse(t *testing.T) {
	m := NewUniqueMultiMap[string]()
	values := []string{"a", "b", "c", "d"}
	for i := 0; i < 100; i++ {
		id := store.ID(i % 17)
		m.Put(values[i%len(values)], id)
		if i%5 == 0 {
			m.Remove(store.ID((i + 3) % 17))
		}
		assertInverse(t, m)
	}
}
