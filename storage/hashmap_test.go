package storage

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/drpcorg/recidx/store"
)

func odd(n int) bool { return n%2 == 1 }

// three entries deriving to {true, false, true}
func oddFixture(t *testing.T, name string) (*store.Store, *store.MemCollection[int], *Hashmap[int, bool]) {
	t.Helper()
	st := store.NewStore()
	coll := store.NewCollection[int](st)
	coll.Put(st.NewEntry(), 1)
	coll.Put(st.NewEntry(), 2)
	coll.Put(st.NewEntry(), 3)
	h := NewHashmap(name, coll, odd)
	return st, coll, h
}

func assertMapInverse[V comparable](t *testing.T, mm *UniqueMultiMap[V]) {
	t.Helper()
	for id, v := range mm.rev {
		set, ok := mm.fwd[v]
		if assert.True(t, ok, "value of %s missing from forward map", id) {
			assert.True(t, set.Contains(uint64(id)), "%s missing from its value set", id)
		}
	}
	total := 0
	for _, set := range mm.fwd {
		total += int(set.GetCardinality())
	}
	assert.Equal(t, len(mm.rev), total)
}

func TestHashmapInitialBuild(t *testing.T) {
	_, _, h := oddFixture(t, "hm_build")
	defer h.Close()

	h.Refresh()
	assert.Equal(t, []store.ID{1, 3}, collect(t, h.Lookup(true)))
	assert.Equal(t, []store.ID{2}, collect(t, h.Lookup(false)))
	assertMapInverse(t, h.mm)
}

func TestHashmapStaleUntilRefresh(t *testing.T) {
	st, coll, h := oddFixture(t, "hm_stale")
	defer h.Close()

	h.Refresh()
	st.Step()
	coll.Update(2, func(n *int) { *n = 5 })

	// cache still reflects the previous refresh
	assert.Equal(t, []store.ID{1, 3}, collect(t, h.Lookup(true)))

	h.Refresh()
	assert.Equal(t, []store.ID{1, 2, 3}, collect(t, h.Lookup(true)))
	assert.Equal(t, []store.ID{}, collect(t, h.Lookup(false)))
	assertMapInverse(t, h.mm)
}

func TestHashmapRemovalCleanup(t *testing.T) {
	_, coll, h := oddFixture(t, "hm_removal")
	defer h.Close()

	h.Refresh()
	coll.Remove(3)

	// no refresh in between: the removal notification did the cleanup
	assert.Equal(t, []store.ID{1}, collect(t, h.Lookup(true)))
	assertMapInverse(t, h.mm)
}

func TestHashmapDespawnCleanup(t *testing.T) {
	st, _, h := oddFixture(t, "hm_despawn")
	defer h.Close()

	h.Refresh()
	st.Despawn(1)
	st.Despawn(2)

	assert.Equal(t, []store.ID{3}, collect(t, h.Lookup(true)))
	assert.Equal(t, []store.ID{}, collect(t, h.Lookup(false)))
	assertMapInverse(t, h.mm)
}

func TestHashmapTickGuard(t *testing.T) {
	_, _, h := oddFixture(t, "hm_guard")
	defer h.Close()

	scans := testutil.ToFloat64(ScanCount.WithLabelValues("hm_guard"))
	skips := testutil.ToFloat64(RefreshSkipped.WithLabelValues("hm_guard"))

	h.Refresh()
	h.Refresh()

	assert.Equal(t, scans+1, testutil.ToFloat64(ScanCount.WithLabelValues("hm_guard")))
	assert.Equal(t, skips+1, testutil.ToFloat64(RefreshSkipped.WithLabelValues("hm_guard")))
}

func TestHashmapSameTickChangeNeedsForce(t *testing.T) {
	_, coll, h := oddFixture(t, "hm_same_tick")
	defer h.Close()

	h.Refresh()
	coll.Update(2, func(n *int) { *n = 5 })

	// already refreshed this tick, the guarded path is a no-op
	h.Refresh()
	assert.Equal(t, []store.ID{1, 3}, collect(t, h.Lookup(true)))

	// the change window includes the last-refreshed tick, so forcing
	// picks up same-tick writes
	h.ForceRefresh()
	assert.Equal(t, []store.ID{1, 2, 3}, collect(t, h.Lookup(true)))
}

func TestHashmapForceRefreshIdempotent(t *testing.T) {
	_, _, h := oddFixture(t, "hm_force_idem")
	defer h.Close()

	h.ForceRefresh()
	before := collect(t, h.Lookup(true))
	h.ForceRefresh()
	assert.Equal(t, before, collect(t, h.Lookup(true)))
	assertMapInverse(t, h.mm)
}

func TestHashmapOnlyFinalValueObserved(t *testing.T) {
	st, coll, h := oddFixture(t, "hm_final_value")
	defer h.Close()

	h.Refresh()
	st.Step()
	coll.Update(1, func(n *int) { *n = 2 })
	st.Step()
	coll.Update(1, func(n *int) { *n = 7 })

	h.Refresh()
	assert.Equal(t, []store.ID{1, 3}, collect(t, h.Lookup(true)))
	assert.Equal(t, []store.ID{2}, collect(t, h.Lookup(false)))
	assertMapInverse(t, h.mm)
}

func TestHashmapNewEntriesBetweenRefreshes(t *testing.T) {
	st, coll, h := oddFixture(t, "hm_new_entries")
	defer h.Close()

	h.Refresh()
	st.Step()
	coll.Put(st.NewEntry(), 9)

	h.Refresh()
	assert.Equal(t, []store.ID{1, 3, 4}, collect(t, h.Lookup(true)))
	assertMapInverse(t, h.mm)
}
