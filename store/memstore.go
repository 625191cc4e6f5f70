package store

import (
	"iter"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Store is an in-memory reference record store: it owns the logical
// clock, allocates entry ids and coordinates despawns across the typed
// collections attached to it.
//
// Mutation follows the single-writer discipline: at most one goroutine
// mutates the store and its collections at a time. Subscriber
// registries are the exception, they may be touched from hook callbacks
// while the host steps.
type Store struct {
	tick   uint64
	nextID uint64

	colls    []eraser
	stepSubs *xsync.MapOf[uint64, func(Tick)]
	subSeq   atomic.Uint64
}

type eraser interface {
	erase(id ID) bool
}

func NewStore() *Store {
	return &Store{
		tick:     1,
		stepSubs: xsync.NewMapOf[uint64, func(Tick)](),
	}
}

// Tick returns the current logical time.
func (s *Store) Tick() Tick {
	return Tick(s.tick)
}

// Step advances the logical clock by one and fires the step hooks.
func (s *Store) Step() Tick {
	s.tick++
	t := Tick(s.tick)
	s.stepSubs.Range(func(_ uint64, fn func(Tick)) bool {
		fn(t)
		return true
	})
	return t
}

// OnStep registers a step-boundary hook. Implements Stepper.
func (s *Store) OnStep(fn func(Tick)) (cancel func()) {
	key := s.subSeq.Add(1)
	s.stepSubs.Store(key, fn)
	return func() { s.stepSubs.Delete(key) }
}

// NewEntry allocates a fresh entry id. Ids are never reused.
func (s *Store) NewEntry() ID {
	s.nextID++
	return ID(s.nextID)
}

// Despawn removes the entry from every collection it appears in,
// delivering the removal notifications of each.
func (s *Store) Despawn(id ID) {
	for _, c := range s.colls {
		c.erase(id)
	}
}

type slot[R any] struct {
	rec     R
	changed Tick
}

// MemCollection holds the records of one type, stamping each write with
// the store's current tick. It implements Collection.
type MemCollection[R any] struct {
	store      *Store
	slots      map[ID]*slot[R]
	removeSubs *xsync.MapOf[uint64, func(ID)]
}

func NewCollection[R any](s *Store) *MemCollection[R] {
	c := &MemCollection[R]{
		store:      s,
		slots:      make(map[ID]*slot[R]),
		removeSubs: xsync.NewMapOf[uint64, func(ID)](),
	}
	s.colls = append(s.colls, c)
	return c
}

func (c *MemCollection[R]) Tick() Tick {
	return c.store.Tick()
}

// Put attaches a record to the entry, replacing any previous one.
func (c *MemCollection[R]) Put(id ID, rec R) {
	c.slots[id] = &slot[R]{rec: rec, changed: c.store.Tick()}
}

// Update mutates the record in place and restamps it. Reports whether
// the entry held a record.
func (c *MemCollection[R]) Update(id ID, fn func(*R)) bool {
	s, ok := c.slots[id]
	if !ok {
		return false
	}
	fn(&s.rec)
	s.changed = c.store.Tick()
	return true
}

// Remove drops the record from the entry and delivers removal
// notifications. Reports whether the entry held a record.
func (c *MemCollection[R]) Remove(id ID) bool {
	return c.erase(id)
}

func (c *MemCollection[R]) erase(id ID) bool {
	if _, ok := c.slots[id]; !ok {
		return false
	}
	delete(c.slots, id)
	c.removeSubs.Range(func(_ uint64, fn func(ID)) bool {
		fn(id)
		return true
	})
	return true
}

func (c *MemCollection[R]) Get(id ID) (R, bool) {
	s, ok := c.slots[id]
	if !ok {
		var zero R
		return zero, false
	}
	return s.rec, true
}

func (c *MemCollection[R]) All() iter.Seq2[ID, R] {
	return func(yield func(ID, R) bool) {
		for id, s := range c.slots {
			if !yield(id, s.rec) {
				return
			}
		}
	}
}

func (c *MemCollection[R]) ChangedSince(since Tick) iter.Seq[ID] {
	return func(yield func(ID) bool) {
		for id, s := range c.slots {
			if s.changed >= since && !yield(id) {
				return
			}
		}
	}
}

// OnRemove registers a removal hook. Notifications are delivered
// synchronously from Remove and Despawn, so the buffering window of
// this reference store is zero.
func (c *MemCollection[R]) OnRemove(fn func(ID)) (cancel func()) {
	key := c.store.subSeq.Add(1)
	c.removeSubs.Store(key, fn)
	return func() { c.removeSubs.Delete(key) }
}
