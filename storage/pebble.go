package storage

import (
	"bytes"
	"encoding/binary"
	"iter"
	"log/slog"
	"math"
	"time"

	"github.com/cespare/xxhash"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/drpcorg/recidx/store"
	"github.com/drpcorg/recidx/utils"
)

// Pebble keeps the entry-to-value mapping in a pebble keyspace instead
// of RAM, for indexes too large to pin in memory. The refresh and
// removal contract is the same as Hashmap's.
//
// Key layout, all keys start with 'I':
//
//   - forward: "IH" + hash(u64, BE) + entry_id(u64, BE) -> encoded value
//   - reverse: "IR" + entry_id(u64, BE) -> encoded value
//
// The hash is xxhash of the encoded value; lookups iterate the hash
// prefix and verify the stored encoding, so collisions cost extra reads
// but never wrong results. A small LRU caches encoded-value -> ids for
// repeat lookups and is invalidated per touched value.
//
// The keyspace lives on an in-memory filesystem unless a directory is
// configured; either way it starts empty with the index. This backend
// trades memory for disk, it does not carry the index across restarts.
type Pebble[R any, V comparable] struct {
	name   string
	coll   store.Collection[R]
	value  func(R) V
	encode func(V) []byte

	db    *pebble.DB
	cache *lru.Cache[string, []store.ID]
	wo    *pebble.WriteOptions
	log   utils.Logger

	last  store.Tick
	unsub func()
	err   error
}

type PebbleOptions struct {
	// Dir is the pebble directory. Empty means an in-memory filesystem.
	Dir string
	// CacheSize is the lookup cache capacity in values.
	CacheSize int
	// WriteOptions for every index write; defaults to NoSync.
	WriteOptions *pebble.WriteOptions
	Logger       utils.Logger
}

func (o *PebbleOptions) SetDefaults() {
	if o.CacheSize == 0 {
		o.CacheSize = 1024
	}
	if o.WriteOptions == nil {
		o.WriteOptions = pebble.NoSync
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
}

func NewPebble[R any, V comparable](name string, coll store.Collection[R], value func(R) V, encode func(V) []byte, opts PebbleOptions) (*Pebble[R, V], error) {
	opts.SetDefaults()
	popts := &pebble.Options{}
	path := opts.Dir
	if path == "" {
		popts.FS = vfs.NewMem()
		path = "recidx"
	}
	db, err := pebble.Open(path, popts)
	if err != nil {
		return nil, err
	}
	cache, _ := lru.New[string, []store.ID](opts.CacheSize)
	p := &Pebble[R, V]{
		name:   name,
		coll:   coll,
		value:  value,
		encode: encode,
		db:     db,
		cache:  cache,
		wo:     opts.WriteOptions,
		log:    opts.Logger,
	}
	p.unsub = coll.OnRemove(p.onRemove)
	return p, nil
}

func fwdKey(hash uint64, id store.ID) []byte {
	key := []byte{'I', 'H'}
	key = binary.BigEndian.AppendUint64(key, hash)
	key = binary.BigEndian.AppendUint64(key, uint64(id))
	return key
}

func revKey(id store.ID) []byte {
	key := []byte{'I', 'R'}
	key = binary.BigEndian.AppendUint64(key, uint64(id))
	return key
}

// lastKnown reads the reverse entry for id: the encoded value the entry
// was last indexed under.
func (p *Pebble[R, V]) lastKnown(id store.ID) ([]byte, bool, error) {
	val, closer, err := p.db.Get(revKey(id))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte{}, val...)
	_ = closer.Close()
	return out, true, nil
}

func (p *Pebble[R, V]) onRemove(id store.ID) {
	old, had, err := p.lastKnown(id)
	if err != nil {
		p.fail("removal cleanup read", err)
		return
	}
	if !had {
		return
	}
	if err := p.db.Delete(fwdKey(xxhash.Sum64(old), id), p.wo); err != nil {
		p.fail("removal cleanup delete", err)
		return
	}
	if err := p.db.Delete(revKey(id), p.wo); err != nil {
		p.fail("removal cleanup delete", err)
		return
	}
	p.cache.Remove(string(old))
	RemovalCleanups.WithLabelValues(p.name).Inc()
}

// Lookup yields the entries indexed under v.
func (p *Pebble[R, V]) Lookup(v V) iter.Seq[store.ID] {
	return func(yield func(store.ID) bool) {
		nb := p.encode(v)
		ids, ok := p.cache.Get(string(nb))
		if !ok {
			ids = p.scanValue(nb)
			p.cache.Add(string(nb), ids)
		}
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

func (p *Pebble[R, V]) scanValue(nb []byte) []store.ID {
	hash := xxhash.Sum64(nb)
	it := p.db.NewIter(&pebble.IterOptions{
		LowerBound: fwdKey(hash, 0),
		UpperBound: append(fwdKey(hash, store.ID(math.MaxUint64)), 0),
	})
	defer it.Close()
	ids := []store.ID{}
	for valid := it.First(); valid; valid = it.Next() {
		// hash collision: a different value under the same prefix
		if !bytes.Equal(it.Value(), nb) {
			continue
		}
		key := it.Key()
		ids = append(ids, store.ID(binary.BigEndian.Uint64(key[len(key)-8:])))
	}
	return ids
}

// Refresh reconciles the keyspace unless it already ran at the current
// tick.
func (p *Pebble[R, V]) Refresh() {
	if p.last == p.coll.Tick() {
		RefreshSkipped.WithLabelValues(p.name).Inc()
		return
	}
	p.ForceRefresh()
}

// ForceRefresh reconciles the keyspace unconditionally. All writes of
// one refresh go into a single batch: the index either advances as a
// whole or not at all. On error the refresh aborts without advancing
// the tick, so the next refresh retries the same window.
func (p *Pebble[R, V]) ForceRefresh() {
	start := time.Now()
	now := p.coll.Tick()
	batch := p.db.NewBatch()
	defer batch.Close()
	touched := []string{}
	for id := range p.coll.ChangedSince(p.last) {
		old, had, err := p.lastKnown(id)
		if err != nil {
			p.fail("refresh read", err)
			return
		}
		rec, ok := p.coll.Get(id)
		if !ok {
			if had {
				_ = batch.Delete(fwdKey(xxhash.Sum64(old), id), p.wo)
				_ = batch.Delete(revKey(id), p.wo)
				touched = append(touched, string(old))
			}
			continue
		}
		nb := p.encode(p.value(rec))
		if had && bytes.Equal(old, nb) {
			continue
		}
		if had {
			_ = batch.Delete(fwdKey(xxhash.Sum64(old), id), p.wo)
			touched = append(touched, string(old))
		}
		_ = batch.Set(fwdKey(xxhash.Sum64(nb), id), nb, p.wo)
		_ = batch.Set(revKey(id), nb, p.wo)
		touched = append(touched, string(nb))
	}
	if err := batch.Commit(p.wo); err != nil {
		p.fail("refresh commit", err)
		return
	}
	for _, v := range touched {
		p.cache.Remove(v)
	}
	p.last = now
	ScanCount.WithLabelValues(p.name).Inc()
	RefreshDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
}

func (p *Pebble[R, V]) fail(op string, err error) {
	p.err = err
	p.log.Error("pebble index "+op+" failed", "index", p.name, "error", err)
}

// Err returns the last storage error, if any. The mapping may be stale
// after an error; the next refresh retries.
func (p *Pebble[R, V]) Err() error {
	return p.err
}

// Close cancels the removal subscription and closes the keyspace.
func (p *Pebble[R, V]) Close() error {
	p.unsub()
	return p.db.Close()
}
