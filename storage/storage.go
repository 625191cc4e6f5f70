// Package storage provides the backends that hold an index's
// entry-to-value mapping.
//
// Three backends are available:
//
//   - Hashmap keeps a bidirectional in-memory mapping, reconciled
//     incrementally against the collection's change feed. O(1) lookups,
//     bounded staleness between refreshes.
//
//   - Fullscan keeps nothing and recomputes derived values on every
//     lookup. Always consistent, O(n) per lookup.
//
//   - Pebble keeps the same mapping as Hashmap in a pebble keyspace,
//     for indexes too large to pin in memory.
package storage

import (
	"iter"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drpcorg/recidx/store"
)

var ScanCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "recidx",
	Subsystem: "index",
	Name:      "scans",
}, []string{"index"})

var RefreshSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "recidx",
	Subsystem: "index",
	Name:      "refresh_skipped",
}, []string{"index"})

var RemovalCleanups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "recidx",
	Subsystem: "index",
	Name:      "removal_cleanups",
}, []string{"index"})

var RefreshDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "recidx",
	Subsystem: "index",
	Name:      "refresh_duration",
	Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
}, []string{"index"})

// Storage holds the mapping behind one index.
//
// Refresh brings the mapping up to date with the collection unless it
// already ran at the current tick; ForceRefresh reconciles
// unconditionally. Lookup never mutates the mapping.
type Storage[V comparable] interface {
	Lookup(v V) iter.Seq[store.ID]
	Refresh()
	ForceRefresh()
	Close() error
}
