// Package recidx maintains secondary indexes over a host-managed,
// continuously mutating record store.
//
// # Overview
//
// The host store owns entries (stable ids) and records (typed values
// attached to entries, stamped with the logical time of their last
// change). An index maps a derived value, computed from a record by a
// pure function, back to the set of entries holding it, so that
// consumers can resolve "which entries derive to v" without rescanning
// the store on every query.
//
// An Index binds a storage backend to a refresh policy:
//
//   - storage.Hashmap caches a bidirectional entry/value mapping and
//     reconciles it incrementally from the collection's change feed.
//   - storage.Fullscan caches nothing and recomputes on every lookup.
//   - storage.Pebble keeps the Hashmap contract with the mapping in a
//     pebble keyspace, for indexes too large to pin in memory.
//
// # Refreshing
//
// A cached mapping lags the store until refreshed. Refresh is pulled,
// tick-idempotent (a second refresh at the same logical time is a
// no-op) and policy-gated:
//
//   - RefreshBeforeUse runs the guarded refresh before every lookup.
//   - RefreshEachStep refreshes at the host's step boundary whether or
//     not the index is used that step.
//   - RefreshManual never refreshes implicitly.
//
// ForceRefresh bypasses both the policy and the tick guard, for call
// sites that cannot tolerate the staleness window.
//
// Removals travel a separate path: the host's removal notifications
// erase stale mapping entries directly, because a removed record can no
// longer be rescanned for its current value. With a host that buffers
// notifications, the staleness window for removals is bounded by that
// buffer; the in-memory reference store delivers them synchronously.
//
// # Unique lookups
//
// LookupOne returns the single matching entry, absence, or
// ErrUniqueViolation when several entries match. MustOne panics unless
// exactly one entry matches; use it only under an external uniqueness
// invariant.
package recidx
