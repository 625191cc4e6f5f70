// Defines the host-side surface consumed by the index engine.
package store

import (
	"fmt"
	"iter"
)

// Tick is the host's logical time, advanced once per scheduling step.
// It is monotonically non-decreasing; zero means "never".
type Tick uint64

// ID is a stable identifier for a slot in the host record store. The
// index engine only records ids, it never owns the records behind them.
type ID uint64

func (id ID) String() string {
	return fmt.Sprintf("e-%d", uint64(id))
}

// Collection is the per-record-type view of the host store that an index
// reconciles against: record access, entry enumeration, change-since
// queries and removal notifications.
//
// All methods except OnRemove follow the host's single-writer discipline:
// they must not be called concurrently with a mutation of the same
// collection.
type Collection[R any] interface {
	// Tick returns the current logical time.
	Tick() Tick

	// Get returns the current record held by the entry, if any.
	Get(id ID) (R, bool)

	// All enumerates every entry currently holding a record.
	All() iter.Seq2[ID, R]

	// ChangedSince yields the entries whose record was stamped at a tick
	// greater than or equal to since. The boundary is inclusive so that
	// writes made in the same step as the previous refresh are observed
	// by the next one.
	ChangedSince(since Tick) iter.Seq[ID]

	// OnRemove registers a callback invoked when a record is dropped from
	// an entry or the entry itself is despawned. The returned function
	// cancels the subscription.
	OnRemove(fn func(ID)) (cancel func())
}

// Stepper exposes the host's step boundary. Only the once-per-step
// refresh policy needs it.
type Stepper interface {
	OnStep(fn func(Tick)) (cancel func())
}
