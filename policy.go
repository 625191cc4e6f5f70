package recidx

// RefreshPolicy selects when an Index refreshes its cached mapping.
// Fixed at index construction.
type RefreshPolicy byte

const (
	// RefreshBeforeUse refreshes (tick-idempotently) before every
	// lookup. A good default.
	RefreshBeforeUse RefreshPolicy = iota
	// RefreshEachStep refreshes once at the host's step boundary,
	// whether or not the index is used that step. Requires a Stepper.
	RefreshEachStep
	// RefreshManual never refreshes implicitly; only explicit Refresh
	// and ForceRefresh calls update the cache.
	RefreshManual
)

func (p RefreshPolicy) String() string {
	switch p {
	case RefreshBeforeUse:
		return "before_use"
	case RefreshEachStep:
		return "each_step"
	case RefreshManual:
		return "manual"
	}
	return "unknown"
}
