package lenz

// State represents the lifecycle state of a View.
type State int32

const (
	// StateIdle indicates the View has been constructed but Start has not
	// been called.
	StateIdle State = iota

	// StatePopulating indicates the View is building its initial output
	// from a source snapshot. No notifications are emitted in this state.
	StatePopulating

	// StateLive indicates the View is maintaining its output
	// incrementally from source notifications.
	StateLive

	// StateClosed indicates the View has been closed. Its output is empty
	// and it no longer observes the source.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePopulating:
		return "populating"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FeedState represents the health of a Feed.
type FeedState int32

const (
	// FeedLoading indicates the Feed is initializing and has not yet
	// processed a document.
	FeedLoading FeedState = iota

	// FeedHealthy indicates the last document was decoded, validated,
	// and applied.
	FeedHealthy

	// FeedDegraded indicates the last document failed and the previous
	// valid collection remains active.
	FeedDegraded

	// FeedEmpty indicates the collection has no elements: either the
	// initial document failed and nothing valid has ever been obtained,
	// or the last applied document decoded to an empty collection. The
	// Feed continues watching either way.
	FeedEmpty
)

// String returns the string representation of the feed state.
func (s FeedState) String() string {
	switch s {
	case FeedLoading:
		return "loading"
	case FeedHealthy:
		return "healthy"
	case FeedDegraded:
		return "degraded"
	case FeedEmpty:
		return "empty"
	default:
		return "unknown"
	}
}
