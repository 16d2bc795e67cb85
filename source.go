package lenz

import "context"

// Collection is the minimal contract every view source satisfies: it can
// produce a stable snapshot of its current elements. A source that offers
// nothing else still works in degraded mode, where the view's output only
// updates via Refresh.
type Collection[S any] interface {
	// Snapshot returns a copy of the current elements in order.
	Snapshot() []S
}

// ChangeNotifier is implemented by sources that report structural changes.
// Handlers run synchronously inside the mutating call; a handler error
// aborts remaining handlers and propagates to the mutator.
type ChangeNotifier[S any] interface {
	// OnChanged registers a change handler and returns its cancel func.
	OnChanged(fn func(context.Context, Change[S]) error) (cancel func())
}

// ItemNotifier is implemented by sources that additionally report in-place
// mutation of individual elements.
type ItemNotifier[S any] interface {
	// OnItemChanged registers an item handler and returns its cancel func.
	OnItemChanged(fn func(context.Context, item S) error) (cancel func())
}

// Capability describes what a probed source can report.
type Capability int32

const (
	// CapabilityNone means the source reports nothing. The view populates
	// once and afterwards only updates via Refresh.
	CapabilityNone Capability = iota

	// CapabilityCollection means the source reports structural changes
	// but not item-level mutation.
	CapabilityCollection

	// CapabilityCollectionItem means the source reports both structural
	// changes and item-level mutation.
	CapabilityCollectionItem
)

// String returns the string representation of the capability.
func (c Capability) String() string {
	switch c {
	case CapabilityNone:
		return "none"
	case CapabilityCollection:
		return "collection"
	case CapabilityCollectionItem:
		return "collection+item"
	default:
		return "unknown"
	}
}

// probeCapability inspects a source once and returns the notification
// interfaces it offers. Item notifications without structural ones are
// useless for maintenance, so a source must implement ChangeNotifier
// before ItemNotifier counts.
func probeCapability[S any](source Collection[S]) (Capability, ChangeNotifier[S], ItemNotifier[S]) {
	changes, ok := source.(ChangeNotifier[S])
	if !ok {
		return CapabilityNone, nil, nil
	}
	items, ok := source.(ItemNotifier[S])
	if !ok {
		return CapabilityCollection, changes, nil
	}
	return CapabilityCollectionItem, changes, items
}

// Slice is the zero-ceremony Collection: a plain slice with a snapshot
// method. It reports nothing, so views over it run in degraded mode.
type Slice[S any] []S

// Snapshot returns a copy of the slice.
func (s Slice[S]) Snapshot() []S {
	out := make([]S, len(s))
	copy(out, s)
	return out
}
