package lenz

import "github.com/zoobzio/capitan"

// Field keys for View and Feed events.
var (
	// KeyState is the current state.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyOp is the change operation name.
	KeyOp = capitan.NewStringKey("op")

	// KeyCount is the number of elements a change affects.
	KeyCount = capitan.NewIntKey("count")

	// KeyPos is the destination position of a change.
	KeyPos = capitan.NewIntKey("pos")

	// KeySize is the output size after a change was applied.
	KeySize = capitan.NewIntKey("size")

	// KeyOutputLen is the output size a batch was measured against when
	// escalating to reset.
	KeyOutputLen = capitan.NewIntKey("output_len")

	// KeyBatchLen is the batch size that triggered a reset escalation.
	KeyBatchLen = capitan.NewIntKey("batch_len")

	// KeySourceType is the concrete type name of a bound source.
	KeySourceType = capitan.NewStringKey("source_type")

	// KeyCapability is the probed capability of a bound source.
	KeyCapability = capitan.NewStringKey("capability")

	// KeyItems is the number of items decoded from a feed document.
	KeyItems = capitan.NewIntKey("items")

	// KeyBytes is the raw length of a feed document.
	KeyBytes = capitan.NewIntKey("bytes")

	// KeyDebounce is the configured feed debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")

	// KeyWatcherType is the type name of the watcher implementation.
	KeyWatcherType = capitan.NewStringKey("watcher_type")
)
