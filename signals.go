package lenz

import "github.com/zoobzio/capitan"

// View lifecycle signals.
var (
	// ViewStarted is emitted when a View finishes populating and goes live.
	ViewStarted = capitan.NewSignal(
		"lenz.view.started",
		"View populated and live",
	)

	// ViewClosed is emitted when a View is closed.
	ViewClosed = capitan.NewSignal(
		"lenz.view.closed",
		"View closed",
	)

	// ViewStateChanged is emitted when a View transitions between states.
	ViewStateChanged = capitan.NewSignal(
		"lenz.view.state.changed",
		"View state transition",
	)
)

// Change processing signals.
var (
	// ViewChangeReceived is emitted when a source change reaches a View.
	ViewChangeReceived = capitan.NewSignal(
		"lenz.view.change.received",
		"Source change received",
	)

	// ViewChangeApplied is emitted after a change has been patched into
	// the output and delivered to subscribers.
	ViewChangeApplied = capitan.NewSignal(
		"lenz.view.change.applied",
		"Change applied to output",
	)

	// ViewChangeFailed is emitted when applying or delivering a change
	// fails. The error propagates to the mutating caller.
	ViewChangeFailed = capitan.NewSignal(
		"lenz.view.change.failed",
		"Change application failed",
	)

	// ViewResetEscalated is emitted when a batch exceeds the reset
	// threshold and is collapsed into a single reset.
	ViewResetEscalated = capitan.NewSignal(
		"lenz.view.reset.escalated",
		"Batch escalated to reset",
	)

	// ViewItemUnresolved is emitted when an item-level notification does
	// not match any element in the source mirror. Value-type elements
	// mutated before notifying resolve to nothing; the notification is
	// dropped.
	ViewItemUnresolved = capitan.NewSignal(
		"lenz.view.item.unresolved",
		"Item notification matched no mirror element",
	)

	// ViewSourceDegraded is emitted at Start when a View binds a source
	// that offers no change notifications, keyed by the source's concrete
	// type. The view's output only updates via Refresh.
	ViewSourceDegraded = capitan.NewSignal(
		"lenz.view.source.degraded",
		"Source offers no change notifications",
	)
)

// Feed signals.
var (
	// FeedStarted is emitted when a Feed begins watching.
	FeedStarted = capitan.NewSignal(
		"lenz.feed.started",
		"Feed watching started",
	)

	// FeedStopped is emitted when a Feed stops watching.
	FeedStopped = capitan.NewSignal(
		"lenz.feed.stopped",
		"Feed watching stopped",
	)

	// FeedStateChanged is emitted when a Feed transitions between states.
	FeedStateChanged = capitan.NewSignal(
		"lenz.feed.state.changed",
		"Feed state transition",
	)

	// FeedDocumentReceived is emitted when raw bytes arrive from the watcher.
	FeedDocumentReceived = capitan.NewSignal(
		"lenz.feed.document.received",
		"Raw document received from watcher",
	)

	// FeedDecodeFailed is emitted when a document cannot be decoded.
	FeedDecodeFailed = capitan.NewSignal(
		"lenz.feed.decode.failed",
		"Document decode failed",
	)

	// FeedValidationFailed is emitted when a decoded item fails validation.
	FeedValidationFailed = capitan.NewSignal(
		"lenz.feed.validation.failed",
		"Item validation failed",
	)

	// FeedApplied is emitted when a document has been applied as the
	// feed's collection.
	FeedApplied = capitan.NewSignal(
		"lenz.feed.applied",
		"Document applied as collection",
	)
)
