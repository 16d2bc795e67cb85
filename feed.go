package lenz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// DefaultDebounce is the default debounce duration for document processing.
const DefaultDebounce = 100 * time.Millisecond

// validate is the shared struct-tag validator instance.
var validate = validator.New()

// Validator is implemented by element types that validate themselves.
// Feeds check every decoded element before applying a document.
type Validator interface {
	Validate() error
}

// Feed adapts a document stream into a live collection source. A Watcher
// yields raw bytes; the feed decodes each document into a slice of S,
// validates the elements, and applies the result as a wholesale reset of
// its collection. A View over a feed re-derives on every document.
//
// If decoding, validation, or delivery fails, the previous valid
// collection is retained and the feed enters a degraded state while
// continuing to watch for valid documents.
type Feed[S comparable] struct {
	watcher        Watcher
	list           *List[S]
	debounce       time.Duration
	startupTimeout time.Duration
	syncMode       bool
	tagValidation  bool
	clock          clockz.Clock
	codec          Codec
	onStop         func(FeedState)

	state        atomic.Int32
	applied      atomic.Bool
	lastError    atomic.Pointer[error]
	errorHistory *errorRing

	mu      sync.Mutex
	started bool

	// For sync mode: channel to receive documents
	changes <-chan []byte
}

// NewFeed creates a Feed decoding documents from watcher into collections
// of S. Documents are decoded with the configured codec (JSON by default)
// and applied as a reset of the feed's collection.
//
// Example:
//
//	feed := lenz.NewFeed[Player](lenz.NewFileWatcher("players.json"))
//	if err := feed.Start(ctx); err != nil {
//	    log.Printf("initial document failed: %v", err)
//	}
//
//	board := lenz.NewView(feed, rank).Sort(byScore)
func NewFeed[S comparable](watcher Watcher) *Feed[S] {
	f := &Feed[S]{
		watcher:  watcher,
		list:     NewList[S](),
		debounce: DefaultDebounce,
		clock:    clockz.RealClock,
		codec:    JSONCodec{},
	}
	f.state.Store(int32(FeedLoading))

	return f
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Debounce sets the debounce duration for document processing.
// Documents arriving within this duration are coalesced into a single
// apply. Default: 100ms. Must be called before Start().
func (f *Feed[S]) Debounce(d time.Duration) *Feed[S] {
	f.debounce = d
	return f
}

// SyncMode enables synchronous processing for testing.
// In sync mode, documents are processed immediately without debouncing
// or async goroutines, making tests deterministic. Must be called before
// Start().
func (f *Feed[S]) SyncMode() *Feed[S] {
	f.syncMode = true
	return f
}

// Clock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic debounce testing.
// Must be called before Start().
func (f *Feed[S]) Clock(clock clockz.Clock) *Feed[S] {
	f.clock = clock
	return f
}

// Codec sets the codec for deserializing documents.
// Default: JSONCodec. Must be called before Start().
func (f *Feed[S]) Codec(codec Codec) *Feed[S] {
	f.codec = codec
	return f
}

// StartupTimeout sets the maximum duration to wait for the initial
// document from the watcher. If the watcher fails to emit within this
// duration, Start() returns an error.
// Default: no timeout (wait indefinitely). Must be called before Start().
func (f *Feed[S]) StartupTimeout(d time.Duration) *Feed[S] {
	f.startupTimeout = d
	return f
}

// TagValidation enables go-playground/validator struct-tag validation of
// every decoded element, in addition to the Validator interface check.
// S must be a struct type. Must be called before Start().
func (f *Feed[S]) TagValidation() *Feed[S] {
	f.tagValidation = true
	return f
}

// OnStop sets a callback that is invoked when the feed stops watching.
// The callback receives the final state of the feed. Must be called
// before Start().
func (f *Feed[S]) OnStop(fn func(FeedState)) *Feed[S] {
	f.onStop = fn
	return f
}

// ErrorHistorySize sets the number of recent errors to retain.
// When set, ErrorHistory() returns up to this many recent errors.
// Use 0 (default) to only retain the most recent error via LastError().
// Must be called before Start().
func (f *Feed[S]) ErrorHistorySize(n int) *Feed[S] {
	f.errorHistory = newErrorRing(n)
	return f
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// State returns the current state of the Feed.
func (f *Feed[S]) State() FeedState {
	return FeedState(f.state.Load())
}

// LastError returns the last error encountered, or nil if no error occurred.
func (f *Feed[S]) LastError() error {
	ptr := f.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns the recent error history, oldest first.
// Returns nil if error history is not enabled (see ErrorHistorySize).
func (f *Feed[S]) ErrorHistory() []error {
	return f.errorHistory.all()
}

// Len returns the number of elements in the current collection.
func (f *Feed[S]) Len() int {
	return f.list.Len()
}

// At returns the element at position i. i must be in [0, Len()).
func (f *Feed[S]) At(i int) S {
	return f.list.At(i)
}

// Snapshot returns a copy of the current collection in order. A Feed is
// itself a Collection, so views bind to it directly.
func (f *Feed[S]) Snapshot() []S {
	return f.list.Snapshot()
}

// OnChanged registers a structural change handler. Every applied document
// arrives as a single Reset.
func (f *Feed[S]) OnChanged(fn func(context.Context, Change[S]) error) (cancel func()) {
	return f.list.OnChanged(fn)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start begins watching for documents. It blocks until the first document
// is processed (success or failure), then continues watching
// asynchronously.
//
// If the initial document fails, Start returns the error but continues
// watching in the background for valid updates.
//
// In sync mode, Start only processes the initial document. Use Process()
// to manually trigger processing of subsequent documents.
//
// Start can only be called once. Subsequent calls return an error.
func (f *Feed[S]) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return fmt.Errorf("feed already started")
	}
	f.started = true
	f.mu.Unlock()

	capitan.Emit(ctx, FeedStarted,
		KeyWatcherType.Field(fmt.Sprintf("%T", f.watcher)),
		KeyDebounce.Field(f.debounce),
	)

	changes, err := f.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	// Wait for first document and process synchronously
	var initialErr error

	// Wrap context with startup timeout if configured
	startupCtx := ctx
	if f.startupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = f.clock.WithTimeout(ctx, f.startupTimeout)
		defer cancel()
	}

	select {
	case <-startupCtx.Done():
		if f.startupTimeout > 0 && startupCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("startup timeout: watcher did not emit initial document within %v", f.startupTimeout)
		}
		return startupCtx.Err()
	case raw, ok := <-changes:
		if !ok {
			return fmt.Errorf("watcher closed before emitting initial document")
		}
		capitan.Emit(ctx, FeedDocumentReceived,
			KeyBytes.Field(len(raw)),
		)
		initialErr = f.process(ctx, raw)
	}

	if f.syncMode {
		// In sync mode, store channel for manual processing
		f.changes = changes
		return initialErr
	}

	// Continue watching asynchronously
	go f.watch(ctx, changes)

	return initialErr
}

// Process reads and processes the next document from the watcher.
// This is only available in sync mode and is used for deterministic
// testing. Returns false if no document is available or the channel is
// closed.
func (f *Feed[S]) Process(ctx context.Context) bool {
	if !f.syncMode {
		return false
	}

	select {
	case raw, ok := <-f.changes:
		if !ok {
			return false
		}
		capitan.Emit(ctx, FeedDocumentReceived,
			KeyBytes.Field(len(raw)),
		)
		_ = f.process(ctx, raw) //nolint:errcheck // Errors stored via setError
		return true
	default:
		return false
	}
}

// process decodes, validates, and applies a single document.
func (f *Feed[S]) process(ctx context.Context, raw []byte) error {
	oldState := f.State()

	// Decode
	var items []S
	if err := f.codec.Unmarshal(raw, &items); err != nil {
		f.setError(err)
		f.transitionState(ctx, oldState, f.failureState())
		capitan.Emit(ctx, FeedDecodeFailed,
			KeyError.Field(err.Error()),
		)
		return fmt.Errorf("decode failed: %w", err)
	}

	// Validate every element before touching the collection
	for i := range items {
		if err := f.validateItem(items[i]); err != nil {
			err = fmt.Errorf("item %d: %w", i, err)
			f.setError(err)
			f.transitionState(ctx, oldState, f.failureState())
			capitan.Emit(ctx, FeedValidationFailed,
				KeyError.Field(err.Error()),
			)
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	// Apply as a wholesale reset; downstream views re-snapshot
	if err := f.list.Reset(ctx, items...); err != nil {
		f.setError(err)
		f.transitionState(ctx, oldState, f.failureState())
		return fmt.Errorf("apply failed: %w", err)
	}

	// Success - clear error history
	f.applied.Store(true)
	f.lastError.Store(nil)
	f.errorHistory.clear()
	if len(items) == 0 {
		f.transitionState(ctx, oldState, FeedEmpty)
	} else {
		f.transitionState(ctx, oldState, FeedHealthy)
	}
	capitan.Emit(ctx, FeedApplied,
		KeyItems.Field(len(items)),
	)

	return nil
}

// validateItem runs the Validator interface check and, when enabled,
// struct-tag validation.
func (f *Feed[S]) validateItem(item S) error {
	if v, ok := any(item).(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if f.tagValidation {
		if err := validate.Struct(item); err != nil {
			return err
		}
	}
	return nil
}

// failureState returns the appropriate failure state based on whether a
// document has ever been applied.
func (f *Feed[S]) failureState() FeedState {
	if !f.applied.Load() {
		return FeedEmpty
	}
	return FeedDegraded
}

// transitionState updates the state and emits a state change event if changed.
func (f *Feed[S]) transitionState(ctx context.Context, oldState, newState FeedState) {
	if oldState == newState {
		return
	}
	f.state.Store(int32(newState))
	capitan.Emit(ctx, FeedStateChanged,
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
}

// setError stores an error atomically and adds it to the error history.
func (f *Feed[S]) setError(err error) {
	e := err
	f.lastError.Store(&e)
	f.errorHistory.push(err)
}

// watch processes documents from the watcher channel with debouncing.
func (f *Feed[S]) watch(ctx context.Context, changes <-chan []byte) {
	defer func() {
		finalState := f.State()
		capitan.Emit(ctx, FeedStopped,
			KeyState.Field(finalState.String()),
		)
		if f.onStop != nil {
			f.onStop(finalState)
		}
	}()

	var (
		timer      clockz.Timer
		pending    []byte
		hasPending bool
	)

	for {
		// Get timer channel or nil if no timer
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case raw, ok := <-changes:
			if !ok {
				// Channel closed, process any pending document
				if hasPending {
					_ = f.process(ctx, pending) //nolint:errcheck // Errors stored via setError
				}
				return
			}

			capitan.Emit(ctx, FeedDocumentReceived,
				KeyBytes.Field(len(raw)),
			)
			pending = raw
			hasPending = true

			// Reset or start debounce timer
			if timer == nil {
				timer = f.clock.NewTimer(f.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(f.debounce)
			}

		case <-timerC:
			if hasPending {
				_ = f.process(ctx, pending) //nolint:errcheck // Errors stored via setError
				hasPending = false
			}
		}
	}
}

var (
	_ Collection[int]     = (*Feed[int])(nil)
	_ ChangeNotifier[int] = (*Feed[int])(nil)
)
