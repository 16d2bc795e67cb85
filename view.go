package lenz

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// Batch escalation defaults. A multi-element add or remove larger than
// DefaultResetFraction of the current output collapses into a single
// reset, once the output holds at least DefaultResetMinimum elements.
const (
	DefaultResetFraction = 0.3
	DefaultResetMinimum  = 10
)

// View projects a source collection through select, filter, and sort into
// a materialized output, and keeps the output current by patching it for
// every source change.
//
// S is the source element type and T the output element type. Both must
// be comparable: source identity is resolved with == when item-level
// notifications arrive, and output equality decides whether an update is
// observable. Use pointer element types when elements mutate in place.
//
// A View is single-threaded by contract, like the slice it maintains:
// callers serialize source mutation, reads, and Close.
type View[S comparable, T comparable] struct {
	source        Collection[S]
	selector      func(S) T
	filter        func(T) bool
	cmp           func(a, b T) int
	onRemoved     func(T)
	resetFraction float64
	resetMinimum  int
	clock         clockz.Clock
	metrics       MetricsProvider
	pipeline      pipz.Chainable[*Notification[T]]

	state      atomic.Int32
	capability Capability

	mu      sync.Mutex
	started bool
	cancels []func()

	mirror []S
	items  []T
	imap   indexMap

	suppress     int
	resetPending bool

	subs registry[func(context.Context, Change[T]) error]
}

// NewView creates a View deriving its output from source through
// selector. The view is inert until Start is called; configure it first
// with the chainable methods.
//
// Pipeline options (With*) wrap the delivery of output changes to
// subscribers.
//
// Example:
//
//	view := lenz.NewView(orders, func(o *Order) *Order { return o },
//	    lenz.WithTimeout[*Order](time.Second),
//	).
//	    Filter(func(o *Order) bool { return o.Open }).
//	    Sort(byCreated)
func NewView[S comparable, T comparable](source Collection[S], selector func(S) T, opts ...Option[T]) *View[S, T] {
	v := &View[S, T]{
		source:        source,
		selector:      selector,
		resetFraction: DefaultResetFraction,
		resetMinimum:  DefaultResetMinimum,
		clock:         clockz.RealClock,
	}
	terminal := pipz.Effect(fanoutID, func(ctx context.Context, n *Notification[T]) error {
		return v.fanout(ctx, n)
	})
	v.pipeline = buildPipeline(terminal, opts)
	v.state.Store(int32(StateIdle))

	return v
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Filter restricts the output to derived elements the predicate accepts.
// Must be called before Start().
func (v *View[S, T]) Filter(fn func(T) bool) *View[S, T] {
	v.filter = fn
	return v
}

// Sort orders the output by cmp, which follows the usual convention:
// negative when a sorts before b, zero when equal, positive when a sorts
// after b. Equal elements keep insertion order. Without a comparator the
// output preserves source order. Must be called before Start().
func (v *View[S, T]) Sort(cmp func(a, b T) int) *View[S, T] {
	v.cmp = cmp
	return v
}

// OnRemoved sets a teardown hook invoked once for every element that
// leaves the output, including replacements, resets, and Close. Use it to
// release resources owned by derived elements. Must be called before
// Start().
func (v *View[S, T]) OnRemoved(fn func(T)) *View[S, T] {
	v.onRemoved = fn
	return v
}

// ResetThreshold tunes batch escalation. A multi-element add or remove
// longer than fraction times the current output size collapses into a
// single reset, once the output holds at least minimum elements.
// Defaults: 0.3 and 10. Must be called before Start().
func (v *View[S, T]) ResetThreshold(fraction float64, minimum int) *View[S, T] {
	v.resetFraction = fraction
	v.resetMinimum = minimum
	return v
}

// Clock sets a custom clock for time operations. Use this with
// clockz.FakeClock for deterministic tests. Must be called before Start().
func (v *View[S, T]) Clock(clock clockz.Clock) *View[S, T] {
	v.clock = clock
	return v
}

// Metrics sets a metrics provider for observability integration.
// Must be called before Start().
func (v *View[S, T]) Metrics(provider MetricsProvider) *View[S, T] {
	v.metrics = provider
	return v
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// State returns the current lifecycle state.
func (v *View[S, T]) State() State {
	return State(v.state.Load())
}

// Capability returns the probed capability of the bound source.
// Meaningful after Start.
func (v *View[S, T]) Capability() Capability {
	return v.capability
}

// Len returns the current output size.
func (v *View[S, T]) Len() int {
	return len(v.items)
}

// At returns the output element at position i. i must be in [0, Len()).
func (v *View[S, T]) At(i int) T {
	return v.items[i]
}

// Snapshot returns a copy of the current output in order. A View is
// itself a Collection, so views stack.
func (v *View[S, T]) Snapshot() []T {
	return slices.Clone(v.items)
}

// OnChanged registers a subscriber for output changes. Subscribers run in
// registration order inside the source mutation that caused the change;
// the first error aborts remaining delivery and propagates to the
// mutating caller.
func (v *View[S, T]) OnChanged(fn func(context.Context, Change[T]) error) (cancel func()) {
	return v.subs.add(fn)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start probes the source, populates the output from a snapshot, and
// subscribes to whatever notifications the source offers. Population
// emits nothing; subscribers registered before Start see only subsequent
// changes.
//
// Start can only be called once. Subsequent calls return an error.
func (v *View[S, T]) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.started {
		v.mu.Unlock()
		return fmt.Errorf("view already started")
	}
	if v.State() == StateClosed {
		v.mu.Unlock()
		return fmt.Errorf("%w: cannot restart", ErrViewClosed)
	}
	v.started = true
	v.mu.Unlock()

	v.transitionState(ctx, StateIdle, StatePopulating)

	capability, changes, items := probeCapability(v.source)
	v.capability = capability

	v.mirror = v.source.Snapshot()
	v.rebuildFromMirror()

	if changes != nil {
		v.cancels = append(v.cancels, changes.OnChanged(v.handleChange))
	}
	if items != nil {
		v.cancels = append(v.cancels, items.OnItemChanged(v.handleItemChanged))
	}

	v.transitionState(ctx, StatePopulating, StateLive)

	capitan.Emit(ctx, ViewStarted,
		KeySourceType.Field(fmt.Sprintf("%T", v.source)),
		KeyCapability.Field(capability.String()),
		KeySize.Field(len(v.items)),
	)
	if capability == CapabilityNone {
		capitan.Emit(ctx, ViewSourceDegraded,
			KeySourceType.Field(fmt.Sprintf("%T", v.source)),
		)
	}

	return nil
}

// Refresh rebuilds the output from a fresh source snapshot and emits a
// single Reset. This is the update path for sources that report no
// changes, and the escape hatch after out-of-band source mutation.
func (v *View[S, T]) Refresh(ctx context.Context) error {
	switch v.State() {
	case StateLive:
		return v.handleChange(ctx, NewReset[S]())
	case StateClosed:
		return fmt.Errorf("%w: refresh", ErrViewClosed)
	default:
		return fmt.Errorf("refresh before start")
	}
}

// Suspend pauses output notifications. Changes continue to be applied;
// when the returned resume func is called and any changes occurred in
// between, subscribers receive a single Reset. Suspensions nest.
func (v *View[S, T]) Suspend() (resume func(context.Context) error) {
	v.suspend()
	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			err = v.resume(ctx)
		})
		return err
	}
}

// Close unsubscribes from the source, invokes the OnRemoved hook for
// every current output element, and empties the view. Close is
// idempotent; a closed view cannot be restarted.
func (v *View[S, T]) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.State() == StateClosed {
		return nil
	}

	for _, cancel := range v.cancels {
		cancel()
	}
	v.cancels = nil

	if v.onRemoved != nil {
		for _, t := range v.items {
			v.onRemoved(t)
		}
	}

	size := len(v.items)
	v.mirror = nil
	v.items = nil
	v.imap.clear()

	ctx := context.Background()
	v.transitionState(ctx, v.State(), StateClosed)
	capitan.Emit(ctx, ViewClosed,
		KeySize.Field(size),
	)

	return nil
}

// -----------------------------------------------------------------------------
// Change application
// -----------------------------------------------------------------------------

// handleChange applies one source change to the output. It runs inside
// the source mutator's call; any error returns to that caller with the
// source already mutated.
func (v *View[S, T]) handleChange(ctx context.Context, ch Change[S]) error {
	if v.State() != StateLive {
		return fmt.Errorf("%w: change while %s", ErrViewClosed, v.State())
	}

	start := v.clock.Now()
	capitan.Emit(ctx, ViewChangeReceived,
		KeyOp.Field(ch.Op.String()),
		KeyCount.Field(ch.Count()),
	)
	if v.metrics != nil {
		v.metrics.OnChangeReceived(ch.Op)
	}

	if err := ch.validate(len(v.mirror)); err != nil {
		v.fail(ctx, "validate", start, err)
		return err
	}

	var err error
	switch ch.Op {
	case OpAdd:
		err = v.applyAdd(ctx, ch)
	case OpRemove:
		err = v.applyRemove(ctx, ch)
	case OpReplace:
		err = v.applyReplace(ctx, ch)
	case OpMove:
		err = v.applyMove(ctx, ch)
	case OpReset:
		err = v.reset(ctx, func() {
			v.mirror = v.source.Snapshot()
		})
	}
	if err != nil {
		v.fail(ctx, "notify", start, err)
		return err
	}

	capitan.Emit(ctx, ViewChangeApplied,
		KeyOp.Field(ch.Op.String()),
		KeySize.Field(len(v.items)),
	)
	if v.metrics != nil {
		v.metrics.OnApplySuccess(ch.Op, v.clock.Since(start))
	}
	return nil
}

// handleItemChanged re-derives every output element whose source resolves
// to item by identity. Value-type elements mutated before notifying no
// longer match their mirror copy; the notification is dropped with a
// diagnostic.
func (v *View[S, T]) handleItemChanged(ctx context.Context, item S) error {
	if v.State() != StateLive {
		return fmt.Errorf("%w: item change while %s", ErrViewClosed, v.State())
	}

	start := v.clock.Now()
	capitan.Emit(ctx, ViewChangeReceived,
		KeyOp.Field("item"),
		KeyCount.Field(1),
	)

	resolved := false
	for srcPos := range v.mirror {
		if v.mirror[srcPos] != item {
			continue
		}
		resolved = true
		if err := v.refreshAt(ctx, srcPos); err != nil {
			v.fail(ctx, "notify", start, err)
			return err
		}
	}

	if !resolved {
		capitan.Emit(ctx, ViewItemUnresolved,
			KeySourceType.Field(fmt.Sprintf("%T", v.source)),
		)
		return nil
	}

	capitan.Emit(ctx, ViewChangeApplied,
		KeyOp.Field("item"),
		KeySize.Field(len(v.items)),
	)
	return nil
}

func (v *View[S, T]) applyAdd(ctx context.Context, ch Change[S]) error {
	if v.shouldEscalate(len(ch.Items)) {
		return v.escalate(ctx, ch, func() {
			v.mirror = slices.Insert(v.mirror, ch.Pos, ch.Items...)
		})
	}

	v.mirror = slices.Insert(v.mirror, ch.Pos, ch.Items...)
	v.imap.shiftAtOrAbove(ch.Pos, len(ch.Items))

	for i, s := range ch.Items {
		srcPos := ch.Pos + i
		t := v.selector(s)
		if v.filter != nil && !v.filter(t) {
			continue
		}
		dst := v.placeNew(t, srcPos)
		v.items = slices.Insert(v.items, dst, t)
		v.imap.insert(dst, srcPos)
		if err := v.notify(ctx, NewAdd(dst, t)); err != nil {
			return err
		}
	}
	return nil
}

func (v *View[S, T]) applyRemove(ctx context.Context, ch Change[S]) error {
	n := ch.Count()
	if v.shouldEscalate(n) {
		return v.escalate(ctx, ch, func() {
			v.mirror = slices.Delete(v.mirror, ch.Pos, ch.Pos+n)
		})
	}

	for srcPos := ch.Pos; srcPos < ch.Pos+n; srcPos++ {
		dst := v.imap.find(srcPos)
		if dst < 0 {
			continue
		}
		removed := v.items[dst]
		v.items = slices.Delete(v.items, dst, dst+1)
		v.imap.removeAt(dst)
		if err := v.notify(ctx, NewRemove(dst, removed)); err != nil {
			return err
		}
		if v.onRemoved != nil {
			v.onRemoved(removed)
		}
	}

	v.mirror = slices.Delete(v.mirror, ch.Pos, ch.Pos+n)
	v.imap.shiftAtOrAbove(ch.Pos+n, -n)
	return nil
}

func (v *View[S, T]) applyReplace(ctx context.Context, ch Change[S]) error {
	for i, s := range ch.Items {
		srcPos := ch.Pos + i
		v.mirror[srcPos] = s
		if err := v.refreshAt(ctx, srcPos); err != nil {
			return err
		}
	}
	return nil
}

// refreshAt re-derives the output contribution of the source element at
// srcPos, emitting whichever patch the transition calls for.
func (v *View[S, T]) refreshAt(ctx context.Context, srcPos int) error {
	t := v.selector(v.mirror[srcPos])
	passes := v.filter == nil || v.filter(t)
	dst := v.imap.find(srcPos)

	switch {
	case dst < 0 && !passes:
		// Still filtered out.
		return nil

	case dst < 0 && passes:
		at := v.placeNew(t, srcPos)
		v.items = slices.Insert(v.items, at, t)
		v.imap.insert(at, srcPos)
		return v.notify(ctx, NewAdd(at, t))

	case dst >= 0 && !passes:
		removed := v.items[dst]
		v.items = slices.Delete(v.items, dst, dst+1)
		v.imap.removeAt(dst)
		if err := v.notify(ctx, NewRemove(dst, removed)); err != nil {
			return err
		}
		if v.onRemoved != nil {
			v.onRemoved(removed)
		}
		return nil

	default:
		oldT := v.items[dst]
		stays := v.cmp == nil || canStayAt(v.items, dst, t, v.cmp)

		if t == oldT {
			if stays {
				// No observable effect.
				return nil
			}
			// Same derived element, broken ordering: relocate.
			newDst := searchMove(v.items, dst, t, v.cmp)
			if newDst == dst {
				return nil
			}
			v.items = slices.Delete(v.items, dst, dst+1)
			v.items = slices.Insert(v.items, newDst, t)
			v.imap.removeAt(dst)
			v.imap.insert(newDst, srcPos)
			return v.notify(ctx, NewMove(dst, newDst, t))
		}

		if stays {
			v.items[dst] = t
			if err := v.notify(ctx, NewReplace(dst, []T{oldT}, []T{t})); err != nil {
				return err
			}
			if v.onRemoved != nil {
				v.onRemoved(oldT)
			}
			return nil
		}

		// New derived element that cannot keep the slot: remove and
		// reinsert rather than move, since the element's identity changed.
		v.items = slices.Delete(v.items, dst, dst+1)
		v.imap.removeAt(dst)
		if err := v.notify(ctx, NewRemove(dst, oldT)); err != nil {
			return err
		}
		if v.onRemoved != nil {
			v.onRemoved(oldT)
		}
		at := searchInsert(v.items, t, v.cmp)
		v.items = slices.Insert(v.items, at, t)
		v.imap.insert(at, srcPos)
		return v.notify(ctx, NewAdd(at, t))
	}
}

func (v *View[S, T]) applyMove(ctx context.Context, ch Change[S]) error {
	from, to := ch.OldPos, ch.Pos
	if from == to {
		return nil
	}

	item := v.mirror[from]
	v.mirror = slices.Delete(v.mirror, from, from+1)
	v.mirror = slices.Insert(v.mirror, to, item)

	dst := v.imap.find(from)
	if from < to {
		v.imap.shiftRange(from+1, to+1, -1)
	} else {
		v.imap.shiftRange(to, from, 1)
	}
	if dst >= 0 {
		v.imap.set(dst, to)
	}

	if v.cmp != nil || dst < 0 {
		// Comparator order is independent of source order, and filtered
		// elements have no output slot either way. Bookkeeping only.
		return nil
	}

	// Source order drives output order: relocate to keep the mapping
	// strictly increasing.
	newDst := 0
	for i := range v.imap.entries {
		if i == dst {
			continue
		}
		if v.imap.entries[i] < to {
			newDst++
		}
	}
	if newDst == dst {
		return nil
	}

	t := v.items[dst]
	v.items = slices.Delete(v.items, dst, dst+1)
	v.items = slices.Insert(v.items, newDst, t)
	v.imap.removeAt(dst)
	v.imap.insert(newDst, to)
	return v.notify(ctx, NewMove(dst, newDst, t))
}

// -----------------------------------------------------------------------------
// Reset and suppression
// -----------------------------------------------------------------------------

// shouldEscalate reports whether a batch of n elements should collapse
// into a reset. Single-element changes never escalate.
func (v *View[S, T]) shouldEscalate(n int) bool {
	if n < 2 {
		return false
	}
	if len(v.items) < v.resetMinimum {
		return false
	}
	return float64(n) > v.resetFraction*float64(len(v.items))
}

func (v *View[S, T]) escalate(ctx context.Context, ch Change[S], applyMirror func()) error {
	capitan.Emit(ctx, ViewResetEscalated,
		KeyOp.Field(ch.Op.String()),
		KeyBatchLen.Field(ch.Count()),
		KeyOutputLen.Field(len(v.items)),
	)
	if v.metrics != nil {
		v.metrics.OnResetEscalation(ch.Count(), len(v.items))
	}
	return v.reset(ctx, applyMirror)
}

// reset rebuilds the output under suppression and emits a single Reset.
// syncMirror brings the mirror current before the rebuild.
func (v *View[S, T]) reset(ctx context.Context, syncMirror func()) error {
	v.suspend()
	if v.onRemoved != nil {
		for _, t := range v.items {
			v.onRemoved(t)
		}
	}
	syncMirror()
	v.rebuildFromMirror()
	v.resetPending = true
	return v.resume(ctx)
}

// rebuildFromMirror recomputes the output and index map from the mirror.
// Equal elements keep source order via the stable sort, the same tie rule
// incremental placement uses.
func (v *View[S, T]) rebuildFromMirror() {
	v.items = v.items[:0]
	v.imap.clear()

	type pair struct {
		item T
		src  int
	}
	pairs := make([]pair, 0, len(v.mirror))
	for i, s := range v.mirror {
		t := v.selector(s)
		if v.filter != nil && !v.filter(t) {
			continue
		}
		pairs = append(pairs, pair{item: t, src: i})
	}
	if v.cmp != nil {
		slices.SortStableFunc(pairs, func(a, b pair) int {
			return v.cmp(a.item, b.item)
		})
	}
	for _, p := range pairs {
		v.items = append(v.items, p.item)
		v.imap.push(p.src)
	}
}

// placeNew returns the output position for a new element: comparator
// order when sorting, otherwise the slot that keeps the index map
// strictly increasing.
func (v *View[S, T]) placeNew(t T, srcPos int) int {
	if v.cmp != nil {
		return searchInsert(v.items, t, v.cmp)
	}
	return v.imap.lowerBound(srcPos)
}

func (v *View[S, T]) suspend() {
	v.suppress++
}

func (v *View[S, T]) resume(ctx context.Context) error {
	v.suppress--
	if v.suppress == 0 && v.resetPending {
		v.resetPending = false
		return v.deliver(ctx, NewReset[T]())
	}
	return nil
}

// -----------------------------------------------------------------------------
// Delivery
// -----------------------------------------------------------------------------

// notify delivers an output change, or records it for the eventual Reset
// while notifications are suspended.
func (v *View[S, T]) notify(ctx context.Context, ch Change[T]) error {
	if v.suppress > 0 {
		v.resetPending = true
		return nil
	}
	return v.deliver(ctx, ch)
}

func (v *View[S, T]) deliver(ctx context.Context, ch Change[T]) error {
	n := &Notification[T]{Change: ch, Size: len(v.items)}
	if _, err := v.pipeline.Process(ctx, n); err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	return nil
}

// fanout is the pipeline terminal: subscribers in registration order,
// first error wins.
func (v *View[S, T]) fanout(ctx context.Context, n *Notification[T]) error {
	for _, fn := range v.subs.snapshot() {
		if err := fn(ctx, n.Change); err != nil {
			return err
		}
	}
	return nil
}

func (v *View[S, T]) fail(ctx context.Context, stage string, start time.Time, err error) {
	capitan.Emit(ctx, ViewChangeFailed,
		KeyError.Field(err.Error()),
	)
	if v.metrics != nil {
		v.metrics.OnApplyFailure(stage, v.clock.Since(start))
	}
}

// transitionState updates the state and emits a state change event if changed.
func (v *View[S, T]) transitionState(ctx context.Context, oldState, newState State) {
	if oldState == newState {
		return
	}
	v.state.Store(int32(newState))
	capitan.Emit(ctx, ViewStateChanged,
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
	if v.metrics != nil {
		v.metrics.OnStateChange(oldState, newState)
	}
}

var (
	_ Collection[string]     = (*View[int, string])(nil)
	_ ChangeNotifier[string] = (*View[int, string])(nil)
)
