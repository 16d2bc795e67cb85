package lenz

import (
	"context"
	"sync"
)

// Concat merges several sources into one logical sequence: all elements
// of the first child, then the second, and so on. Child changes are
// re-emitted with positions offset by the cumulative length of preceding
// children, so a View over a Concat maintains across all of them at once.
//
// A Concat is itself a full source. Children that implement ChangeNotifier
// keep their segment live; children that report nothing contribute a
// static segment that refreshes when a downstream view re-snapshots.
// Item-level notifications are forwarded from children that support them.
type Concat[S any] struct {
	sources []Collection[S]
	lens    []int

	changes  registry[func(context.Context, Change[S]) error]
	itemSubs registry[func(context.Context, S) error]

	mu      sync.Mutex
	cancels []func()
	closed  bool
}

// NewConcat creates a Concat over sources, subscribing to every child
// that reports changes. Call Close to detach from the children.
func NewConcat[S any](sources ...Collection[S]) *Concat[S] {
	c := &Concat[S]{
		sources: sources,
		lens:    make([]int, len(sources)),
	}
	for i, src := range sources {
		c.lens[i] = len(src.Snapshot())
	}
	for i, src := range sources {
		if notifier, ok := src.(ChangeNotifier[S]); ok {
			idx := i
			c.cancels = append(c.cancels, notifier.OnChanged(func(ctx context.Context, ch Change[S]) error {
				return c.forward(ctx, idx, ch)
			}))
		}
		if notifier, ok := src.(ItemNotifier[S]); ok {
			c.cancels = append(c.cancels, notifier.OnItemChanged(func(ctx context.Context, item S) error {
				return c.forwardItem(ctx, item)
			}))
		}
	}
	return c
}

// Snapshot returns the concatenated child snapshots and re-syncs the
// cached segment lengths, picking up out-of-band mutation of children
// that report no changes.
func (c *Concat[S]) Snapshot() []S {
	var out []S
	for i, src := range c.sources {
		snap := src.Snapshot()
		c.lens[i] = len(snap)
		out = append(out, snap...)
	}
	return out
}

// Len returns the total element count across all children.
func (c *Concat[S]) Len() int {
	total := 0
	for _, n := range c.lens {
		total += n
	}
	return total
}

// OnChanged registers a structural change handler.
func (c *Concat[S]) OnChanged(fn func(context.Context, Change[S]) error) (cancel func()) {
	return c.changes.add(fn)
}

// OnItemChanged registers an item-level change handler.
func (c *Concat[S]) OnItemChanged(fn func(context.Context, S) error) (cancel func()) {
	return c.itemSubs.add(fn)
}

// Close detaches from all children. Idempotent.
func (c *Concat[S]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	return nil
}

// forward re-emits a child change with positions shifted into the
// concatenated coordinate space.
func (c *Concat[S]) forward(ctx context.Context, idx int, ch Change[S]) error {
	offset := 0
	for i := 0; i < idx; i++ {
		offset += c.lens[i]
	}

	switch ch.Op {
	case OpAdd:
		c.lens[idx] += len(ch.Items)
		ch.Pos += offset
	case OpRemove:
		c.lens[idx] -= ch.Count()
		ch.Pos += offset
	case OpReplace:
		ch.Pos += offset
	case OpMove:
		ch.Pos += offset
		ch.OldPos += offset
	case OpReset:
		// Segment length is unknown until re-snapshot; escalate to a
		// full reset so receivers re-snapshot through Snapshot, which
		// re-syncs the lengths.
		c.lens[idx] = len(c.sources[idx].Snapshot())
		ch = NewReset[S]()
	}

	for _, fn := range c.changes.snapshot() {
		if err := fn(ctx, ch); err != nil {
			return err
		}
	}
	return nil
}

func (c *Concat[S]) forwardItem(ctx context.Context, item S) error {
	for _, fn := range c.itemSubs.snapshot() {
		if err := fn(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Collection[int]     = (*Concat[int])(nil)
	_ ChangeNotifier[int] = (*Concat[int])(nil)
	_ ItemNotifier[int]   = (*Concat[int])(nil)
)
