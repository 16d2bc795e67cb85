package lenz

import (
	"context"
	"fmt"
	"slices"
)

// List is the canonical full-capability source: an ordered in-memory
// collection that reports every structural change and supports item-level
// notification. Mutators apply the change, then invoke subscribers
// synchronously; the first subscriber error aborts remaining delivery and
// propagates to the caller, with the mutation already applied.
//
// Like a plain slice, a List is not safe for concurrent mutation.
type List[S any] struct {
	items    []S
	changes  registry[func(context.Context, Change[S]) error]
	itemSubs registry[func(context.Context, S) error]
}

// NewList creates a List holding a copy of items.
func NewList[S any](items ...S) *List[S] {
	return &List[S]{items: slices.Clone(items)}
}

// Len returns the number of elements.
func (l *List[S]) Len() int {
	return len(l.items)
}

// At returns the element at position i. i must be in [0, Len()).
func (l *List[S]) At(i int) S {
	return l.items[i]
}

// Snapshot returns a copy of the current elements in order.
func (l *List[S]) Snapshot() []S {
	return slices.Clone(l.items)
}

// OnChanged registers a structural change handler.
func (l *List[S]) OnChanged(fn func(context.Context, Change[S]) error) (cancel func()) {
	return l.changes.add(fn)
}

// OnItemChanged registers an item-level change handler.
func (l *List[S]) OnItemChanged(fn func(context.Context, S) error) (cancel func()) {
	return l.itemSubs.add(fn)
}

// Append adds items at the end of the list.
func (l *List[S]) Append(ctx context.Context, items ...S) error {
	return l.Insert(ctx, len(l.items), items...)
}

// Insert adds items at pos, shifting later elements right.
func (l *List[S]) Insert(ctx context.Context, pos int, items ...S) error {
	if pos < 0 || pos > len(l.items) {
		return fmt.Errorf("%w: insert at %d with length %d", ErrOutOfRange, pos, len(l.items))
	}
	if len(items) == 0 {
		return nil
	}
	l.items = slices.Insert(l.items, pos, items...)
	return l.notify(ctx, NewAdd(pos, items...))
}

// RemoveAt deletes n elements starting at pos.
func (l *List[S]) RemoveAt(ctx context.Context, pos, n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 || pos < 0 || pos+n > len(l.items) {
		return fmt.Errorf("%w: remove [%d:%d] with length %d", ErrOutOfRange, pos, pos+n, len(l.items))
	}
	removed := slices.Clone(l.items[pos : pos+n])
	l.items = slices.Delete(l.items, pos, pos+n)
	return l.notify(ctx, NewRemove(pos, removed...))
}

// Set replaces the element at pos.
func (l *List[S]) Set(ctx context.Context, pos int, item S) error {
	if pos < 0 || pos >= len(l.items) {
		return fmt.Errorf("%w: set at %d with length %d", ErrOutOfRange, pos, len(l.items))
	}
	old := l.items[pos]
	l.items[pos] = item
	return l.notify(ctx, NewReplace(pos, []S{old}, []S{item}))
}

// Move relocates the element at from so that it ends up at position to,
// where to is interpreted after the element's removal.
func (l *List[S]) Move(ctx context.Context, from, to int) error {
	if from < 0 || from >= len(l.items) || to < 0 || to >= len(l.items) {
		return fmt.Errorf("%w: move %d -> %d with length %d", ErrOutOfRange, from, to, len(l.items))
	}
	if from == to {
		return nil
	}
	item := l.items[from]
	l.items = slices.Delete(l.items, from, from+1)
	l.items = slices.Insert(l.items, to, item)
	return l.notify(ctx, NewMove(from, to, item))
}

// Reset replaces the entire contents with items.
func (l *List[S]) Reset(ctx context.Context, items ...S) error {
	l.items = slices.Clone(items)
	return l.notify(ctx, NewReset[S]())
}

// Touch broadcasts an item-level notification for an element whose
// contents were mutated in place. Call it after mutating a pointer
// element; value elements should be updated with Set instead, since
// receivers resolve the notification by identity.
func (l *List[S]) Touch(ctx context.Context, item S) error {
	for _, fn := range l.itemSubs.snapshot() {
		if err := fn(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (l *List[S]) notify(ctx context.Context, ch Change[S]) error {
	for _, fn := range l.changes.snapshot() {
		if err := fn(ctx, ch); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Collection[int]     = (*List[int])(nil)
	_ ChangeNotifier[int] = (*List[int])(nil)
	_ ItemNotifier[int]   = (*List[int])(nil)
)
