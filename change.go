package lenz

import "fmt"

// Op identifies the kind of mutation a Change describes.
type Op int32

const (
	// OpAdd is a contiguous insertion of one or more items.
	OpAdd Op = iota

	// OpRemove is a contiguous removal of one or more items.
	OpRemove

	// OpReplace is an in-place substitution of one or more items.
	OpReplace

	// OpMove is a relocation of a single item to a new position.
	OpMove

	// OpReset is a wholesale change. Receivers discard their state and
	// re-snapshot the source. Positional fields are meaningless.
	OpReset
)

// String returns the string representation of the operation.
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpReplace:
		return "replace"
	case OpMove:
		return "move"
	case OpReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Change describes a single mutation of an ordered collection. It is the
// unit of notification between sources, views, and subscribers.
//
// Positions refer to the collection as it was immediately before the
// change was applied (for removals and moves) or immediately after (for
// the destination of adds and moves), matching the usual patch reading:
// apply Remove at Pos, then the remaining elements shift down; apply Add
// at Pos, then prior elements at Pos and above shift up.
type Change[T any] struct {
	// Op is the kind of mutation.
	Op Op

	// Items holds the added items for Add, the new items for Replace, and
	// the single relocated item for Move. Empty for Reset. Empty for
	// Remove when the sender reports positions only; receivers resolve
	// content from their own mirror.
	Items []T

	// Removed holds the displaced items for Replace and, when the sender
	// chooses to include them, the removed items for Remove.
	Removed []T

	// Pos is the destination position: the insertion point for Add, the
	// first affected index for Remove and Replace, and the target index
	// for Move. It is -1 for Reset.
	Pos int

	// OldPos is the origin index for Move and -1 otherwise.
	OldPos int

	// count carries the affected-element count for Removes that omit
	// Removed content.
	count int
}

// NewAdd creates an Add change inserting items at pos.
func NewAdd[T any](pos int, items ...T) Change[T] {
	return Change[T]{Op: OpAdd, Items: items, Pos: pos, OldPos: -1}
}

// NewRemove creates a Remove change deleting items at pos. The removed
// items are carried for receivers that want them; senders that only track
// positions can use NewRemoveCount instead.
func NewRemove[T any](pos int, items ...T) Change[T] {
	return Change[T]{Op: OpRemove, Removed: items, Pos: pos, OldPos: -1}
}

// NewRemoveCount creates a Remove change deleting count items at pos
// without carrying their content.
func NewRemoveCount[T any](pos, count int) Change[T] {
	return Change[T]{Op: OpRemove, Pos: pos, OldPos: -1, count: count}
}

// NewReplace creates a Replace change substituting old for new at pos.
// len(oldItems) must equal len(newItems).
func NewReplace[T any](pos int, oldItems, newItems []T) Change[T] {
	return Change[T]{Op: OpReplace, Items: newItems, Removed: oldItems, Pos: pos, OldPos: -1}
}

// NewMove creates a Move change relocating the item from oldPos to newPos.
// Positions are interpreted as remove-at-oldPos then insert-at-newPos.
func NewMove[T any](oldPos, newPos int, item T) Change[T] {
	return Change[T]{Op: OpMove, Items: []T{item}, Pos: newPos, OldPos: oldPos}
}

// NewReset creates a Reset change.
func NewReset[T any]() Change[T] {
	return Change[T]{Op: OpReset, Pos: -1, OldPos: -1}
}

// Count returns the number of elements the change affects.
func (c Change[T]) Count() int {
	switch c.Op {
	case OpAdd:
		return len(c.Items)
	case OpRemove:
		if len(c.Removed) > 0 {
			return len(c.Removed)
		}
		return c.count
	case OpReplace:
		return len(c.Items)
	case OpMove:
		return 1
	default:
		return 0
	}
}

// String returns a compact description of the change for diagnostics.
func (c Change[T]) String() string {
	switch c.Op {
	case OpMove:
		return fmt.Sprintf("move[%d->%d]", c.OldPos, c.Pos)
	case OpReset:
		return "reset"
	default:
		return fmt.Sprintf("%s[%d:%d]", c.Op, c.Pos, c.Count())
	}
}

// validate checks the change's positional fields against the length of
// the collection it is about to be applied to.
func (c Change[T]) validate(length int) error {
	switch c.Op {
	case OpAdd:
		if len(c.Items) == 0 {
			return fmt.Errorf("%w: add carries no items", ErrInconsistent)
		}
		if c.Pos < 0 || c.Pos > length {
			return fmt.Errorf("%w: add at %d with length %d", ErrInconsistent, c.Pos, length)
		}
	case OpRemove:
		n := c.Count()
		if n <= 0 {
			return fmt.Errorf("%w: remove carries no count", ErrInconsistent)
		}
		if c.Pos < 0 || c.Pos+n > length {
			return fmt.Errorf("%w: remove [%d:%d] with length %d", ErrInconsistent, c.Pos, c.Pos+n, length)
		}
	case OpReplace:
		if len(c.Items) == 0 {
			return fmt.Errorf("%w: replace carries no items", ErrInconsistent)
		}
		if len(c.Removed) != 0 && len(c.Removed) != len(c.Items) {
			return fmt.Errorf("%w: replace old/new length mismatch %d/%d", ErrInconsistent, len(c.Removed), len(c.Items))
		}
		if c.Pos < 0 || c.Pos+len(c.Items) > length {
			return fmt.Errorf("%w: replace [%d:%d] with length %d", ErrInconsistent, c.Pos, c.Pos+len(c.Items), length)
		}
	case OpMove:
		if len(c.Items) > 1 {
			return fmt.Errorf("%w: multi-element move", ErrUnsupported)
		}
		if c.OldPos < 0 || c.OldPos >= length {
			return fmt.Errorf("%w: move from %d with length %d", ErrInconsistent, c.OldPos, length)
		}
		if c.Pos < 0 || c.Pos >= length {
			return fmt.Errorf("%w: move to %d with length %d", ErrInconsistent, c.Pos, length)
		}
	case OpReset:
		// Nothing positional to check.
	default:
		return fmt.Errorf("%w: unknown op %d", ErrInconsistent, int32(c.Op))
	}
	return nil
}
