package lenz

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestList_NewListCopiesInput(t *testing.T) {
	src := []int{1, 2, 3}
	list := NewList(src...)

	src[0] = 99
	if list.At(0) != 1 {
		t.Errorf("list shares backing array with input: %v", list.Snapshot())
	}
}

func TestList_SnapshotIsACopy(t *testing.T) {
	list := NewList(1, 2, 3)
	snap := list.Snapshot()
	snap[0] = 99
	if list.At(0) != 1 {
		t.Errorf("snapshot shares backing array: %v", list.Snapshot())
	}
}

func TestList_AppendNotifies(t *testing.T) {
	ctx := context.Background()
	list := NewList(1, 2)

	var changes []Change[int]
	list.OnChanged(func(_ context.Context, ch Change[int]) error {
		changes = append(changes, ch)
		return nil
	})

	if err := list.Append(ctx, 3, 4); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if !slices.Equal(list.Snapshot(), []int{1, 2, 3, 4}) {
		t.Errorf("unexpected contents: %v", list.Snapshot())
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	ch := changes[0]
	if ch.Op != OpAdd || ch.Pos != 2 || !slices.Equal(ch.Items, []int{3, 4}) {
		t.Errorf("unexpected change: %+v", ch)
	}
}

func TestList_InsertShiftsRight(t *testing.T) {
	ctx := context.Background()
	list := NewList("a", "c")

	if err := list.Insert(ctx, 1, "b"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !slices.Equal(list.Snapshot(), []string{"a", "b", "c"}) {
		t.Errorf("unexpected contents: %v", list.Snapshot())
	}
}

func TestList_InsertNothingIsANoOp(t *testing.T) {
	ctx := context.Background()
	list := NewList(1)

	var count int
	list.OnChanged(func(_ context.Context, _ Change[int]) error {
		count++
		return nil
	})

	if err := list.Insert(ctx, 0); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if count != 0 {
		t.Errorf("empty insert notified %d times", count)
	}
}

func TestList_InsertOutOfRange(t *testing.T) {
	ctx := context.Background()
	list := NewList(1, 2)

	if err := list.Insert(ctx, 3, 9); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if err := list.Insert(ctx, -1, 9); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestList_RemoveAtCarriesRemovedContent(t *testing.T) {
	ctx := context.Background()
	list := NewList("a", "b", "c", "d")

	var changes []Change[string]
	list.OnChanged(func(_ context.Context, ch Change[string]) error {
		changes = append(changes, ch)
		return nil
	})

	if err := list.RemoveAt(ctx, 1, 2); err != nil {
		t.Fatalf("RemoveAt failed: %v", err)
	}

	if !slices.Equal(list.Snapshot(), []string{"a", "d"}) {
		t.Errorf("unexpected contents: %v", list.Snapshot())
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	ch := changes[0]
	if ch.Op != OpRemove || ch.Pos != 1 || !slices.Equal(ch.Removed, []string{"b", "c"}) {
		t.Errorf("unexpected change: %+v", ch)
	}
}

func TestList_RemoveZeroIsANoOp(t *testing.T) {
	ctx := context.Background()
	list := NewList(1, 2)

	var count int
	list.OnChanged(func(_ context.Context, _ Change[int]) error {
		count++
		return nil
	})

	if err := list.RemoveAt(ctx, 0, 0); err != nil {
		t.Fatalf("RemoveAt failed: %v", err)
	}
	if count != 0 || list.Len() != 2 {
		t.Errorf("zero remove had an effect: count=%d len=%d", count, list.Len())
	}
}

func TestList_RemoveOutOfRange(t *testing.T) {
	ctx := context.Background()
	list := NewList(1, 2, 3)

	if err := list.RemoveAt(ctx, 2, 2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if err := list.RemoveAt(ctx, -1, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if err := list.RemoveAt(ctx, 0, -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestList_SetNotifiesOldAndNew(t *testing.T) {
	ctx := context.Background()
	list := NewList(10, 20, 30)

	var changes []Change[int]
	list.OnChanged(func(_ context.Context, ch Change[int]) error {
		changes = append(changes, ch)
		return nil
	})

	if err := list.Set(ctx, 1, 25); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	ch := changes[0]
	if ch.Op != OpReplace || ch.Pos != 1 || !slices.Equal(ch.Items, []int{25}) || !slices.Equal(ch.Removed, []int{20}) {
		t.Errorf("unexpected change: %+v", ch)
	}

	if err := list.Set(ctx, 3, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestList_MoveTargetsPostRemovalPosition(t *testing.T) {
	ctx := context.Background()
	list := NewList("a", "b", "c")

	var changes []Change[string]
	list.OnChanged(func(_ context.Context, ch Change[string]) error {
		changes = append(changes, ch)
		return nil
	})

	if err := list.Move(ctx, 0, 2); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	if !slices.Equal(list.Snapshot(), []string{"b", "c", "a"}) {
		t.Errorf("unexpected contents: %v", list.Snapshot())
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	ch := changes[0]
	if ch.Op != OpMove || ch.OldPos != 0 || ch.Pos != 2 || ch.Items[0] != "a" {
		t.Errorf("unexpected change: %+v", ch)
	}
}

func TestList_MoveToSamePositionIsANoOp(t *testing.T) {
	ctx := context.Background()
	list := NewList(1, 2, 3)

	var count int
	list.OnChanged(func(_ context.Context, _ Change[int]) error {
		count++
		return nil
	})

	if err := list.Move(ctx, 1, 1); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if count != 0 {
		t.Errorf("no-op move notified %d times", count)
	}

	if err := list.Move(ctx, 0, 3); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestList_ResetReplacesContents(t *testing.T) {
	ctx := context.Background()
	list := NewList(1, 2, 3)

	var changes []Change[int]
	list.OnChanged(func(_ context.Context, ch Change[int]) error {
		changes = append(changes, ch)
		return nil
	})

	if err := list.Reset(ctx, 7, 8); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if !slices.Equal(list.Snapshot(), []int{7, 8}) {
		t.Errorf("unexpected contents: %v", list.Snapshot())
	}
	if len(changes) != 1 || changes[0].Op != OpReset {
		t.Errorf("expected single reset, got %+v", changes)
	}

	if err := list.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if list.Len() != 0 {
		t.Errorf("expected empty list, got %d", list.Len())
	}
}

func TestList_TouchReachesItemSubscribersOnly(t *testing.T) {
	ctx := context.Background()
	p := &player{"a", 10}
	list := NewList(p)

	var touched []*player
	list.OnItemChanged(func(_ context.Context, item *player) error {
		touched = append(touched, item)
		return nil
	})

	var structural int
	list.OnChanged(func(_ context.Context, _ Change[*player]) error {
		structural++
		return nil
	})

	p.score = 20
	if err := list.Touch(ctx, p); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	if len(touched) != 1 || touched[0] != p {
		t.Errorf("expected item notification for p, got %v", touched)
	}
	if structural != 0 {
		t.Errorf("touch reached %d structural subscribers", structural)
	}
}

func TestList_SubscriberErrorAbortsDelivery(t *testing.T) {
	ctx := context.Background()
	list := NewList(1)

	boom := errors.New("boom")
	list.OnChanged(func(_ context.Context, _ Change[int]) error {
		return boom
	})

	var secondCalled bool
	list.OnChanged(func(_ context.Context, _ Change[int]) error {
		secondCalled = true
		return nil
	})

	err := list.Append(ctx, 2)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if secondCalled {
		t.Error("second subscriber ran after first errored")
	}
	if list.Len() != 2 {
		t.Errorf("mutation should stand despite the error, got len %d", list.Len())
	}
}

func TestList_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	list := NewList(1)

	var count int
	cancel := list.OnChanged(func(_ context.Context, _ Change[int]) error {
		count++
		return nil
	})

	if err := list.Append(ctx, 2); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	cancel()
	cancel() // idempotent
	if err := list.Append(ctx, 3); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}
