package lenz

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Entry is one key/value pair of a KV source.
type Entry struct {
	Key   string
	Value string
}

// KV is an ordered key/value source: entries are kept sorted by key and
// every mutation is reported as a granular change. It is the shared base
// for backend integrations, which turn full-state snapshots from their
// stores into per-key patches via Sync so downstream views update
// minimally. Oversized syncs still escalate through the view's own reset
// policy.
//
// Like List, a KV expects a single logical mutator; in the backend
// integrations that is the watch goroutine. Reads are safe concurrently
// with it. Change handlers run inside mutations and must not call back
// into the KV; views bound to a KV are mutated on the watch goroutine
// and keep their own single-threaded contract.
type KV struct {
	mu   sync.RWMutex
	list *List[Entry]
}

// NewKV creates an empty KV.
func NewKV() *KV {
	return &KV{list: NewList[Entry]()}
}

// Len returns the number of entries.
func (k *KV) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.list.Len()
}

// Get returns the value stored under key and whether it is present.
func (k *KV) Get(key string) (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	idx, found := k.search(key)
	if !found {
		return "", false
	}
	return k.list.At(idx).Value, true
}

// Snapshot returns a copy of the current entries in key order.
func (k *KV) Snapshot() []Entry {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.list.Snapshot()
}

// OnChanged registers a structural change handler.
func (k *KV) OnChanged(fn func(context.Context, Change[Entry]) error) (cancel func()) {
	return k.list.OnChanged(fn)
}

// Put stores value under key: an insert at the key's sorted position, a
// replace when the stored value differs, or a no-op when it is identical.
func (k *KV) Put(ctx context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	idx, found := k.search(key)
	if found {
		if k.list.At(idx).Value == value {
			return nil
		}
		return k.list.Set(ctx, idx, Entry{Key: key, Value: value})
	}
	return k.list.Insert(ctx, idx, Entry{Key: key, Value: value})
}

// Delete removes key if present.
func (k *KV) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	idx, found := k.search(key)
	if !found {
		return nil
	}
	return k.list.RemoveAt(ctx, idx, 1)
}

// Sync reconciles the KV with a full snapshot of the backing store,
// emitting one granular change per differing key. Entries may arrive in
// any order; duplicate keys resolve to the last occurrence.
func (k *KV) Sync(ctx context.Context, entries []Entry) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	in := slices.Clone(entries)
	slices.SortStableFunc(in, func(a, b Entry) int {
		return strings.Compare(a.Key, b.Key)
	})
	dedup := in[:0]
	for i := range in {
		if i+1 < len(in) && in[i+1].Key == in[i].Key {
			continue
		}
		dedup = append(dedup, in[i])
	}
	in = dedup

	// Both sides sorted: walk them together, patching the list so that
	// position i always holds the reconciled prefix.
	i, j := 0, 0
	for i < k.list.Len() && j < len(in) {
		cur := k.list.At(i)
		switch strings.Compare(cur.Key, in[j].Key) {
		case 0:
			if cur.Value != in[j].Value {
				if err := k.list.Set(ctx, i, in[j]); err != nil {
					return err
				}
			}
			i++
			j++
		case -1:
			if err := k.list.RemoveAt(ctx, i, 1); err != nil {
				return err
			}
		case 1:
			if err := k.list.Insert(ctx, i, in[j]); err != nil {
				return err
			}
			i++
			j++
		}
	}
	for i < k.list.Len() {
		if err := k.list.RemoveAt(ctx, i, 1); err != nil {
			return err
		}
	}
	for ; j < len(in); j++ {
		if err := k.list.Append(ctx, in[j]); err != nil {
			return err
		}
	}
	return nil
}

// search returns the sorted position of key and whether an entry with
// that exact key is already there.
func (k *KV) search(key string) (int, bool) {
	idx := sort.Search(k.list.Len(), func(i int) bool {
		return k.list.At(i).Key >= key
	})
	return idx, idx < k.list.Len() && k.list.At(idx).Key == key
}

var (
	_ Collection[Entry]     = (*KV)(nil)
	_ ChangeNotifier[Entry] = (*KV)(nil)
)
