// Package firestore projects an ordered Firestore query into a live lenz
// source using realtime snapshot listeners.
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/firestore"

	"github.com/zoobzio/lenz"
)

// Doc is one query result: the document ID and its fields as canonical
// JSON. Two Docs are equal exactly when their stored fields are equal, so
// views re-derive only on real changes.
type Doc struct {
	ID   string
	Data string
}

// Source mirrors the results of a Firestore query in query order.
// Firestore's listener protocol reports per-document changes with old and
// new positions, so every server-side mutation reaches bound views as a
// granular patch: inserts and removals at a position, in-place updates,
// and relocations when an ordered field changes.
//
// Bind views before calling Start: the initial result set then flows
// through them as changes, and all later mutation arrives on the listen
// goroutine. Reads are safe concurrently with it.
type Source struct {
	query firestore.Query

	mu   sync.RWMutex
	list *lenz.List[Doc]

	lastError atomic.Pointer[error]
}

// New creates a Source for the given query. Use an OrderBy query for a
// deterministic mirror order.
func New(query firestore.Query) *Source {
	return &Source{
		query: query,
		list:  lenz.NewList[Doc](),
	}
}

// Snapshot returns a copy of the current results in query order.
func (s *Source) Snapshot() []Doc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list.Snapshot()
}

// Len returns the number of results currently mirrored.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list.Len()
}

// Get returns the document with the given ID and whether it is present.
func (s *Source) Get(id string) (Doc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.list.Snapshot() {
		if d.ID == id {
			return d, true
		}
	}
	return Doc{}, false
}

// OnChanged registers a structural change handler.
func (s *Source) OnChanged(fn func(context.Context, lenz.Change[Doc]) error) (cancel func()) {
	return s.list.OnChanged(fn)
}

// LastError returns the last listener or delivery error, or nil.
func (s *Source) LastError() error {
	ptr := s.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Start obtains the first query snapshot synchronously, then applies
// listener updates until ctx ends.
func (s *Source) Start(ctx context.Context) error {
	snapshots := s.query.Snapshots(ctx)

	first, err := snapshots.Next()
	if err != nil {
		snapshots.Stop()
		return fmt.Errorf("initial snapshot: %w", err)
	}
	if err := s.apply(ctx, first.Changes); err != nil {
		snapshots.Stop()
		return fmt.Errorf("initial sync: %w", err)
	}

	go s.listen(ctx, snapshots)

	return nil
}

func (s *Source) listen(ctx context.Context, snapshots *firestore.QuerySnapshotIterator) {
	defer snapshots.Stop()
	for {
		snap, err := snapshots.Next()
		if err != nil {
			// The iterator retries transient faults internally; an error
			// here ends the stream.
			if ctx.Err() == nil {
				s.setError(err)
			}
			return
		}
		if err := s.apply(ctx, snap.Changes); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setError(err)
		}
	}
}

// apply patches the mirror with one batch of listener changes. Change
// indices are relative to the mirror with earlier changes in the batch
// already applied, which is exactly how the list consumes them.
func (s *Source) apply(ctx context.Context, changes []firestore.DocumentChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, change := range changes {
		var err error
		switch change.Kind {
		case firestore.DocumentAdded:
			err = s.list.Insert(ctx, change.NewIndex, s.doc(change.Doc))
		case firestore.DocumentRemoved:
			err = s.list.RemoveAt(ctx, change.OldIndex, 1)
		case firestore.DocumentModified:
			if change.OldIndex == change.NewIndex {
				err = s.list.Set(ctx, change.NewIndex, s.doc(change.Doc))
				break
			}
			if err = s.list.RemoveAt(ctx, change.OldIndex, 1); err != nil {
				break
			}
			err = s.list.Insert(ctx, change.NewIndex, s.doc(change.Doc))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) doc(snap *firestore.DocumentSnapshot) Doc {
	data, err := json.Marshal(snap.Data())
	if err != nil {
		s.setError(fmt.Errorf("failed to encode %s: %w", snap.Ref.ID, err))
		return Doc{ID: snap.Ref.ID}
	}
	return Doc{ID: snap.Ref.ID, Data: string(data)}
}

func (s *Source) setError(err error) {
	e := err
	s.lastError.Store(&e)
}

var (
	_ lenz.Collection[Doc]     = (*Source)(nil)
	_ lenz.ChangeNotifier[Doc] = (*Source)(nil)
)
