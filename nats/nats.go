// Package nats projects a NATS JetStream KV bucket into a live lenz
// source using the native Watch API.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/zoobzio/lenz"
)

// Source mirrors a JetStream KV bucket as key-sorted lenz entries. The
// watch stream is fully granular: every put becomes a per-key put and
// every delete or purge a per-key delete, so views over a Source never
// see more than single-entry patches.
//
// Bind views before calling Start: the initial sync then flows through
// them as changes, and all later mutation arrives on the watch goroutine.
type Source struct {
	bucket jetstream.KeyValue
	kv     *lenz.KV

	lastError atomic.Pointer[error]
}

// New creates a Source for the given bucket.
func New(bucket jetstream.KeyValue) *Source {
	return &Source{
		bucket: bucket,
		kv:     lenz.NewKV(),
	}
}

// Snapshot returns a copy of the current entries in key order.
func (s *Source) Snapshot() []lenz.Entry {
	return s.kv.Snapshot()
}

// Get returns the value stored under key and whether it is present.
func (s *Source) Get(key string) (string, bool) {
	return s.kv.Get(key)
}

// OnChanged registers a structural change handler.
func (s *Source) OnChanged(fn func(context.Context, lenz.Change[lenz.Entry]) error) (cancel func()) {
	return s.kv.OnChanged(fn)
}

// LastError returns the last watch or delivery error, or nil.
func (s *Source) LastError() error {
	ptr := s.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Start watches the bucket, applies its current contents synchronously,
// then keeps the entries current until ctx ends. The watcher delivers
// every current entry before live updates, so nothing is lost between
// the two phases.
func (s *Source) Start(ctx context.Context) error {
	watcher, err := s.bucket.WatchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch bucket: %w", err)
	}

	// A nil entry signals the end of initial values. Keys whose latest
	// operation is a delete or purge still appear here; only puts are
	// live.
	var initial []lenz.Entry
	for {
		select {
		case <-ctx.Done():
			watcher.Stop()
			return ctx.Err()
		case entry, ok := <-watcher.Updates():
			if !ok {
				watcher.Stop()
				return errors.New("watch closed during initial sync")
			}
			if entry == nil {
				if err := s.kv.Sync(ctx, initial); err != nil {
					watcher.Stop()
					return fmt.Errorf("initial sync: %w", err)
				}
				go s.watch(ctx, watcher)
				return nil
			}
			if entry.Operation() == jetstream.KeyValuePut {
				initial = append(initial, lenz.Entry{Key: entry.Key(), Value: string(entry.Value())})
			}
		}
	}
}

func (s *Source) watch(ctx context.Context, watcher jetstream.KeyWatcher) {
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				return
			}
			if entry == nil {
				continue
			}

			var err error
			switch entry.Operation() {
			case jetstream.KeyValuePut:
				err = s.kv.Put(ctx, entry.Key(), string(entry.Value()))
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				err = s.kv.Delete(ctx, entry.Key())
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.setError(err)
			}
		}
	}
}

func (s *Source) setError(err error) {
	e := err
	s.lastError.Store(&e)
}

var (
	_ lenz.Collection[lenz.Entry]     = (*Source)(nil)
	_ lenz.ChangeNotifier[lenz.Entry] = (*Source)(nil)
)
