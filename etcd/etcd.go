// Package etcd projects an etcd key prefix into a live lenz source using
// the native Watch API.
package etcd

import (
	"context"
	"fmt"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/zoobzio/lenz"
)

// Source mirrors every key under an etcd prefix as key-sorted lenz
// entries. The watch stream is fully granular: every PUT becomes a
// per-key put and every DELETE a per-key delete, so views over a Source
// never see more than single-entry patches.
//
// Bind views before calling Start: the initial sync then flows through
// them as changes, and all later mutation arrives on the watch goroutine.
type Source struct {
	client *clientv3.Client
	prefix string
	kv     *lenz.KV

	lastError atomic.Pointer[error]
}

// New creates a Source for the given key prefix.
func New(client *clientv3.Client, prefix string) *Source {
	return &Source{
		client: client,
		prefix: prefix,
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

// Start reads the prefix once synchronously, then applies watch events
// from the revision after the read until ctx ends. Nothing between the
// read and the watch is lost.
func (s *Source) Start(ctx context.Context) error {
	resp, err := s.client.Get(ctx, s.prefix, clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("failed to get prefix %s: %w", s.prefix, err)
	}

	entries := make([]lenz.Entry, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		entries = append(entries, lenz.Entry{Key: string(kv.Key), Value: string(kv.Value)})
	}
	if err := s.kv.Sync(ctx, entries); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}

	watchChan := s.client.Watch(ctx, s.prefix,
		clientv3.WithPrefix(),
		clientv3.WithRev(resp.Header.Revision+1),
	)
	go s.watch(ctx, watchChan)

	return nil
}

func (s *Source) watch(ctx context.Context, watchChan clientv3.WatchChan) {
	for {
		select {
		case <-ctx.Done():
			return
		case watchResp, ok := <-watchChan:
			if !ok {
				return
			}
			if err := watchResp.Err(); err != nil {
				s.setError(err)
				continue
			}

			for _, event := range watchResp.Events {
				var err error
				switch event.Type {
				case clientv3.EventTypePut:
					err = s.kv.Put(ctx, string(event.Kv.Key), string(event.Kv.Value))
				case clientv3.EventTypeDelete:
					err = s.kv.Delete(ctx, string(event.Kv.Key))
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
}

func (s *Source) setError(err error) {
	e := err
	s.lastError.Store(&e)
}

var (
	_ lenz.Collection[lenz.Entry]     = (*Source)(nil)
	_ lenz.ChangeNotifier[lenz.Entry] = (*Source)(nil)
)
