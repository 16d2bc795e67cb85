// Package consul projects a Consul KV prefix into a live lenz source
// using blocking queries.
package consul

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/consul/api"

	"github.com/zoobzio/lenz"
)

// Source mirrors every key under a Consul KV prefix as key-sorted lenz
// entries. Changes are detected with WaitIndex-gated blocking queries;
// each re-list is diffed into granular per-key patches, so views over a
// Source update minimally.
//
// Bind views before calling Start: the initial sync then flows through
// them as changes, and all later mutation arrives on the watch goroutine.
type Source struct {
	client *api.Client
	prefix string
	kv     *lenz.KV

	lastError atomic.Pointer[error]
}

// New creates a Source for the given KV prefix.
func New(client *api.Client, prefix string) *Source {
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

// Start lists the prefix once synchronously, then keeps the source
// current with blocking queries until ctx ends.
func (s *Source) Start(ctx context.Context) error {
	kvAPI := s.client.KV()

	opts := (&api.QueryOptions{}).WithContext(ctx)
	pairs, meta, err := kvAPI.List(s.prefix, opts)
	if err != nil {
		return fmt.Errorf("failed to list prefix %s: %w", s.prefix, err)
	}
	if err := s.kv.Sync(ctx, toEntries(pairs)); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}

	go s.watch(ctx, meta.LastIndex)

	return nil
}

// watch re-lists the prefix whenever the Consul index moves past
// lastIndex and reconciles the result into the KV.
func (s *Source) watch(ctx context.Context, lastIndex uint64) {
	kvAPI := s.client.KV()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		opts := &api.QueryOptions{WaitIndex: lastIndex}
		opts = opts.WithContext(ctx)

		pairs, meta, err := kvAPI.List(s.prefix, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setError(err)
			continue
		}

		if meta.LastIndex == lastIndex {
			continue
		}
		lastIndex = meta.LastIndex

		if err := s.kv.Sync(ctx, toEntries(pairs)); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setError(err)
		}
	}
}

func (s *Source) setError(err error) {
	e := err
	s.lastError.Store(&e)
}

func toEntries(pairs api.KVPairs) []lenz.Entry {
	entries := make([]lenz.Entry, 0, len(pairs))
	for _, p := range pairs {
		entries = append(entries, lenz.Entry{Key: p.Key, Value: string(p.Value)})
	}
	return entries
}

var (
	_ lenz.Collection[lenz.Entry]     = (*Source)(nil)
	_ lenz.ChangeNotifier[lenz.Entry] = (*Source)(nil)
)
