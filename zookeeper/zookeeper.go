// Package zookeeper projects the children of a ZooKeeper node into a live
// lenz source using the native one-shot watch API.
package zookeeper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/zoobzio/lenz"
)

// Source mirrors the children of a ZooKeeper node as key-sorted lenz
// entries, keyed by child name with the child's data as value. ZooKeeper
// watches are one-shot and carry no payload, so every wake re-reads the
// subtree and diffs it against the mirror; views over a Source still see
// minimal per-key patches.
//
// Bind views before calling Start: the initial sync then flows through
// them as changes, and all later mutation arrives on the watch goroutine.
type Source struct {
	conn *zk.Conn
	path string
	kv   *lenz.KV

	lastError atomic.Pointer[error]
}

// New creates a Source for the children of the given ZooKeeper path.
func New(conn *zk.Conn, path string) *Source {
	return &Source{
		conn: conn,
		path: path,
		kv:   lenz.NewKV(),
	}
}

// Snapshot returns a copy of the current entries in key order.
func (s *Source) Snapshot() []lenz.Entry {
	return s.kv.Snapshot()
}

// Get returns the value stored under the child name and whether it is
// present.
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

// Start reads the subtree once synchronously, then re-syncs on every
// watch event until ctx ends. The watch loop arms fresh watches before
// each read, so no update between reads is missed.
func (s *Source) Start(ctx context.Context) error {
	children, _, err := s.conn.Children(s.path)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", s.path, err)
	}
	entries, err := s.read(children)
	if err != nil {
		return err
	}
	if err := s.kv.Sync(ctx, entries); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}

	go s.watch(ctx)

	return nil
}

// read fetches the data of each child. Children deleted between the list
// and the get are skipped; the next wake picks the deletion up.
func (s *Source) read(children []string) ([]lenz.Entry, error) {
	entries := make([]lenz.Entry, 0, len(children))
	for _, child := range children {
		data, _, err := s.conn.Get(s.path + "/" + child)
		if err == zk.ErrNoNode {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get %s/%s: %w", s.path, child, err)
		}
		entries = append(entries, lenz.Entry{Key: child, Value: string(data)})
	}
	return entries, nil
}

func (s *Source) watch(ctx context.Context) {
	for {
		wake := make(chan struct{}, 1)

		children, _, childEvents, err := s.conn.ChildrenW(s.path)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setError(err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		go forward(childEvents, wake)

		entries := make([]lenz.Entry, 0, len(children))
		for _, child := range children {
			data, _, dataEvents, err := s.conn.GetW(s.path + "/" + child)
			if err == zk.ErrNoNode {
				continue
			}
			if err != nil {
				s.setError(err)
				continue
			}
			entries = append(entries, lenz.Entry{Key: child, Value: string(data)})
			go forward(dataEvents, wake)
		}

		if err := s.kv.Sync(ctx, entries); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setError(err)
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		}
	}
}

// forward signals wake when a one-shot watch fires. Watch channels close
// after delivering their single event, or when the connection closes.
func forward(events <-chan zk.Event, wake chan struct{}) {
	if _, ok := <-events; !ok {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
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
