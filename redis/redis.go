// Package redis projects a Redis hash into a live lenz source using
// keyspace notifications.
package redis

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/zoobzio/lenz"
)

// Source mirrors the fields of a Redis hash as key-sorted lenz entries.
// Keyspace notifications carry only the command name, not the touched
// field, so every event re-reads the hash and diffs it through Sync;
// downstream views still see per-field patches.
//
// Requires Redis to have keyspace notifications enabled:
//
//	CONFIG SET notify-keyspace-events KEA
//
// Or in redis.conf:
//
//	notify-keyspace-events KEA
//
// Bind views before calling Start: the initial sync then flows through
// them as changes, and all later mutation arrives on the watch goroutine.
type Source struct {
	client *redis.Client
	key    string
	kv     *lenz.KV

	lastError atomic.Pointer[error]
}

// New creates a Source for the given hash key.
func New(client *redis.Client, key string) *Source {
	return &Source{
		client: client,
		key:    key,
		kv:     lenz.NewKV(),
	}
}

// Snapshot returns a copy of the current entries in field order.
func (s *Source) Snapshot() []lenz.Entry {
	return s.kv.Snapshot()
}

// Get returns the value stored under field and whether it is present.
func (s *Source) Get(field string) (string, bool) {
	return s.kv.Get(field)
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

// Start subscribes to keyspace notifications for the hash, reads it once
// synchronously, then keeps the entries current until ctx ends.
// Subscribing before the read means no update between the two is lost.
func (s *Source) Start(ctx context.Context) error {
	channel := fmt.Sprintf("__keyspace@%d__:%s", s.client.Options().DB, s.key)
	pubsub := s.client.Subscribe(ctx, channel)

	// Verify subscription worked
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to keyspace notifications: %w", err)
	}

	if err := s.sync(ctx); err != nil {
		pubsub.Close()
		return err
	}

	go s.watch(ctx, pubsub)

	return nil
}

func (s *Source) sync(ctx context.Context) error {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return fmt.Errorf("failed to read hash %s: %w", s.key, err)
	}
	entries := make([]lenz.Entry, 0, len(fields))
	for field, value := range fields {
		entries = append(entries, lenz.Entry{Key: field, Value: value})
	}
	return s.kv.Sync(ctx, entries)
}

func (s *Source) watch(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			// Only react to operations that change hash contents.
			switch msg.Payload {
			case "hset", "hdel", "hincrby", "hincrbyfloat", "del", "expired":
				if err := s.sync(ctx); err != nil {
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
