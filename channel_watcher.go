package lenz

import "context"

// ChannelWatcher bridges in-process document producers to the Watcher
// interface. Producers push documents with Send or TrySend; a feed
// consumes them through Watch. Useful for testing and for custom sources
// that already produce serialized collections.
type ChannelWatcher struct {
	ch   chan []byte
	sync bool
}

// NewChannelWatcher creates a ChannelWatcher with the given buffer whose
// Watch forwards documents through an internal goroutine.
func NewChannelWatcher(buffer int) *ChannelWatcher {
	return &ChannelWatcher{ch: make(chan []byte, buffer), sync: false}
}

// NewSyncChannelWatcher creates a ChannelWatcher whose Watch returns the
// underlying channel directly without an intermediate goroutine.
// Use with Feed.SyncMode() for deterministic testing.
func NewSyncChannelWatcher(buffer int) *ChannelWatcher {
	return &ChannelWatcher{ch: make(chan []byte, buffer), sync: true}
}

// Send pushes a document, blocking until a consumer accepts it or ctx
// ends.
func (w *ChannelWatcher) Send(ctx context.Context, doc []byte) error {
	select {
	case w.ch <- doc:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend pushes a document without blocking. It reports whether the
// document was accepted.
func (w *ChannelWatcher) TrySend(doc []byte) bool {
	select {
	case w.ch <- doc:
		return true
	default:
		return false
	}
}

// Close signals the end of the document stream. Feeds process any pending
// document and stop watching. Send or TrySend after Close panics.
func (w *ChannelWatcher) Close() {
	close(w.ch)
}

// Watch returns a channel that emits pushed documents.
func (w *ChannelWatcher) Watch(ctx context.Context) (<-chan []byte, error) {
	if w.sync {
		return w.ch, nil
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-w.ch:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

var _ Watcher = (*ChannelWatcher)(nil)
