// Package testing provides test utilities and helpers for lenz view and feed testing.
package testing

import (
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/lenz"
)

// TestPlayer is a standard element type for testing lenz pipelines.
// It implements lenz.Validator with configurable validation behavior.
type TestPlayer struct {
	Name  string `yaml:"name" json:"name"`
	Score int    `yaml:"score" json:"score"`
}

// Validate implements lenz.Validator.
func (p TestPlayer) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Score < 0 {
		return errors.New("score must be >= 0")
	}
	return nil
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForFeedState waits until the feed reaches the expected state or timeout occurs.
func WaitForFeedState[S comparable](t *testing.T, f *lenz.Feed[S], expected lenz.FeedState, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return f.State() == expected
	})
}

// WaitForViewState waits until the view reaches the expected state or timeout occurs.
func WaitForViewState[S comparable, T comparable](t *testing.T, v *lenz.View[S, T], expected lenz.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return v.State() == expected
	})
}

// RequireOrder fails the test immediately if the view's output does not
// match want element for element.
func RequireOrder[S comparable, T comparable](t *testing.T, v *lenz.View[S, T], want []T) {
	t.Helper()
	got := v.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected %d elements, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d: expected %v, got %v (full output: %v)", i, want[i], got[i], got)
		}
	}
}

// NewTestFeed creates a feed with a sync channel watcher for testing.
// Returns the feed and the watcher for pushing test documents.
func NewTestFeed[S comparable](t *testing.T) (*lenz.Feed[S], *lenz.ChannelWatcher) {
	t.Helper()
	w := lenz.NewSyncChannelWatcher(10)
	f := lenz.NewFeed[S](w).SyncMode()
	return f, w
}
