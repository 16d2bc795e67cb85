package testing

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/lenz"
)

func TestTestPlayer_Validate(t *testing.T) {
	tests := []struct {
		name    string
		player  TestPlayer
		wantErr bool
	}{
		{
			name:    "valid player",
			player:  TestPlayer{Name: "ava", Score: 100},
			wantErr: false,
		},
		{
			name:    "zero score",
			player:  TestPlayer{Name: "bo", Score: 0},
			wantErr: false,
		},
		{
			name:    "negative score",
			player:  TestPlayer{Name: "cam", Score: -1},
			wantErr: true,
		},
		{
			name:    "empty name",
			player:  TestPlayer{Name: "", Score: 50},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.player.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWaitFor(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		result := WaitFor(t, 100*time.Millisecond, func() bool {
			return true
		})
		if !result {
			t.Error("expected WaitFor to return true")
		}
	})

	t.Run("condition never met", func(t *testing.T) {
		result := WaitFor(t, 50*time.Millisecond, func() bool {
			return false
		})
		if result {
			t.Error("expected WaitFor to return false on timeout")
		}
	})

	t.Run("condition met after delay", func(t *testing.T) {
		start := time.Now()
		var met atomic.Bool
		go func() {
			time.Sleep(30 * time.Millisecond)
			met.Store(true)
		}()
		result := WaitFor(t, 100*time.Millisecond, func() bool {
			return met.Load()
		})
		if !result {
			t.Error("expected WaitFor to return true")
		}
		if time.Since(start) < 30*time.Millisecond {
			t.Error("condition should have taken at least 30ms")
		}
	})
}

func TestWaitForFeedState(t *testing.T) {
	feed, w := NewTestFeed[TestPlayer](t)

	w.TrySend([]byte(`[{"name": "ava", "score": 100}]`))
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !WaitForFeedState(t, feed, lenz.FeedHealthy, 100*time.Millisecond) {
		t.Error("expected feed to reach healthy state")
	}
}

func TestWaitForViewState(t *testing.T) {
	roster := lenz.NewList(
		TestPlayer{Name: "ava", Score: 100},
		TestPlayer{Name: "bo", Score: 200},
	)
	view := lenz.NewView(roster, func(p TestPlayer) string { return p.Name })

	if view.State() != lenz.StateIdle {
		t.Fatalf("expected idle state before start, got %s", view.State())
	}
	if err := view.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer view.Close()

	if !WaitForViewState(t, view, lenz.StateLive, 100*time.Millisecond) {
		t.Error("expected view to reach live state")
	}
}

func TestRequireOrder(t *testing.T) {
	roster := lenz.NewList(
		TestPlayer{Name: "ava", Score: 100},
		TestPlayer{Name: "bo", Score: 300},
		TestPlayer{Name: "cam", Score: 200},
	)
	view := lenz.NewView(roster, func(p TestPlayer) int { return p.Score }).
		Sort(func(a, b int) int { return b - a })

	if err := view.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer view.Close()

	// Should not fail for matching output.
	RequireOrder(t, view, []int{300, 200, 100})
}

func TestNewTestFeed(t *testing.T) {
	feed, w := NewTestFeed[TestPlayer](t)

	w.TrySend([]byte(`[{"name": "ava", "score": 100}, {"name": "bo", "score": 200}]`))
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if feed.Len() != 2 {
		t.Fatalf("expected 2 players, got %d", feed.Len())
	}
	if got := feed.At(0); got.Name != "ava" || got.Score != 100 {
		t.Errorf("unexpected first player: %+v", got)
	}

	// Subsequent documents are processed manually in sync mode.
	w.TrySend([]byte(`[{"name": "cam", "score": 300}]`))
	if !feed.Process(context.Background()) {
		t.Fatal("expected Process to consume the pending document")
	}
	if feed.Len() != 1 || feed.At(0).Name != "cam" {
		t.Errorf("unexpected collection after update: %+v", feed.Snapshot())
	}
}
