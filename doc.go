/*
Package lenz maintains live derived collections: an ordered view of
sort(filter(map(source))) that stays current by applying minimal patches
instead of recomputing.

lenz is designed to be embedded within programs that render, serve, or
forward ordered data, not run as a standalone service. A view binds to a
source collection, derives its output once, and from then on translates
every source change into the smallest output patch it can prove correct.

# Basic Usage

Declare a view over a source with chainable configuration:

	board := lenz.NewView(roster, func(p Player) Row { return project(p) }).
	    Filter(func(r Row) bool { return r.Active }).
	    Sort(func(a, b Row) int { return b.Score - a.Score })

	if err := board.Start(ctx); err != nil {
	    log.Fatal(err)
	}

Subscribe to the maintained output:

	board.OnChanged(func(ctx context.Context, ch lenz.Change[Row]) error {
	    applyPatch(ch) // add, remove, replace, move, or reset
	    return nil
	})

# Sources

Any type with a Snapshot method is a source. Sources that also report
changes keep views live:

	roster := lenz.NewList(players...)   // ordered, granular changes
	config := lenz.NewKV()               // key-sorted entries, diffed syncs
	static := lenz.Slice[Player](items)  // plain slice, refresh-only

Views probe capability at Start and degrade gracefully: a source without
change notifications still populates, and Refresh re-derives on demand.

# Feeds

A Feed adapts a document stream into a source. Documents are decoded,
validated element by element, and applied as wholesale resets; a failed
document leaves the previous collection intact:

	feed := lenz.NewFeed[Player](lenz.NewFileWatcher("players.json")).
	    Debounce(100 * time.Millisecond).
	    TagValidation()

	if err := feed.Start(ctx); err != nil {
	    log.Printf("initial document failed: %v", err)
	}

	board := lenz.NewView(feed, project).Sort(byScore)

# Batch Escalation

Small changes patch; large ones reset. When a single batch affects more
than a threshold fraction of the output, the view collapses it into one
reset instead of a storm of patches:

	view.ResetThreshold(0.3, 10) // fraction, minimum output size

# Delivery Pipeline

Subscriber delivery runs through a pipz pipeline. Options add middleware
around the fanout:

	view := lenz.NewView(source, selector,
	    lenz.WithTimeout[Row](time.Second),
	    lenz.WithMiddleware(lenz.UseEffect[Row]("audit", audit)),
	)

# Observability

Views and feeds emit capitan signals for every lifecycle transition,
applied change, failure, and escalation:

	capitan.Hook(lenz.ViewResetEscalated, func(ctx context.Context, e *capitan.Event) {
	    batch, _ := lenz.KeyBatchLen.From(e)
	    log.Printf("reset escalation: batch=%d", batch)
	})

The package is built on top of:
  - pipz: For composable delivery pipelines
  - capitan: For signal-based observability
  - clockz: For testable time
*/
package lenz
