package lenz

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// Option configures the delivery pipeline of a View. Pipeline options wrap
// the subscriber fan-out with middleware for observation, filtering, and
// deadlines.
//
// Instance configuration (filter, sort, clock, etc.) is handled via
// chainable methods on the View before calling Start().
//
// Retry, backoff, and circuit-breaking wrappers are deliberately not
// offered: a change stream is exactly-once, and redelivering a patch after
// a partial fan-out would double-apply it downstream. Failed deliveries
// propagate to the mutating caller instead.
type Option[T comparable] func(pipz.Chainable[*Notification[T]]) pipz.Chainable[*Notification[T]]

// buildPipeline wraps a terminal with pipeline options.
func buildPipeline[T comparable](terminal pipz.Chainable[*Notification[T]], opts []Option[T]) pipz.Chainable[*Notification[T]] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// WithMiddleware wraps the delivery pipeline with a sequence of processors.
// Processors execute in order, with the subscriber fan-out last.
//
// Use the Use* functions to create processors for common patterns, or
// provide custom pipz.Chainable implementations directly.
//
// Example:
//
//	view := lenz.NewView(list, selector,
//	    lenz.WithMiddleware(
//	        lenz.UseEffect[Row]("audit", auditFn),
//	    ),
//	    lenz.WithTimeout[Row](time.Second),
//	)
func WithMiddleware[T comparable](processors ...pipz.Chainable[*Notification[T]]) Option[T] {
	return func(p pipz.Chainable[*Notification[T]]) pipz.Chainable[*Notification[T]] {
		all := make([]pipz.Chainable[*Notification[T]], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence("middleware", all...)
	}
}

// WithTimeout wraps delivery with a deadline. If patching plus fan-out
// takes longer than d, delivery fails and the error propagates to the
// mutating caller.
func WithTimeout[T comparable](d time.Duration) Option[T] {
	return func(p pipz.Chainable[*Notification[T]]) pipz.Chainable[*Notification[T]] {
		return pipz.NewTimeout("timeout", p, d)
	}
}

// WithErrorHandler adds error observation to delivery. Errors are passed
// to the handler for logging, metrics, or alerting, but still propagate.
// Use this for observability, not recovery.
func WithErrorHandler[T comparable](handler pipz.Chainable[*pipz.Error[*Notification[T]]]) Option[T] {
	return func(p pipz.Chainable[*Notification[T]]) pipz.Chainable[*Notification[T]] {
		return pipz.NewHandle("error-handler", p, handler)
	}
}

// UseEffect creates a processor that observes a notification without
// changing it. Use for logging, metrics, or audit trails.
func UseEffect[T comparable](name string, fn func(context.Context, *Notification[T]) error) pipz.Chainable[*Notification[T]] {
	return pipz.Effect(pipz.Name(name), fn)
}

// UseFilter wraps a processor with a condition. If the condition returns
// false, the notification passes through to the next stage unchanged.
func UseFilter[T comparable](name string, condition func(context.Context, *Notification[T]) bool, processor pipz.Chainable[*Notification[T]]) pipz.Chainable[*Notification[T]] {
	return pipz.NewFilter(pipz.Name(name), condition, processor)
}
