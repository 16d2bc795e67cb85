package lenz

import "github.com/zoobzio/pipz"

// Notification carries an output change through the delivery pipeline.
// Middleware stages observe the change and the output size it produced;
// the terminal stage fans out to subscribers.
type Notification[T comparable] struct {
	// Change is the output patch being delivered.
	Change Change[T]

	// Size is the output length after the change was applied.
	Size int
}

// fanoutID names the terminal pipeline stage that delivers to subscribers.
const fanoutID = pipz.Name("lenz:fanout")
