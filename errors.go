package lenz

import "errors"

// Sentinel errors returned by views and sources. Callers match them with
// errors.Is; returned errors wrap these with positional context.
var (
	// ErrUnsupported indicates a change the engine deliberately does not
	// handle, such as a multi-element move.
	ErrUnsupported = errors.New("lenz: unsupported change")

	// ErrInconsistent indicates a change that disagrees with the
	// receiver's bookkeeping, such as a removal beyond the mirror length.
	// It means the source violated its notification contract.
	ErrInconsistent = errors.New("lenz: inconsistent change")

	// ErrViewClosed indicates an operation on a closed view.
	ErrViewClosed = errors.New("lenz: view closed")

	// ErrOutOfRange indicates a positional argument outside the
	// collection's bounds.
	ErrOutOfRange = errors.New("lenz: position out of range")
)
