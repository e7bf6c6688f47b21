package reader

import "errors"

var (
	// ErrOpen indicates the input file could not be opened or inspected.
	ErrOpen = errors.New("failed to open input")

	// ErrRead indicates an I/O failure while loading a buffer. The reader is
	// left in its last valid state, so the same call may be retried.
	ErrRead = errors.New("failed to read input")

	// ErrInvariant indicates the reader's internal state is corrupt. It is
	// never recoverable and the session should be aborted.
	ErrInvariant = errors.New("reader invariant violated")

	// ErrBeginningReached is returned by LoadBackward when there is no buffer
	// before the current one.
	ErrBeginningReached = errors.New("beginning of input reached")
)
