package pipeline

import "errors"

var (
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("pipeline: stopped")

	// ErrNoEngine marks a lane that was configured without an engine.
	ErrNoEngine = errors.New("pipeline: no engine configured")

	// ErrPanic wraps a recovered panic from an engine.
	ErrPanic = errors.New("pipeline: engine panicked")

	// ErrUnexpectedResult is returned when an engine yields the wrong result kind.
	ErrUnexpectedResult = errors.New("pipeline: unexpected result kind")
)
