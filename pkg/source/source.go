// Package source feeds frames into the pipeline. Sources throttle to
// frame.DefaultSourceInterval before publishing so encoding and transport
// work is not wasted on frames the lanes would overwrite anyway.
package source

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by Run after the remote end closed the stream
	// normally.
	ErrClosed = errors.New("source: stream closed")

	// ErrNoURL is returned when a WebSocket source has no address.
	ErrNoURL = errors.New("source: url required")
)

// Source produces frames until ctx is cancelled or it fails for good.
type Source interface {
	Name() string
	Run(ctx context.Context) error
}
