package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned by Run before a successful Load.
	ErrNotLoaded = errors.New("engine: not loaded")

	// ErrClosed is returned by Load or Run after Close.
	ErrClosed = errors.New("engine: closed")

	// ErrModelNotFound is returned when a model file is missing.
	ErrModelNotFound = errors.New("engine: model file not found")

	// ErrEmptyFrame is returned for frames without image data.
	ErrEmptyFrame = errors.New("engine: empty frame")

	// ErrBadOutput is returned when a model produces a tensor of unexpected shape.
	ErrBadOutput = errors.New("engine: unexpected model output")
)

// Error records which engine failed and in which phase.
type Error struct {
	Engine string
	Op     string // "load" or "run"
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Engine, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LoadError wraps err as a load failure of engine name.
func LoadError(name string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Engine: name, Op: "load", Err: err}
}

// RunError wraps err as a run failure of engine name.
func RunError(name string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Engine: name, Op: "run", Err: err}
}
