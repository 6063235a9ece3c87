// Package engine defines the inference engine capability consumed by the
// pipeline and the results each kind of engine produces.
//
// Backends live in subpackages: cv (gocv DNN YOLO and MiDaS) and
// cloudvision (Google Cloud Vision text recognition). Mock is provided here
// for tests.
package engine

import (
	"context"

	"github.com/teslashibe/go-sightline/pkg/depth"
	"github.com/teslashibe/go-sightline/pkg/frame"
	"github.com/teslashibe/go-sightline/pkg/perception"
)

// Engine is an opaque model: bitmap in, structured result out.
//
// Load is called once before the first Run. Run is only ever called from a
// single lane goroutine. Close releases resources and may be called more than
// once, including on an engine whose Load failed.
type Engine interface {
	Name() string
	Load(ctx context.Context) error
	Run(ctx context.Context, f *frame.Frame) (Result, error)
	Close() error
}

// Kind identifies the result variant.
type Kind int

const (
	KindDetections Kind = iota
	KindText
	KindDepth
)

func (k Kind) String() string {
	switch k {
	case KindDetections:
		return "detection"
	case KindText:
		return "text"
	case KindDepth:
		return "depth"
	default:
		return "unknown"
	}
}

// Result is one of DetectionList, RecognizedText or DepthMap.
type Result interface {
	Kind() Kind
	sealed()
}

// DetectionList is produced by object detectors.
type DetectionList struct {
	Items []perception.Detection `json:"items"`
}

// RecognizedText is produced by text recognisers.
type RecognizedText struct {
	Text   string   `json:"text"`
	Blocks []string `json:"blocks,omitempty"`
}

// DepthMap is produced by depth estimators.
type DepthMap struct {
	Surface *depth.Surface `json:"-"`
}

func (DetectionList) Kind() Kind  { return KindDetections }
func (RecognizedText) Kind() Kind { return KindText }
func (DepthMap) Kind() Kind       { return KindDepth }

func (DetectionList) sealed()  {}
func (RecognizedText) sealed() {}
func (DepthMap) sealed()       {}

// Empty reports whether no text was found.
func (r RecognizedText) Empty() bool {
	return len(r.Text) == 0
}
