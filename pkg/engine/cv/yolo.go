package cv

import (
	"context"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-sightline/pkg/engine"
	"github.com/teslashibe/go-sightline/pkg/frame"
)

// YOLOConfig holds YOLOv8 detector configuration.
type YOLOConfig struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int
}

// DefaultYOLOConfig returns defaults for YOLOv8n at 640×640.
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.25,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// YOLO detects COCO objects with a YOLOv8 ONNX model.
type YOLO struct {
	cfg YOLOConfig

	mu     sync.Mutex
	net    gocv.Net
	loaded bool
	closed bool
}

// NewYOLO creates an unloaded detector.
func NewYOLO(cfg YOLOConfig) *YOLO {
	return &YOLO{cfg: cfg}
}

func (y *YOLO) Name() string { return "yolo" }

// Load reads the model from disk.
func (y *YOLO) Load(ctx context.Context) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.closed {
		return engine.LoadError(y.Name(), engine.ErrClosed)
	}
	if y.loaded {
		return nil
	}
	net, err := loadNet(y.cfg.ModelPath)
	if err != nil {
		return engine.LoadError(y.Name(), err)
	}
	y.net = net
	y.loaded = true
	return nil
}

// Run detects objects in f. Boxes are returned in original-frame
// coordinates with proximity left Unknown.
func (y *YOLO) Run(ctx context.Context, f *frame.Frame) (engine.Result, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	switch {
	case y.closed:
		return nil, engine.RunError(y.Name(), engine.ErrClosed)
	case !y.loaded:
		return nil, engine.RunError(y.Name(), engine.ErrNotLoaded)
	}

	img, err := decode(f)
	defer img.Close()
	if err != nil {
		return nil, engine.RunError(y.Name(), err)
	}

	size := image.Pt(y.cfg.InputWidth, y.cfg.InputHeight)
	input, lb := letterbox(img, size)
	defer input.Close()

	blob := gocv.BlobFromImage(input, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	// [1, 84, 8400]: 4 box values + 80 class scores per anchor.
	dims := output.Size()
	if len(dims) != 3 {
		return nil, engine.RunError(y.Name(), engine.ErrBadOutput)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, engine.RunError(y.Name(), err)
	}
	cands, err := engine.DecodeYOLOv8(data, dims[1], dims[2], y.cfg.ConfidenceThresh)
	if err != nil {
		return nil, engine.RunError(y.Name(), err)
	}
	if len(cands) == 0 {
		return engine.DetectionList{}, nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = image.Rect(int(c.X1), int(c.Y1), int(c.X2), int(c.Y2))
		scores[i] = c.Score
	}
	indices := gocv.NMSBoxes(boxes, scores, y.cfg.ConfidenceThresh, y.cfg.NMSThresh)

	kept := make([]engine.Candidate, 0, len(indices))
	for _, idx := range indices {
		kept = append(kept, cands[idx])
	}
	return engine.DetectionList{Items: engine.ToDetections(kept, lb)}, nil
}

// Close releases the network. Safe to call more than once.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.closed {
		return nil
	}
	y.closed = true
	if y.loaded {
		y.loaded = false
		return y.net.Close()
	}
	return nil
}

var _ engine.Engine = (*YOLO)(nil)
