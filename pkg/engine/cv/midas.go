package cv

import (
	"context"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-sightline/pkg/engine"
	"github.com/teslashibe/go-sightline/pkg/frame"
)

// MiDaSConfig holds monocular depth model configuration.
type MiDaSConfig struct {
	ModelPath string
	InputSize int
}

// DefaultMiDaSConfig returns defaults for MiDaS v2.1 small.
func DefaultMiDaSConfig() MiDaSConfig {
	return MiDaSConfig{
		ModelPath: "models/midas_v21_small_256.onnx",
		InputSize: 256,
	}
}

// MiDaS estimates relative depth and reports it as a closeness surface.
type MiDaS struct {
	cfg MiDaSConfig

	mu     sync.Mutex
	net    gocv.Net
	loaded bool
	closed bool
}

// NewMiDaS creates an unloaded depth estimator.
func NewMiDaS(cfg MiDaSConfig) *MiDaS {
	return &MiDaS{cfg: cfg}
}

func (m *MiDaS) Name() string { return "midas" }

func (m *MiDaS) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return engine.LoadError(m.Name(), engine.ErrClosed)
	}
	if m.loaded {
		return nil
	}
	net, err := loadNet(m.cfg.ModelPath)
	if err != nil {
		return engine.LoadError(m.Name(), err)
	}
	m.net = net
	m.loaded = true
	return nil
}

// Run returns a DepthMap at model resolution. The surface is stretched over
// the whole frame, so normalized coordinates line up with detections.
func (m *MiDaS) Run(ctx context.Context, f *frame.Frame) (engine.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return nil, engine.RunError(m.Name(), engine.ErrClosed)
	case !m.loaded:
		return nil, engine.RunError(m.Name(), engine.ErrNotLoaded)
	}

	img, err := decode(f)
	defer img.Close()
	if err != nil {
		return nil, engine.RunError(m.Name(), err)
	}

	size := image.Pt(m.cfg.InputSize, m.cfg.InputSize)
	blob := gocv.BlobFromImage(img, 1.0/255.0, size, gocv.NewScalar(123.675, 116.28, 103.53, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	// [1, H, W] inverse relative depth.
	dims := output.Size()
	if len(dims) < 2 {
		return nil, engine.RunError(m.Name(), engine.ErrBadOutput)
	}
	h, w := dims[len(dims)-2], dims[len(dims)-1]
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, engine.RunError(m.Name(), err)
	}
	surf, err := engine.NormalizeDepth(data, w, h)
	if err != nil {
		return nil, engine.RunError(m.Name(), err)
	}
	return engine.DepthMap{Surface: surf}, nil
}

func (m *MiDaS) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.loaded {
		m.loaded = false
		return m.net.Close()
	}
	return nil
}

var _ engine.Engine = (*MiDaS)(nil)
