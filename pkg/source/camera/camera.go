package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/pkg/frame"
)

// maxEmptyReads is how many consecutive failed reads end the capture.
const maxEmptyReads = 50

// Camera reads frames from a device and publishes throttled JPEGs.
type Camera struct {
	cfg      Config
	throttle *frame.Throttle
	logger   *slog.Logger

	captured atomic.Uint64
}

// New creates a camera source. The device is opened by Run.
func New(cfg Config, pub frame.Publisher, logger *slog.Logger) (*Camera, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Component("source.camera")
	}
	return &Camera{cfg: cfg, throttle: frame.NewThrottle(pub, cfg.Interval), logger: logger}, nil
}

func (c *Camera) Name() string { return "camera" }

// Captured returns the number of frames published.
func (c *Camera) Captured() uint64 { return c.captured.Load() }

// Run captures until ctx is done or the device stops delivering frames.
func (c *Camera) Run(ctx context.Context) error {
	vc, err := gocv.OpenVideoCapture(c.cfg.Device)
	if err != nil {
		return fmt.Errorf("camera: open %s: %w", c.cfg.Device, err)
	}
	defer vc.Close()

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	c.logger.Info("capturing",
		"device", c.cfg.Device,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
	)

	img := gocv.NewMat()
	defer img.Close()

	empty := 0
	for ctx.Err() == nil {
		if ok := vc.Read(&img); !ok || img.Empty() {
			empty++
			if empty >= maxEmptyReads {
				return fmt.Errorf("camera: %d consecutive empty reads from %s", empty, c.cfg.Device)
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}
		empty = 0

		if !c.throttle.Allow() {
			continue
		}
		data, err := c.encode(img)
		if err != nil {
			c.logger.Warn("encode failed", "error", err)
			continue
		}
		c.captured.Add(1)
		c.throttle.Forward(frame.New(data, img.Cols(), img.Rows(), c.cfg.Rotation))
	}
	return nil
}

func (c *Camera) encode(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, c.cfg.Quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	// The native buffer is freed on Close.
	return append([]byte(nil), buf.GetBytes()...), nil
}
