// Package cv implements detection and depth engines on OpenCV DNN via gocv.
package cv

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-sightline/pkg/engine"
	"github.com/teslashibe/go-sightline/pkg/frame"
	"github.com/teslashibe/go-sightline/pkg/perception"
)

// letterboxPad is the grey used by Ultralytics for padding.
var letterboxPad = color.RGBA{R: 114, G: 114, B: 114, A: 0}

// decode turns a frame into an upright BGR Mat. The caller closes it.
func decode(f *frame.Frame) (gocv.Mat, error) {
	if f == nil || len(f.Data) == 0 {
		return gocv.NewMat(), engine.ErrEmptyFrame
	}
	img, err := gocv.IMDecode(f.Data, gocv.IMReadColor)
	if err != nil {
		return img, fmt.Errorf("decode image: %w", err)
	}
	if img.Empty() {
		return img, engine.ErrEmptyFrame
	}

	var code gocv.RotateFlag
	switch f.Rotation {
	case 90:
		code = gocv.Rotate90Clockwise
	case 180:
		code = gocv.Rotate180Clockwise
	case 270:
		code = gocv.Rotate90CounterClockwise
	default:
		return img, nil
	}
	rotated := gocv.NewMat()
	gocv.Rotate(img, &rotated, code)
	img.Close()
	return rotated, nil
}

// letterbox resizes img to fit size while keeping its aspect ratio and pads
// the remainder. The returned Mat must be closed by the caller.
func letterbox(img gocv.Mat, size image.Point) (gocv.Mat, perception.Letterbox) {
	lb := perception.NewLetterbox(img.Cols(), img.Rows(), size.X, size.Y)
	scaled := lb.ScaledSize()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, scaled, 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMat()
	right := size.X - scaled.X - lb.PadX
	bottom := size.Y - scaled.Y - lb.PadY
	gocv.CopyMakeBorder(resized, &padded, lb.PadY, bottom, lb.PadX, right, gocv.BorderConstant, letterboxPad)
	return padded, lb
}

func loadNet(path string) (gocv.Net, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.Net{}, fmt.Errorf("%w: %s", engine.ErrModelNotFound, path)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return net, fmt.Errorf("failed to load model from %s", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return net, nil
}
