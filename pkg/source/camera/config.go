// Package camera captures frames from a local video device with OpenCV.
package camera

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-sightline/pkg/frame"
)

// Config holds capture settings.
type Config struct {
	// Device is a device index ("0") or a file/stream URL.
	Device string `json:"device" yaml:"device"`

	Width   int `json:"width" yaml:"width"`
	Height  int `json:"height" yaml:"height"`
	Quality int `json:"quality" yaml:"quality"` // JPEG quality 1-100

	// Rotation is applied by the engines, not on capture.
	Rotation int `json:"rotation" yaml:"rotation"`

	Interval time.Duration `json:"interval" yaml:"interval"`
}

// DefaultConfig captures 1280x720 from device 0 at ~3 fps.
func DefaultConfig() Config {
	return Config{
		Device:   "0",
		Width:    1280,
		Height:   720,
		Quality:  80,
		Interval: frame.DefaultSourceInterval,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	var errs []error
	if c.Device == "" {
		errs = append(errs, errors.New("camera: device required"))
	}
	if c.Width < 160 || c.Height < 120 {
		errs = append(errs, fmt.Errorf("camera: resolution %dx%d below 160x120", c.Width, c.Height))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("camera: quality %d outside 1-100", c.Quality))
	}
	if c.Rotation%90 != 0 {
		errs = append(errs, fmt.Errorf("camera: rotation %d is not a quarter turn", c.Rotation))
	}
	return errors.Join(errs...)
}
