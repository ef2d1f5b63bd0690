//go:build !linux

package camera

import (
	"context"
	"fmt"
	"runtime"
)

// Webcam is only backed by V4L2; elsewhere Open reports no device.
type Webcam struct{}

func NewWebcam() *Webcam {
	return &Webcam{}
}

func (w *Webcam) String() string {
	return "v4l2"
}

func (w *Webcam) Open(context.Context, Constraints) (Stream, error) {
	return nil, fmt.Errorf("v4l2 capture unavailable on %s %w", runtime.GOOS, ErrorNoDevice)
}
