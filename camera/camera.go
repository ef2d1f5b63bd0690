// Package camera acquires a live video stream from a capture device. A
// Stream becomes usable once its first frame has been decoded, which is
// when Metadata delivers the frame dimensions.
package camera

import (
	"context"
	"errors"
	"image"
)

type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveEnoughData
)

type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

type Constraints struct {
	Width  int
	Height int
	Facing Facing
	Device string
}

var DefaultConstraints = Constraints{
	Width:  320,
	Height: 240,
	Facing: FacingUser,
	Device: "/dev/video0",
}

type Metadata struct {
	Width  int
	Height int
}

type Stream interface {
	// Metadata delivers the frame dimensions once, after the first frame.
	Metadata() <-chan Metadata
	ReadyState() ReadyState
	// Frame returns the most recent frame.
	Frame() (image.Image, error)
	// Err delivers the failure that ended the stream, at most once. After it
	// the stream is back to HaveNothing.
	Err() <-chan error
	// Stop releases the device. It is idempotent.
	Stop()
}

type Source interface {
	Open(context.Context, Constraints) (Stream, error)
	String() string
}

var (
	ErrorPermissionDenied = errors.New("camera permission denied")
	ErrorNoDevice         = errors.New("no camera device")
	ErrorNoFrame          = errors.New("no frame captured yet")
	ErrorUnsupported      = errors.New("unsupported pixel format")
	ErrorDeviceLost       = errors.New("camera stopped delivering frames")
)

// Describe turns an Open or read failure into the message shown to the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrorPermissionDenied):
		return "Could not access camera. Please ensure camera permissions are granted."
	case errors.Is(err, ErrorNoDevice):
		return "No camera found. Please connect a camera and reload."
	default:
		return "Could not access camera: " + err.Error()
	}
}
