//go:build linux

package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"syscall"

	"yogavision/log"

	"github.com/blackjack/webcam"
	"go.uber.org/zap"
)

const frameTimeoutSecs = 1

func fourCC(code string) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(code[0]) | uint32(code[1])<<8 | uint32(code[2])<<16 | uint32(code[3])<<24)
}

var (
	pixFmtMJPEG = fourCC("MJPG")
	pixFmtPJPG  = fourCC("PJPG")
	pixFmtYUYV  = fourCC("YUYV")
)

// formats in order of preference; compressed formats decode cheaper over USB.
var formats = []webcam.PixelFormat{pixFmtMJPEG, pixFmtPJPG, pixFmtYUYV}

// Webcam captures from a V4L2 device.
type Webcam struct{}

func NewWebcam() *Webcam {
	return &Webcam{}
}

func (w *Webcam) String() string {
	return "v4l2"
}

func (w *Webcam) Open(ctx context.Context, c Constraints) (Stream, error) {
	cam, err := webcam.Open(c.Device)
	if err != nil {
		return nil, classify(c.Device, err)
	}

	format, err := pickFormat(cam)
	if err != nil {
		cam.Close()

		return nil, err
	}

	f, width, height, err := cam.SetImageFormat(format, uint32(c.Width), uint32(c.Height))
	if err != nil {
		cam.Close()

		return nil, fmt.Errorf("failed to set image format %w", err)
	}

	if c.Facing != "" && c.Facing != FacingUser {
		log.Debug("WebcamFacing", zap.String("facing", string(c.Facing)), zap.String("device", c.Device))
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()

		return nil, fmt.Errorf("failed to start streaming %w", err)
	}

	log.Info("WebcamOpened", zap.String("device", c.Device), zap.Uint32("width", width), zap.Uint32("height", height))

	grab := func(context.Context) (image.Image, error) {
		err := cam.WaitForFrame(frameTimeoutSecs)

		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			return nil, errSkip
		}

		if err != nil {
			return nil, fmt.Errorf("failed to wait for frame %w", err)
		}

		frame, err := cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %w", err)
		}

		if len(frame) == 0 {
			return nil, errSkip
		}

		return decode(f, frame, int(width), int(height))
	}

	release := func() {
		_ = cam.StopStreaming()
		_ = cam.Close()
	}

	return newStream(ctx, c.Device, grab, release), nil
}

func classify(device string, err error) error {
	switch {
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%s: %v %w", device, err, ErrorPermissionDenied)
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return fmt.Errorf("%s: %v %w", device, err, ErrorNoDevice)
	default:
		return fmt.Errorf("failed to open %s %w", device, err)
	}
}

func pickFormat(cam *webcam.Webcam) (webcam.PixelFormat, error) {
	supported := cam.GetSupportedFormats()

	for _, f := range formats {
		if _, ok := supported[f]; ok {
			return f, nil
		}
	}

	return 0, ErrorUnsupported
}

func decode(format webcam.PixelFormat, frame []byte, w, h int) (image.Image, error) {
	switch format {
	case pixFmtMJPEG, pixFmtPJPG:
		img, err := jpeg.Decode(bytes.NewReader(frame))
		if err != nil {
			// partial frames happen right after stream start
			return nil, errSkip
		}

		return img, nil
	case pixFmtYUYV:
		if len(frame) < w*h*2 {
			return nil, errSkip
		}

		img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
		for i := range img.Cb {
			ii := i * 4
			img.Y[i*2] = frame[ii]
			img.Y[i*2+1] = frame[ii+2]
			img.Cb[i] = frame[ii+1]
			img.Cr[i] = frame[ii+3]
		}

		return img, nil
	default:
		return nil, ErrorUnsupported
	}
}
