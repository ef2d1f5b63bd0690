// Package encoder rasterizes camera frames to a fixed size and serializes
// them as JPEG data URIs.
package encoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"golang.org/x/image/draw"
)

const (
	DefaultWidth   = 320
	DefaultHeight  = 240
	DefaultQuality = 50

	DataURIPrefix = "data:image/jpeg;base64,"
)

var (
	ErrorNilFrame   = errors.New("nil frame")
	ErrorNotDataURI = errors.New("not a jpeg data uri")
)

type Options struct {
	Width   int
	Height  int
	Quality int
	Scaler  draw.Scaler
}

type Option func(*Options)

func OptionWithSize(w, h int) Option {
	return func(o *Options) {
		o.Width, o.Height = w, h
	}
}

func OptionWithQuality(q int) Option {
	return func(o *Options) {
		o.Quality = q
	}
}

// Encoder reuses one canvas between frames; it is not safe for concurrent use.
type Encoder struct {
	opts   Options
	canvas *image.RGBA
	buf    bytes.Buffer
}

func New(opts ...Option) *Encoder {
	e := &Encoder{opts: Options{
		Width:   DefaultWidth,
		Height:  DefaultHeight,
		Quality: DefaultQuality,
		Scaler:  draw.ApproxBiLinear,
	}}

	for _, o := range opts {
		o(&e.opts)
	}

	e.canvas = image.NewRGBA(image.Rect(0, 0, e.opts.Width, e.opts.Height))

	return e
}

// Rasterize stretches src onto the fixed canvas regardless of its aspect ratio.
func (e *Encoder) Rasterize(src image.Image) (*image.RGBA, error) {
	if src == nil {
		return nil, ErrorNilFrame
	}

	e.opts.Scaler.Scale(e.canvas, e.canvas.Bounds(), src, src.Bounds(), draw.Src, nil)

	return e.canvas, nil
}

func (e *Encoder) JPEG(src image.Image) ([]byte, error) {
	canvas, err := e.Rasterize(src)
	if err != nil {
		return nil, err
	}

	e.buf.Reset()

	if err := jpeg.Encode(&e.buf, canvas, &jpeg.Options{Quality: e.opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg %w", err)
	}

	return e.buf.Bytes(), nil
}

// DataURI returns the frame as data:image/jpeg;base64,....
func (e *Encoder) DataURI(src image.Image) (string, error) {
	b, err := e.JPEG(src)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(len(DataURIPrefix) + base64.StdEncoding.EncodedLen(len(b)))
	sb.WriteString(DataURIPrefix)
	sb.WriteString(base64.StdEncoding.EncodeToString(b))

	return sb.String(), nil
}

// DecodeDataURI reverses DataURI.
func DecodeDataURI(uri string) (image.Image, error) {
	if !strings.HasPrefix(uri, DataURIPrefix) {
		return nil, ErrorNotDataURI
	}

	b, err := base64.StdEncoding.DecodeString(uri[len(DataURIPrefix):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to decode jpeg %w", err)
	}

	return img, nil
}
