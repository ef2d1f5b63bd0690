package camera

import (
	"context"
	"image"
	"image/color"
	"time"
)

var bars = []color.RGBA{
	{R: 235, G: 235, B: 235, A: 255},
	{R: 235, G: 235, B: 16, A: 255},
	{R: 16, G: 235, B: 235, A: 255},
	{R: 16, G: 235, B: 16, A: 255},
	{R: 235, G: 16, B: 235, A: 255},
	{R: 235, G: 16, B: 16, A: 255},
	{R: 16, G: 16, B: 235, A: 255},
}

// Pattern is a synthetic source drawing scrolling color bars, for machines
// without a capture device.
type Pattern struct {
	Interval time.Duration
}

func NewPattern(interval time.Duration) *Pattern {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}

	return &Pattern{Interval: interval}
}

func (p *Pattern) String() string {
	return "pattern"
}

func (p *Pattern) Open(ctx context.Context, c Constraints) (Stream, error) {
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = DefaultConstraints.Width, DefaultConstraints.Height
	}

	t := time.NewTicker(p.Interval)
	shift := 0

	grab := func(ctx context.Context) (image.Image, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}

		shift++

		return drawBars(c.Width, c.Height, shift), nil
	}

	return newStream(ctx, p.String(), grab, t.Stop), nil
}

func drawBars(w, h, shift int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bw := w / len(bars)

	if bw == 0 {
		bw = 1
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, bars[((x+shift)/bw)%len(bars)])
		}
	}

	return img
}
