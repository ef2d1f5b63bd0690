package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"yogavision/log"

	"go.uber.org/zap"
)

// errSkip tells the reader loop to try again without giving up.
var errSkip = errors.New("skip frame")

type grabFunc func(context.Context) (image.Image, error)

// stream runs one reader goroutine that keeps the latest decoded frame.
type stream struct {
	name string

	mu     sync.Mutex
	latest image.Image
	state  ReadyState
	err    error

	meta     chan Metadata
	errCh    chan error
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	release  func()
}

func newStream(ctx context.Context, name string, grab grabFunc, release func()) *stream {
	ctx, cancel := context.WithCancel(ctx)

	s := &stream{
		name:    name,
		meta:    make(chan Metadata, 1),
		errCh:   make(chan error, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
		release: release,
	}

	go s.read(ctx, grab)

	return s
}

func (s *stream) read(ctx context.Context, grab grabFunc) {
	defer close(s.done)

	for ctx.Err() == nil {
		img, err := grab(ctx)
		if err != nil {
			if errors.Is(err, errSkip) || ctx.Err() != nil {
				continue
			}

			log.Error("CameraRead", zap.String("source", s.name), zap.String("err", err.Error()))
			s.fail(fmt.Errorf("%w: %v", ErrorDeviceLost, err))

			return
		}

		s.publish(img)
	}
}

func (s *stream) publish(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = img

	switch s.state {
	case HaveNothing:
		s.state = HaveMetadata
		b := img.Bounds()
		s.meta <- Metadata{Width: b.Dx(), Height: b.Dy()}
	case HaveMetadata:
		s.state = HaveEnoughData
	}
}

// fail drops the last frame so nobody keeps streaming a frozen image.
func (s *stream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.latest = nil
	s.state = HaveNothing
	s.mu.Unlock()

	s.errCh <- err
}

func (s *stream) Err() <-chan error {
	return s.errCh
}

func (s *stream) Metadata() <-chan Metadata {
	return s.meta
}

func (s *stream) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *stream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	if s.latest == nil {
		return nil, ErrorNoFrame
	}

	return s.latest, nil
}

func (s *stream) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done

		if s.release != nil {
			s.release()
		}

		log.Info("CameraStopped", zap.String("source", s.name))
	})
}
