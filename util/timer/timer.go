package timer

import (
	"context"
	"sync"
	"time"
)

type Ticker interface {
	Stop()
}

type ticker struct {
	t    *time.Ticker
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

func NewTicker(d time.Duration, f func()) Ticker {
	return NewTickerContext(context.Background(), d, f)
}

// NewTickerContext calls f every d until Stop is called or ctx is done.
func NewTickerContext(ctx context.Context, d time.Duration, f func()) Ticker {
	t := &ticker{
		t:    time.NewTicker(d),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer t.t.Stop()

		for {
			select {
			case <-t.t.C:
			case <-t.stop:
				return
			case <-ctx.Done():
				return
			}

			// a stop that raced with the tick wins
			select {
			case <-t.stop:
				return
			case <-ctx.Done():
				return
			default:
			}

			f()
		}
	}()

	return t
}

// Stop is idempotent and returns once no further call of f can start.
func (t *ticker) Stop() {
	t.once.Do(func() {
		close(t.stop)
	})
	<-t.done
}
