package live

import (
	"time"

	"yogavision/broker"
	"yogavision/camera"
	"yogavision/encoder"
	plmxs "yogavision/prometheus"
)

const DefaultQueueLen uint32 = 64

type Options struct {
	Channel     Channel
	Source      camera.Source
	Constraints camera.Constraints
	Interval    time.Duration
	Encoder     *encoder.Encoder
	Monitor     *plmxs.PrometheusMonitor
	Publisher   *broker.Publisher
	QueueLen    uint32
	Clock       func() time.Time
}

type Option func(*Options)

func OptionWithChannel(c Channel) Option {
	return func(o *Options) {
		o.Channel = c
	}
}

func OptionWithSource(s camera.Source) Option {
	return func(o *Options) {
		o.Source = s
	}
}

func OptionWithConstraints(c camera.Constraints) Option {
	return func(o *Options) {
		o.Constraints = c
	}
}

func OptionWithInterval(d time.Duration) Option {
	return func(o *Options) {
		o.Interval = d
	}
}

func OptionWithEncoder(e *encoder.Encoder) Option {
	return func(o *Options) {
		o.Encoder = e
	}
}

func OptionWithMonitor(m *plmxs.PrometheusMonitor) Option {
	return func(o *Options) {
		o.Monitor = m
	}
}

func OptionWithPublisher(p *broker.Publisher) Option {
	return func(o *Options) {
		o.Publisher = p
	}
}

func OptionWithQueueLen(n uint32) Option {
	return func(o *Options) {
		o.QueueLen = n
	}
}

func OptionWithClock(f func() time.Time) Option {
	return func(o *Options) {
		o.Clock = f
	}
}
