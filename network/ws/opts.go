package ws

import (
	"time"

	"yogavision/network"
)

type Options struct {
	HandshakeTimeout time.Duration
	MaxMsgLen        uint32
	MaxWriteBufLen   uint32
}

type Option func(*Options)

func OptionWithHandshakeTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.HandshakeTimeout = t
	}
}

func OptionWithMaxMsgLen(n uint32) Option {
	return func(o *Options) {
		o.MaxMsgLen = n
	}
}

func OptionWithMaxWriteBufLen(n uint32) Option {
	return func(o *Options) {
		o.MaxWriteBufLen = n
	}
}

func defaultOptions() Options {
	return Options{
		HandshakeTimeout: network.DefaultHandshakeTimeout,
		MaxMsgLen:        network.DefaultMaxMsgLen,
		MaxWriteBufLen:   network.DefaultWriteBufLen,
	}
}
