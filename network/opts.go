package network

import (
	"context"
	"time"
)

const (
	DefaultMaxMsgLen   uint32 = 1 << 20
	DefaultWriteBufLen uint32 = 8

	DefaultMaxReconnectNum   uint32        = 0
	DefualtReconnectInterval time.Duration = 2 * time.Second
	DefaultHandshakeTimeout  time.Duration = 5 * time.Second
)

type Options struct {
	Addr string
	Name string

	Codec   Codec
	Handler Handler

	MaxWriteBufLen uint32
	MaxMsgLen      uint32

	Context context.Context
}

type ClientOptions struct {
	Options
	Dialers []Dialer

	// MaxReconnectNum bounds consecutive failed dials; zero retries forever.
	MaxReconnectNum   uint32
	ReconnectInterval time.Duration
	HandshakeTimeout  time.Duration
	// Auth is the Socket.IO connect payload.
	Auth map[string]string
}

type ClientOption func(*ClientOptions)

func ClientOptionWithAddr(a string) ClientOption {
	return func(o *ClientOptions) {
		o.Addr = a
	}
}

func ClientOptionWithName(n string) ClientOption {
	return func(o *ClientOptions) {
		o.Name = n
	}
}

func ClientOptionWithDialers(d ...Dialer) ClientOption {
	return func(o *ClientOptions) {
		o.Dialers = d
	}
}

func ClientOptionWithMaxReconnectNum(n uint32) ClientOption {
	return func(o *ClientOptions) {
		o.MaxReconnectNum = n
	}
}

func ClientOptionWithMaxMsgLen(n uint32) ClientOption {
	return func(o *ClientOptions) {
		o.MaxMsgLen = n
	}
}

func ClientOptionWithMaxWriteBufLen(n uint32) ClientOption {
	return func(o *ClientOptions) {
		o.MaxWriteBufLen = n
	}
}

func ClientOptionWithReconnectInterval(t time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.ReconnectInterval = t
	}
}

func ClientOptionWithHandshakeTimeout(t time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.HandshakeTimeout = t
	}
}

func ClientOptionWithHandler(h Handler) ClientOption {
	return func(o *ClientOptions) {
		o.Handler = h
	}
}

func ClientOptionWithCodec(c Codec) ClientOption {
	return func(o *ClientOptions) {
		o.Codec = c
	}
}

func ClientOptionWithAuth(a map[string]string) ClientOption {
	return func(o *ClientOptions) {
		o.Auth = a
	}
}
