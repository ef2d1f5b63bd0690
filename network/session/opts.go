package session

import (
	"yogavision/network"
)

type Options struct {
	Conn    network.Conn
	Handler network.Handler
	Codec   network.Codec
	// Auth is sent with the namespace join, e.g. {"token": "..."}.
	Auth map[string]string
}

type Option func(*Options)

func OptionWithConn(c network.Conn) Option {
	return func(o *Options) {
		o.Conn = c
	}
}

func OptionWithHandler(h network.Handler) Option {
	return func(o *Options) {
		o.Handler = h
	}
}

func OptionWithCodec(c network.Codec) Option {
	return func(o *Options) {
		o.Codec = c
	}
}

func OptionWithAuth(a map[string]string) Option {
	return func(o *Options) {
		o.Auth = a
	}
}
