package registry

import (
	"context"
	"time"
)

const DefaultWatchInterval = 5 * time.Second

type Options struct {
	Addr     string
	Password string
	Timeout  time.Duration
}

type ListOptions struct {
	Domain string
}

type WatchOptions struct {
	Context      context.Context
	Domain       string
	Interval     time.Duration
	EventHandler func(*Event)
}

type ListOption func(*ListOptions)

type WatchOption func(*WatchOptions)

type Option func(*Options)

func OptionWithAddr(a string) Option {
	return func(o *Options) {
		o.Addr = a
	}
}

func OptionWithPassword(p string) Option {
	return func(o *Options) {
		o.Password = p
	}
}

func OptionWithTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.Timeout = t
	}
}

func ListOptionWithDomain(d string) ListOption {
	return func(o *ListOptions) {
		o.Domain = d
	}
}

func WatchOptionWithDomain(d string) WatchOption {
	return func(o *WatchOptions) {
		o.Domain = d
	}
}

func WatchOptionWithInterval(t time.Duration) WatchOption {
	return func(o *WatchOptions) {
		o.Interval = t
	}
}

func WatchOptionWithEventHandler(h func(*Event)) WatchOption {
	return func(o *WatchOptions) {
		o.EventHandler = h
	}
}

func WatchOptionWithContext(ctx context.Context) WatchOption {
	return func(o *WatchOptions) {
		o.Context = ctx
	}
}
