package broker

import "time"

const DefaultTimeout = 3 * time.Second

type Options struct {
	Name     string
	Addr     string
	Password string
	// Exchange is only used by amqp brokers.
	Exchange string
	Timeout  time.Duration
}

type Option func(*Options)

func OptionWithName(n string) Option {
	return func(o *Options) {
		o.Name = n
	}
}

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

func OptionWithExchange(e string) Option {
	return func(o *Options) {
		o.Exchange = e
	}
}

func OptionWithTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.Timeout = t
	}
}
