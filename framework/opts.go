package framework

type (
	Options struct {
		Module []Module
		// Unhandled sees every decoded message with no route.
		Unhandled func(m interface{})
		// Dropped sees every message a busy pipeline refused.
		Dropped func(m interface{})
	}

	Option func(*Options)
)

func OptionWithModule(m Module) Option {
	return func(o *Options) {
		o.Module = append(o.Module, m)
	}
}

func OptionWithUnhandled(f func(interface{})) Option {
	return func(o *Options) {
		o.Unhandled = f
	}
}

func OptionWithDropped(f func(interface{})) Option {
	return func(o *Options) {
		o.Dropped = f
	}
}
