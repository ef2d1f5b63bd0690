package ui

import (
	"yogavision/exercises"
	plmxs "yogavision/prometheus"
)

const DefaultAddr = "127.0.0.1:8080"

type Options struct {
	Addr      string
	Session   Session
	Monitor   *plmxs.PrometheusMonitor
	Exercises exercises.Store
}

type Option func(*Options)

func OptionWithAddr(a string) Option {
	return func(o *Options) {
		o.Addr = a
	}
}

func OptionWithSession(s Session) Option {
	return func(o *Options) {
		o.Session = s
	}
}

func OptionWithMonitor(m *plmxs.PrometheusMonitor) Option {
	return func(o *Options) {
		o.Monitor = m
	}
}

// OptionWithExercises mounts the exercise selection endpoint.
func OptionWithExercises(s exercises.Store) Option {
	return func(o *Options) {
		o.Exercises = s
	}
}
