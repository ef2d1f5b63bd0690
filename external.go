// Package yogavision wires a live pose-streaming session from configuration:
// the camera, the backend channel, optional discovery and telemetry, and the
// local console.
package yogavision

import (
	"context"
	"errors"
	"time"

	"yogavision/broker"
	"yogavision/config"
	"yogavision/exercises"
	"yogavision/registry"
)

const (
	DefaultWatchInterval = 5 * time.Second
	DefaultShutdownWait  = 5 * time.Second
)

var (
	ErrorNoBackend   = errors.New("no backend address")
	ErrorUnknownKind = errors.New("unknown component kind")
)

type App interface {
	// AddRegistry resolves the backend through r instead of a fixed address.
	AddRegistry(registry.Registry)
	// AddBroker publishes session telemetry through b.
	AddBroker(broker.Broker)
	// AddStore mounts the exercise selection endpoint on the console.
	AddStore(exercises.Store)
	// Run serves until ctx is done or the process is interrupted, then
	// tears everything down.
	Run(ctx context.Context) error
	Transport
}

// Transport lets callers drive the running session.
type Transport interface {
	Adjust(action string) error
	// ConsoleAddr is the bound console address once Run has started it.
	ConsoleAddr() string
	// Ready is closed once the session is open and the console is serving.
	Ready() <-chan struct{}
}

func NewApp(cfg *config.Config) App {
	return &app{
		cfg:   cfg,
		ready: make(chan struct{}),
	}
}
