package yogavision

import (
	"fmt"
	"io"

	"yogavision/broker"
	"yogavision/broker/kafka"
	"yogavision/broker/rabbit"
	rbroker "yogavision/broker/redis"
	"yogavision/config"
	"yogavision/exercises"
	"yogavision/registry"
	rregistry "yogavision/registry/redis"
	"yogavision/registry/zookeeper"
)

// FromConfig builds an App with the registry, telemetry broker and exercise
// store the configuration names.
func FromConfig(cfg *config.Config) (App, error) {
	a := NewApp(cfg)

	r, err := NewRegistry(cfg.Registry)
	if err != nil {
		return nil, err
	}

	if r != nil {
		a.AddRegistry(r)
	}

	b, err := NewBroker(cfg.Name, cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	if b != nil {
		a.AddBroker(b)
	}

	if cfg.Database.Addr != "" {
		s, err := exercises.OpenMySQL(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open exercise store %w", err)
		}

		a.AddStore(s)
	}

	return a, nil
}

// NewRegistry returns nil when no registry kind is configured.
func NewRegistry(c config.Registry) (registry.Registry, error) {
	opts := []registry.Option{
		registry.OptionWithAddr(c.Addr),
		registry.OptionWithPassword(c.Password),
		registry.OptionWithTimeout(c.Timeout),
	}

	switch c.Kind {
	case "":
		return nil, nil
	case "redis":
		return rregistry.NewRegistry(opts...), nil
	case "zookeeper":
		return zookeeper.NewRegistry(opts...), nil
	default:
		return nil, fmt.Errorf("registry %q %w", c.Kind, ErrorUnknownKind)
	}
}

// NewBroker returns nil when no telemetry kind is configured.
func NewBroker(name string, c config.Telemetry) (broker.Broker, error) {
	opts := []broker.Option{
		broker.OptionWithName(name),
		broker.OptionWithAddr(c.Addr),
		broker.OptionWithPassword(c.Password),
	}

	if c.Exchange != "" {
		opts = append(opts, broker.OptionWithExchange(c.Exchange))
	}

	switch c.Kind {
	case "":
		return nil, nil
	case "redis":
		return rbroker.NewBroker(opts...), nil
	case "kafka":
		return kafka.NewBroker(opts...), nil
	case "rabbit":
		return rabbit.NewBroker(opts...), nil
	default:
		return nil, fmt.Errorf("telemetry %q %w", c.Kind, ErrorUnknownKind)
	}
}

func closeStore(s exercises.Store) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}
