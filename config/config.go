// Package config loads the client configuration from YAML. Unset fields keep
// their defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"yogavision/exercises"

	"gopkg.in/yaml.v2"
)

var ErrorInvalidConfig = errors.New("invalid config")

const (
	SourceV4L2    = "v4l2"
	SourcePattern = "pattern"
)

type Config struct {
	Name      string             `yaml:"name"`
	LogLevel  string             `yaml:"log_level"`
	Backend   Backend            `yaml:"backend"`
	Registry  Registry           `yaml:"registry"`
	Camera    Camera             `yaml:"camera"`
	Capture   Capture            `yaml:"capture"`
	Console   Console            `yaml:"console"`
	Metrics   Console            `yaml:"metrics"`
	Profile   Console            `yaml:"profile"`
	Telemetry Telemetry          `yaml:"telemetry"`
	Database  exercises.DBConfig `yaml:"database"`
	Exercises Exercises          `yaml:"exercises"`
}

func Default() *Config {
	return &Config{
		Name:     "yogavision",
		LogLevel: "info",
		Backend: Backend{
			Addr:              "http://localhost:5000",
			Transports:        []string{"websocket", "polling"},
			ReconnectInterval: 2 * time.Second,
			HandshakeTimeout:  5 * time.Second,
			WriteBuffer:       8,
		},
		Registry: Registry{
			Domain:  "yogavision",
			Service: "pose-backend",
			Timeout: 5 * time.Second,
		},
		Camera: Camera{
			Source: SourceV4L2,
			Device: "/dev/video0",
			Width:  320,
			Height: 240,
			Facing: "user",
		},
		Capture: Capture{
			Interval: 33 * time.Millisecond,
			Quality:  50,
		},
		Console: Console{Listen: "127.0.0.1:8080"},
		Telemetry: Telemetry{
			Topic:  "yogavision.telemetry",
			Buffer: 64,
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()

	if path == "" {
		return c, c.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config %w", err)
	}
	defer f.Close()

	if err := c.Decode(f); err != nil {
		return nil, err
	}

	return c, c.Validate()
}

func (c *Config) Decode(r io.Reader) error {
	d := yaml.NewDecoder(r)
	d.SetStrict(true)

	if err := d.Decode(c); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode config %v %w", err, ErrorInvalidConfig)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Backend.Addr == "" && c.Registry.Kind == "" {
		return fmt.Errorf("backend.addr or registry.kind required %w", ErrorInvalidConfig)
	}

	if len(c.Backend.Transports) == 0 {
		return fmt.Errorf("backend.transports empty %w", ErrorInvalidConfig)
	}

	for _, t := range c.Backend.Transports {
		if t != "websocket" && t != "polling" {
			return fmt.Errorf("unknown transport %q %w", t, ErrorInvalidConfig)
		}
	}

	switch c.Registry.Kind {
	case "", "redis", "zookeeper":
	default:
		return fmt.Errorf("unknown registry %q %w", c.Registry.Kind, ErrorInvalidConfig)
	}

	switch c.Telemetry.Kind {
	case "", "redis", "kafka", "rabbit":
	default:
		return fmt.Errorf("unknown telemetry broker %q %w", c.Telemetry.Kind, ErrorInvalidConfig)
	}

	if c.Camera.Source != SourceV4L2 && c.Camera.Source != SourcePattern {
		return fmt.Errorf("unknown camera source %q %w", c.Camera.Source, ErrorInvalidConfig)
	}

	if c.Capture.Interval <= 0 {
		return fmt.Errorf("capture.interval must be positive %w", ErrorInvalidConfig)
	}

	if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
		return fmt.Errorf("capture.quality out of range %w", ErrorInvalidConfig)
	}

	return nil
}
