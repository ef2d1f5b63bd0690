package config

import (
	"time"
)

type Backend struct {
	Addr              string        `yaml:"addr"`
	Transports        []string      `yaml:"transports"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	MaxReconnect      uint32        `yaml:"max_reconnect"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteBuffer       uint32        `yaml:"write_buffer"`
	// Auth is sent with the Socket.IO namespace join.
	Auth map[string]string `yaml:"auth"`
}

// Registry resolves the backend address by service name when Kind is set.
type Registry struct {
	Kind     string        `yaml:"kind"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	Domain   string        `yaml:"domain"`
	Service  string        `yaml:"service"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Camera struct {
	Source string `yaml:"source"`
	Device string `yaml:"device"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Facing string `yaml:"facing"`
}

type Capture struct {
	Interval time.Duration `yaml:"interval"`
	Quality  int           `yaml:"quality"`
}

type Console struct {
	Listen string `yaml:"listen"`
}

type Telemetry struct {
	Kind     string `yaml:"kind"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	Exchange string `yaml:"exchange"`
	Buffer   int    `yaml:"buffer"`
}

type Exercises struct {
	Remote string   `yaml:"remote"`
	Enable []string `yaml:"enable"`
}
