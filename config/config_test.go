package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if c.Backend.ReconnectInterval != 2*time.Second || c.Capture.Interval != 33*time.Millisecond || c.Capture.Quality != 50 {
		t.Fatalf("defaults %+v", c)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "yogavision.yaml")

	err := os.WriteFile(path, []byte(`
log_level: debug
backend:
  addr: http://yogavision.abrandt.xyz:5000
  reconnect_interval: 500ms
camera:
  source: pattern
database:
  addr: localhost:3306
  user: sql
exercises:
  enable: [Tree Pose]
`), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if c.LogLevel != "debug" || c.Backend.Addr != "http://yogavision.abrandt.xyz:5000" || c.Backend.ReconnectInterval != 500*time.Millisecond {
		t.Fatalf("backend %+v", c.Backend)
	}

	if c.Backend.HandshakeTimeout != 5*time.Second || len(c.Backend.Transports) != 2 {
		t.Fatalf("defaults lost %+v", c.Backend)
	}

	if c.Camera.Source != SourcePattern || c.Camera.Device != "/dev/video0" || c.Database.User != "sql" || c.Exercises.Enable[0] != "Tree Pose" {
		t.Fatalf("config %+v", c)
	}
}

func TestInvalidConfig(t *testing.T) {
	for _, doc := range []string{
		"backend:\n  transports: [carrier-pigeon]\n",
		"camera:\n  source: kinect\n",
		"capture:\n  quality: 0\n",
		"registry:\n  kind: etcd\n",
		"telemetry:\n  kind: nats\n",
		"unknown_key: 1\n",
	} {
		c := Default()

		err := c.Decode(strings.NewReader(doc))
		if err == nil {
			err = c.Validate()
		}

		if !errors.Is(err, ErrorInvalidConfig) {
			t.Fatalf("%q: expected ErrorInvalidConfig, got %v", doc, err)
		}
	}
}
