package yogavision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"yogavision/config"
	"yogavision/network/sockettest"
	"yogavision/proto"
	"yogavision/render"
)

func testConfig(backend string) *config.Config {
	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.Backend.Addr = backend
	cfg.Backend.ReconnectInterval = 20 * time.Millisecond
	cfg.Camera.Source = config.SourcePattern
	cfg.Capture.Interval = 10 * time.Millisecond
	cfg.Console.Listen = "127.0.0.1:0"

	return cfg
}

func waitEvent(t *testing.T, srv *sockettest.Server, name string) sockettest.Event {
	t.Helper()

	deadline := time.After(5 * time.Second)

	for {
		select {
		case e := <-srv.Events():
			if e.Name == name {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event", name)
		}
	}
}

func view(t *testing.T, base string) render.View {
	t.Helper()

	resp, err := http.Get(base + "/api/view")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var v render.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}

	return v
}

func TestAppStreamsAndCalibrates(t *testing.T) {
	srv := sockettest.NewServer()
	defer srv.Close()

	a := NewApp(testConfig(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)

	go func() { errc <- a.Run(ctx) }()

	select {
	case <-a.Ready():
	case err := <-errc:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("app not ready")
	}

	base := "http://" + a.ConsoleAddr()

	var f proto.Frame
	if err := waitEvent(t, srv, proto.EventFrame).Decode(&f); err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(f.Image, "data:image/jpeg;base64,") {
		t.Fatalf("frame image %.32q", f.Image)
	}

	resp, err := http.Post(base+"/api/pose", "application/json", strings.NewReader(`{"action":"scale_up"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pose status %d", resp.StatusCode)
	}

	var cmd proto.AdjustPose
	if err := waitEvent(t, srv, proto.EventAdjustPose).Decode(&cmd); err != nil {
		t.Fatal(err)
	}

	if cmd.Action != "scale_up" {
		t.Fatalf("action %q", cmd.Action)
	}

	if err := srv.Emit(proto.EventPoseAdjusted, map[string]float64{"offset_x": 0, "offset_y": 0, "scale": 1.1}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for view(t, base).Scale != "Scale: 1.10x" {
		if time.Now().After(deadline) {
			t.Fatal("pose echo not rendered")
		}

		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if err := a.Adjust("move_up"); err == nil {
		t.Fatal("adjust accepted after shutdown")
	}
}

func TestAppNeedsBackend(t *testing.T) {
	cfg := testConfig("")

	if err := NewApp(cfg).Run(context.Background()); !errors.Is(err, ErrorNoBackend) {
		t.Fatalf("err = %v", err)
	}
}

func TestFromConfigKinds(t *testing.T) {
	cfg := testConfig("http://localhost:5000")
	cfg.Registry.Kind = "redis"
	cfg.Registry.Addr = "127.0.0.1:6379"
	cfg.Telemetry.Kind = "kafka"
	cfg.Telemetry.Addr = "127.0.0.1:9092"

	if _, err := FromConfig(cfg); err != nil {
		t.Fatal(err)
	}

	if _, err := NewRegistry(config.Registry{Kind: "etcd"}); !errors.Is(err, ErrorUnknownKind) {
		t.Fatalf("registry err = %v", err)
	}

	if _, err := NewBroker("x", config.Telemetry{Kind: "nats"}); !errors.Is(err, ErrorUnknownKind) {
		t.Fatalf("broker err = %v", err)
	}

	for _, kind := range []string{"", "redis", "kafka", "rabbit"} {
		b, err := NewBroker("x", config.Telemetry{Kind: kind})
		if err != nil || (kind == "") != (b == nil) {
			t.Fatalf("%q: %v %v", kind, b, err)
		}
	}
}
