package plmxs

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMonitorExposesSessionMetrics(t *testing.T) {
	m := NewPrometheusMonitor("yogavision")
	defer m.Close()

	m.Frame(ResultSent)
	m.Frame(ResultDropped)
	m.Processed(12)
	m.Command("move_up", ResultSent)
	m.Event("status")
	m.Connected(true)
	m.Encoded(3 * time.Millisecond)
	m.Request("/api/view", "GET", 200, time.Millisecond)
	m.refreshRequestsGauge()
	m.getSys()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`yogavision_frames_total{micro_name="yogavision",result="sent"} 1`,
		`yogavision_processed_fps{micro_name="yogavision"} 12`,
		`yogavision_pose_commands_total{action="move_up",micro_name="yogavision",result="sent"} 1`,
		`yogavision_connected{micro_name="yogavision"} 1`,
		`yogavision_http_requests_gauge{handler="/api/view",micro_name="yogavision"} 1`,
		`memory_use_gauge{micro_name="yogavision"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in\n%s", want, body)
		}
	}
}

func TestNilMonitorIsNoop(t *testing.T) {
	var m *PrometheusMonitor

	m.Frame(ResultSent)
	m.Processed(1)
	m.Command("reset", ResultDiscarded)
	m.Event("error")
	m.Connected(false)
	m.Encoded(time.Millisecond)
	m.Request("/", "GET", 200, 0)
	m.StartSystem()
	m.Close()
}
