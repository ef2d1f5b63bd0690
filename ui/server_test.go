package ui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"yogavision/live"
	"yogavision/network"
	"yogavision/pose"
	plmxs "yogavision/prometheus"
	"yogavision/render"

	"github.com/gorilla/websocket"
)

type fakeSession struct {
	mu        sync.Mutex
	state     live.State
	connected bool
	actions   []string
}

func (f *fakeSession) Snapshot() live.State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

func (f *fakeSession) Adjust(action string) error {
	if _, err := pose.ParseAction(action); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.connected {
		return network.ErrorNotConnected
	}

	f.actions = append(f.actions, action)

	return nil
}

type fakeStore struct{}

func (fakeStore) Enable(_ context.Context, names []string) (int64, error) {
	return int64(len(names)), nil
}

func newTestServer(t *testing.T, sess *fakeSession, opts ...Option) *httptest.Server {
	t.Helper()

	s, err := NewServer(append([]Option{OptionWithSession(sess)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(s.Handler())

	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})

	return ts
}

func TestNewServerRequiresSession(t *testing.T) {
	if _, err := NewServer(); err != ErrorNoSession {
		t.Fatalf("err = %v", err)
	}
}

func TestViewAndHealth(t *testing.T) {
	sess := &fakeSession{state: live.State{ID: "s1", Connected: true, FPS: 12, Pose: pose.DefaultOffset}}
	ts := newTestServer(t, sess)

	resp, err := http.Get(ts.URL + "/api/view")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var v render.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}

	if v.Session != "s1" || v.FPS != 12 || v.Connection.Label != render.LabelUp {
		t.Fatalf("view %+v", v)
	}

	if v.Scale != "Scale: 1.00x" {
		t.Fatalf("scale %q", v.Scale)
	}

	h, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Body.Close()

	if b, _ := io.ReadAll(h.Body); h.StatusCode != http.StatusOK || string(b) != "ok" {
		t.Fatalf("healthz %d %q", h.StatusCode, b)
	}
}

func TestIndexIsServed(t *testing.T) {
	ts := newTestServer(t, &fakeSession{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), "Waiting for processed frames...") {
		t.Fatalf("index %d", resp.StatusCode)
	}
}

func postPose(t *testing.T, url, body string) int {
	t.Helper()

	resp, err := http.Post(url+"/api/pose", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	return resp.StatusCode
}

func TestPose(t *testing.T) {
	sess := &fakeSession{}
	ts := newTestServer(t, sess)

	if code := postPose(t, ts.URL, `{"action":"move_up"}`); code != http.StatusServiceUnavailable {
		t.Fatalf("disconnected = %d", code)
	}

	sess.mu.Lock()
	sess.connected = true
	sess.mu.Unlock()

	cases := []struct {
		body string
		code int
	}{
		{`{"action":"jump"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
		{`{"action":"scale_up"}`, http.StatusOK},
	}

	for _, c := range cases {
		if code := postPose(t, ts.URL, c.body); code != c.code {
			t.Fatalf("%s: %d, want %d", c.body, code, c.code)
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.actions) != 1 || sess.actions[0] != "scale_up" {
		t.Fatalf("actions %v", sess.actions)
	}

	resp, err := http.Get(ts.URL + "/api/pose")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/pose = %d", resp.StatusCode)
	}
}

func TestMetricsAndExercisesMounted(t *testing.T) {
	m := plmxs.NewPrometheusMonitor("console_test")
	ts := newTestServer(t, &fakeSession{}, OptionWithMonitor(m), OptionWithExercises(fakeStore{}))

	resp, err := http.Post(ts.URL+"/api/updateExercises", "application/json", strings.NewReader(`{"exercises":["tree","cobra"]}`))
	if err != nil {
		t.Fatal(err)
	}

	var body struct {
		Message      string `json:"message"`
		AffectedRows int64  `json:"affectedRows"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || body.AffectedRows != 2 {
		t.Fatalf("exercises %d %+v", resp.StatusCode, body)
	}

	mr, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Body.Close()

	b, _ := io.ReadAll(mr.Body)
	if !strings.Contains(string(b), "/api/updateExercises") {
		t.Fatal("request metric missing from /metrics")
	}
}

func TestExercisesNotMountedWithoutStore(t *testing.T) {
	ts := newTestServer(t, &fakeSession{})

	resp, err := http.Post(ts.URL+"/api/updateExercises", "application/json", strings.NewReader(`{"exercises":["tree"]}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		t.Fatal("exercises endpoint served without a store")
	}
}

func readView(t *testing.T, c *websocket.Conn) render.View {
	t.Helper()

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))

	var v render.View
	if err := c.ReadJSON(&v); err != nil {
		t.Fatal(err)
	}

	return v
}

func TestWebsocketPush(t *testing.T) {
	sess := &fakeSession{state: live.State{ID: "s1", Pose: pose.DefaultOffset}}

	s, err := NewServer(OptionWithSession(sess))
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Close()

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if v := readView(t, c); v.Connection.Label != render.LabelDown || v.Waiting != render.Placeholder {
		t.Fatalf("initial view %+v", v)
	}

	s.Push(live.State{ID: "s1", Connected: true, CameraReady: true, FPS: 30, Pose: pose.Offset{X: 0.1, Scale: 1.5}})

	v := readView(t, c)
	if v.Connection.Label != render.LabelUp || v.FPS != 30 || v.Position != "X: 0.100 | Y: 0.000" {
		t.Fatalf("pushed view %+v", v)
	}

	for _, ctl := range v.Controls {
		if !ctl.Enabled {
			t.Fatalf("control %s disabled while connected", ctl.Action)
		}
	}

	sess.mu.Lock()
	sess.connected = true
	sess.mu.Unlock()

	if err := c.WriteJSON(map[string]string{"action": "reset"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess.mu.Lock()
		n := len(sess.actions)
		sess.mu.Unlock()

		if n == 1 {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("websocket command not applied")
}

func TestStartAndClose(t *testing.T) {
	s, err := NewServer(OptionWithSession(&fakeSession{}), OptionWithAddr("127.0.0.1:0"))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	s.Close()
	s.Close()

	if _, err := http.Get("http://" + s.Addr() + "/healthz"); err == nil {
		t.Fatal("server still serving after Close")
	}
}
