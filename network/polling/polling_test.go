package polling

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"yogavision/network/sockettest"
)

func TestPollingHandshakeAndEvents(t *testing.T) {
	srv := sockettest.NewServer(sockettest.WithPollWait(100 * time.Millisecond))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := NewDialer().Dial(ctx, srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	b, err := conn.ReadMessage()
	if err != nil || b[0] != '0' {
		t.Fatalf("expected open packet, got %q %v", b, err)
	}

	if err := conn.WriteMessage([]byte("40")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case tr := <-srv.Connected():
		if tr != "polling" {
			t.Fatalf("joined over %s", tr)
		}
	case <-ctx.Done():
		t.Fatal("namespace join never reached the server")
	}

	if err := srv.Emit("status", map[string]string{"message": "ready"}); err != nil {
		t.Fatal(err)
	}

	var sawAck, sawStatus bool

	for !(sawAck && sawStatus) {
		b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}

		s := string(b)
		switch {
		case strings.HasPrefix(s, "40"):
			sawAck = true
		case strings.HasPrefix(s, `42["status"`):
			sawStatus = true
		}
	}
}

func TestPollingWritesReachServer(t *testing.T) {
	srv := sockettest.NewServer()
	defer srv.Close()

	conn, err := NewDialer().Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.WriteMessage([]byte(`42["frame",{"image":"data:image/jpeg;base64,AA=="}]`))

	select {
	case e := <-srv.Events():
		if e.Name != "frame" {
			t.Fatalf("unexpected event %s", e.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDialFailsWithoutBackend(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := NewDialer().Dial(ctx, "http://127.0.0.1:1"); err == nil {
		t.Fatal("expected handshake error")
	}
}

func TestSplitSkipsEmptyPackets(t *testing.T) {
	got := split([]byte("2\x1e\x1e42[\"a\"]"))
	if len(got) != 2 || string(got[0]) != "2" || string(got[1]) != `42["a"]` {
		t.Fatalf("unexpected split %q", got)
	}
}

// stalled hands out a session and then answers every poll with body, or
// hangs until the client gives up when body is empty.
func stalled(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = io.Copy(io.Discard, r.Body)
			_, _ = io.WriteString(w, "ok")

			return
		}

		if r.URL.Query().Get("sid") == "" {
			_, _ = io.WriteString(w, `0{"sid":"s1","upgrades":[],"pingInterval":50,"pingTimeout":50}`)

			return
		}

		if body == "" {
			<-r.Context().Done()

			return
		}

		_, _ = io.WriteString(w, body)
	}))
}

func TestReadDeadlineEndsSilentPoll(t *testing.T) {
	srv := stalled("")
	defer srv.Close()

	conn, err := NewDialer().Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("open packet: %v", err)
	}

	d, ok := conn.(interface{ SetReadDeadline(time.Time) error })
	if !ok {
		t.Fatal("polling conn has no read deadline")
	}

	_ = d.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

	done := make(chan error, 1)
	go func() {
		_, err := conn.ReadMessage()
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read outlived its deadline")
	}
}

func TestOversizePollIsAnError(t *testing.T) {
	srv := stalled("4" + strings.Repeat("x", 64))
	defer srv.Close()

	conn, err := NewDialer(OptionWithMaxMsgLen(32)).Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("open packet: %v", err)
	}

	if _, err := conn.ReadMessage(); !errors.Is(err, ErrorBodyTooLarge) {
		t.Fatalf("expected ErrorBodyTooLarge, got %v", err)
	}
}
