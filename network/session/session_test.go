package session

import (
	"errors"
	"io"
	"sync"
	"testing"

	"yogavision/network"
	"yogavision/network/codec/socketio"
)

type status struct {
	Message string `json:"message"`
}

type scriptConn struct {
	mu     sync.Mutex
	in     []string
	writes []string
}

func (c *scriptConn) ReadMessage() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.in) == 0 {
		return nil, io.EOF
	}

	m := c.in[0]
	c.in = c.in[1:]

	return []byte(m), nil
}

func (c *scriptConn) WriteMessage(b []byte) error {
	c.mu.Lock()
	c.writes = append(c.writes, string(b))
	c.mu.Unlock()

	return nil
}

func (c *scriptConn) Close() error   { return nil }
func (c *scriptConn) String() string { return "script" }

type recorder struct {
	connects int
	closes   int
	msgs     []interface{}
}

func (r *recorder) Handle(_ network.Agent, m interface{}) { r.msgs = append(r.msgs, m) }
func (r *recorder) OnConnect(network.Agent)               { r.connects++ }
func (r *recorder) OnClose(network.Agent)                 { r.closes++ }

func newCodec(t *testing.T) *socketio.Processor {
	t.Helper()

	p := socketio.NewCodec()
	if err := p.Register("status", (*status)(nil)); err != nil {
		t.Fatal(err)
	}

	return p
}

func TestSessionHandshakeAndDispatch(t *testing.T) {
	conn := &scriptConn{in: []string{
		`0{"sid":"s1","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`,
		`40{"sid":"n1"}`,
		`42["status",{"message":"Connected to processing server"}]`,
		`42["unknown",{}]`,
		`2`,
	}}
	rec := &recorder{}

	s := NewSession(
		OptionWithConn(conn),
		OptionWithCodec(newCodec(t)),
		OptionWithHandler(rec))

	err := s.Run()
	if err == nil || !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF from Run, got %v", err)
	}

	if !s.Connected() || rec.connects != 1 {
		t.Fatalf("expected one connect, got %d", rec.connects)
	}

	if len(rec.msgs) != 1 {
		t.Fatalf("expected one dispatched event, got %d", len(rec.msgs))
	}

	if m, ok := rec.msgs[0].(*status); !ok || m.Message != "Connected to processing server" {
		t.Fatalf("unexpected event %#v", rec.msgs[0])
	}

	if len(conn.writes) != 2 || conn.writes[0] != "40" || conn.writes[1] != "3" {
		t.Fatalf("unexpected writes %q", conn.writes)
	}
}

func TestSessionStopsOnServerDisconnect(t *testing.T) {
	conn := &scriptConn{in: []string{`0{"sid":"s1"}`, `40`, `41`, `42["status",{}]`}}
	rec := &recorder{}

	s := NewSession(
		OptionWithConn(conn),
		OptionWithCodec(newCodec(t)),
		OptionWithHandler(rec))

	if err := s.Run(); !errors.Is(err, ErrorClosedByPeer) {
		t.Fatalf("expected ErrorClosedByPeer, got %v", err)
	}

	if len(rec.msgs) != 0 {
		t.Fatalf("events after disconnect must not be dispatched")
	}

	s.OnClose()

	if rec.closes != 1 {
		t.Fatalf("expected one close, got %d", rec.closes)
	}
}

func TestSessionConnectError(t *testing.T) {
	conn := &scriptConn{in: []string{`0{"sid":"s1"}`, `44{"message":"nope"}`}}
	rec := &recorder{}

	s := NewSession(
		OptionWithConn(conn),
		OptionWithCodec(newCodec(t)),
		OptionWithHandler(rec))

	if err := s.Run(); !errors.Is(err, ErrorClosedByPeer) {
		t.Fatalf("expected ErrorClosedByPeer, got %v", err)
	}

	if s.Connected() || rec.connects != 0 {
		t.Fatalf("rejected namespace must not count as connected")
	}
}

func TestSessionSendsAuthOnJoin(t *testing.T) {
	conn := &scriptConn{in: []string{`0{"sid":"s1"}`}}

	s := NewSession(
		OptionWithConn(conn),
		OptionWithCodec(newCodec(t)),
		OptionWithHandler(&recorder{}),
		OptionWithAuth(map[string]string{"token": "t1"}))

	_ = s.Run()

	if len(conn.writes) != 1 || conn.writes[0] != `40{"token":"t1"}` {
		t.Fatalf("unexpected writes %q", conn.writes)
	}
}
