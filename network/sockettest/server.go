// Package sockettest provides a minimal in-process Socket.IO backend for
// tests, in the spirit of net/http/httptest. It accepts the websocket and
// polling transports, acknowledges the default namespace, records inbound
// events and lets the test emit events or drop every live connection.
package sockettest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"
)

const openFmt = `0{"sid":"%s","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`

type Event struct {
	Name string
	Data json.RawMessage
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

type Option func(*Server)

// WithoutWebsocket refuses websocket upgrades so clients must fall back to polling.
func WithoutWebsocket() Option {
	return func(s *Server) {
		s.noWebsocket = true
	}
}

// WithPollWait bounds how long a poll GET is held open when nothing is queued.
func WithPollWait(d time.Duration) Option {
	return func(s *Server) {
		s.pollWait = d
	}
}

type Server struct {
	*httptest.Server

	noWebsocket bool
	pollWait    time.Duration
	upgrader    websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*peer
	dials int

	events    chan Event
	connected chan string
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		pollWait:  500 * time.Millisecond,
		peers:     make(map[string]*peer),
		events:    make(chan Event, 256),
		connected: make(chan string, 16),
	}

	for _, o := range opts {
		o(s)
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))

	return s
}

// Events delivers every inbound event in arrival order.
func (s *Server) Events() <-chan Event {
	return s.events
}

// Connected delivers the transport name of each namespace join.
func (s *Server) Connected() <-chan string {
	return s.connected
}

// Dials counts Engine.IO handshakes, including refused websocket attempts.
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dials
}

// Emit sends an event to every joined client.
func (s *Server) Emit(name string, v interface{}) error {
	payload, err := json.Marshal([]interface{}{name, v})
	if err != nil {
		return err
	}

	s.Broadcast("42" + string(payload))

	return nil
}

// Broadcast sends a raw Engine.IO packet to every joined client.
func (s *Server) Broadcast(packet string) {
	for _, p := range s.live() {
		p.send(packet)
	}
}

// DropAll closes every live connection from the server side.
func (s *Server) DropAll() {
	for _, p := range s.live() {
		p.close()
	}
}

func (s *Server) Close() {
	s.DropAll()
	s.Server.Close()
}

func (s *Server) live() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		if p.isJoined() {
			out = append(out, p)
		}
	}

	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/socket.io/" || r.URL.Query().Get("EIO") != "4" {
		http.NotFound(w, r)

		return
	}

	switch r.URL.Query().Get("transport") {
	case "websocket":
		s.serveWebsocket(w, r)
	case "polling":
		s.servePolling(w, r)
	default:
		http.Error(w, "unknown transport", http.StatusBadRequest)
	}
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.dials++
	s.mu.Unlock()

	if s.noWebsocket {
		http.Error(w, "transport unknown", http.StatusBadRequest)

		return
	}

	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p := s.newPeer("websocket")
	p.ws = c
	defer s.remove(p)

	p.send(fmt.Sprintf(openFmt, p.sid))

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			p.close()

			return
		}

		if !s.handle(p, string(data)) {
			p.close()

			return
		}
	}
}

func (s *Server) servePolling(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "bad handshake", http.StatusBadRequest)

			return
		}

		s.mu.Lock()
		s.dials++
		s.mu.Unlock()

		p := s.newPeer("polling")
		p.queue = make(chan string, 256)
		_, _ = io.WriteString(w, fmt.Sprintf(openFmt, p.sid))

		return
	}

	s.mu.Lock()
	p, ok := s.peers[sid]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "unknown sid", http.StatusBadRequest)

		return
	}

	switch r.Method {
	case http.MethodGet:
		s.poll(w, p)
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)

		for _, packet := range bytes.Split(body, []byte{0x1e}) {
			if !s.handle(p, string(packet)) {
				p.close()
				s.remove(p)

				break
			}
		}

		_, _ = io.WriteString(w, "ok")
	default:
		http.Error(w, "method", http.StatusMethodNotAllowed)
	}
}

func (s *Server) poll(w http.ResponseWriter, p *peer) {
	var packets []string

	select {
	case pk := <-p.queue:
		packets = append(packets, pk)
	case <-p.done:
		http.Error(w, "closed", http.StatusBadRequest)

		return
	case <-time.After(s.pollWait):
		packets = append(packets, "6")
	}

Drain:
	for {
		select {
		case pk := <-p.queue:
			packets = append(packets, pk)
		default:
			break Drain
		}
	}

	_, _ = io.WriteString(w, strings.Join(packets, "\x1e"))

	for _, pk := range packets {
		if pk == "1" {
			s.remove(p)
		}
	}
}

// handle processes one client packet and reports whether the connection stays up.
func (s *Server) handle(p *peer, packet string) bool {
	switch {
	case packet == "40" || strings.HasPrefix(packet, "40{"):
		p.send(fmt.Sprintf(`40{"sid":"%s"}`, uuid.NewString()))
		p.join()

		select {
		case s.connected <- p.transport:
		default:
		}
	case strings.HasPrefix(packet, "42"):
		var parts []json.RawMessage
		if err := json.Unmarshal([]byte(packet[2:]), &parts); err != nil || len(parts) == 0 {
			return true
		}

		var name string
		if err := json.Unmarshal(parts[0], &name); err != nil {
			return true
		}

		e := Event{Name: name}
		if len(parts) > 1 {
			e.Data = parts[1]
		}

		select {
		case s.events <- e:
		default:
		}
	case packet == "1" || packet == "41":
		return false
	}

	return true
}

func (s *Server) newPeer(transport string) *peer {
	p := &peer{
		sid:       uuid.NewString(),
		transport: transport,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.peers[p.sid] = p
	s.mu.Unlock()

	return p
}

func (s *Server) remove(p *peer) {
	s.mu.Lock()
	delete(s.peers, p.sid)
	s.mu.Unlock()
}

type peer struct {
	sid       string
	transport string

	mu     sync.Mutex
	ws     *websocket.Conn
	queue  chan string
	joined bool
	closed bool
	done   chan struct{}
}

func (p *peer) join() {
	p.mu.Lock()
	p.joined = true
	p.mu.Unlock()
}

func (p *peer) isJoined() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.joined && !p.closed
}

func (p *peer) send(packet string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	if p.ws != nil {
		_ = p.ws.WriteMessage(websocket.TextMessage, []byte(packet))

		return
	}

	select {
	case p.queue <- packet:
	default:
	}
}

func (p *peer) close() {
	p.send("1")

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true

	if p.ws != nil {
		_ = p.ws.Close()

		return
	}

	close(p.done)
}
