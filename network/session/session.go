package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"yogavision/log"
	"yogavision/network/codec/socketio"

	"go.uber.org/zap"
)

var ErrorClosedByPeer = errors.New("closed by peer")

type deadliner interface {
	SetReadDeadline(time.Time) error
}

// Session drives one connection: it answers the Engine.IO handshake and
// heartbeats itself and hands every application event to the Handler.
type Session struct {
	opts Options

	mu        sync.Mutex
	data      map[string]interface{}
	connected bool
	heartbeat time.Duration
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		data: make(map[string]interface{}),
	}

	for _, o := range opts {
		o(&s.opts)
	}

	return s
}

// Run reads until the connection fails or the peer closes it. The returned
// error is never nil.
func (s *Session) Run() error {
	for {
		s.armDeadline()

		data, err := s.opts.Conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read message %w", err)
		}

		msg, err := s.opts.Codec.Unmarshal(data)
		if err != nil {
			log.Warn("SessionDecode", zap.String("transport", s.opts.Conn.String()), zap.String("err", err.Error()))

			continue
		}

		switch m := msg.(type) {
		case *socketio.Open:
			s.setHeartbeat(m)

			if err := s.WriteMessage(&socketio.Connect{Auth: s.opts.Auth}); err != nil {
				return err
			}
		case *socketio.Ping:
			if err := s.WriteMessage(&socketio.Pong{Data: m.Data}); err != nil {
				return err
			}
		case *socketio.Connect:
			s.mu.Lock()
			s.connected = true
			s.mu.Unlock()

			s.opts.Handler.OnConnect(s)
		case *socketio.ConnectError:
			return fmt.Errorf("namespace rejected %v: %w", m.Message, ErrorClosedByPeer)
		case *socketio.Close, *socketio.Disconnect:
			return ErrorClosedByPeer
		case *socketio.Pong, *socketio.Noop, *socketio.Ack:
		default:
			s.opts.Handler.Handle(s, msg)
		}
	}
}

func (s *Session) setHeartbeat(o *socketio.Open) {
	if o.PingInterval <= 0 {
		return
	}

	s.mu.Lock()
	s.heartbeat = time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
	s.mu.Unlock()
}

func (s *Session) armDeadline() {
	d, ok := s.opts.Conn.(deadliner)
	if !ok {
		return
	}

	s.mu.Lock()
	hb := s.heartbeat
	s.mu.Unlock()

	if hb == 0 {
		return
	}

	_ = d.SetReadDeadline(time.Now().Add(hb))
}

// Connected reports whether the server acknowledged the namespace join.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connected
}

func (s *Session) OnClose() {
	s.opts.Handler.OnClose(s)
}

func (s *Session) WriteMessage(msg interface{}) error {
	data, err := s.opts.Codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %w", err)
	}

	if err = s.opts.Conn.WriteMessage(data); err != nil {
		return fmt.Errorf("failed to write %w", err)
	}

	return nil
}

func (s *Session) GetData(key string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.data[key]; ok {
		return v
	}

	return nil
}

func (s *Session) SetData(key string, v interface{}) {
	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
}

func (s *Session) Transport() string {
	return s.opts.Conn.String()
}
