// Package channel is the persistent Socket.IO connection to the pose
// backend. A single loop dials, runs one session at a time and reconnects
// on loss, trying each transport in preference order.
package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"yogavision/log"
	"yogavision/network"
	"yogavision/network/polling"
	"yogavision/network/session"
	"yogavision/network/ws"
	"yogavision/proto"

	"go.uber.org/zap"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

var ErrorNoDialer = errors.New("no transport dialer")

type Channel struct {
	mu    sync.Mutex
	opts  network.ClientOptions
	state State
	sess  *session.Session
	conn  network.Conn

	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(opts ...network.ClientOption) *Channel {
	c := &Channel{
		done: make(chan struct{}),
	}

	for _, o := range opts {
		o(&c.opts)
	}

	if c.opts.ReconnectInterval == 0 {
		c.opts.ReconnectInterval = network.DefualtReconnectInterval
	}

	if c.opts.HandshakeTimeout == 0 {
		c.opts.HandshakeTimeout = network.DefaultHandshakeTimeout
	}

	if c.opts.MaxWriteBufLen == 0 {
		c.opts.MaxWriteBufLen = network.DefaultWriteBufLen
	}

	if c.opts.MaxMsgLen == 0 {
		c.opts.MaxMsgLen = network.DefaultMaxMsgLen
	}

	if c.opts.Codec == nil {
		c.opts.Codec = proto.NewCodec()
	}

	if len(c.opts.Dialers) == 0 {
		c.opts.Dialers = []network.Dialer{
			ws.NewDialer(
				ws.OptionWithHandshakeTimeout(c.opts.HandshakeTimeout),
				ws.OptionWithMaxMsgLen(c.opts.MaxMsgLen),
				ws.OptionWithMaxWriteBufLen(c.opts.MaxWriteBufLen)),
			polling.NewDialer(
				polling.OptionWithHandshakeTimeout(c.opts.HandshakeTimeout),
				polling.OptionWithMaxMsgLen(c.opts.MaxMsgLen),
				polling.OptionWithMaxWriteBufLen(c.opts.MaxWriteBufLen)),
		}
	}

	return c
}

func (c *Channel) Options() network.ClientOptions {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.opts
}

// SetOption applies on the next dial; the live connection is kept.
func (c *Channel) SetOption(opts ...network.ClientOption) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range opts {
		o(&c.opts)
	}
}

func (c *Channel) String() string {
	dialers := c.Options().Dialers
	names := make([]string, 0, len(dialers))

	for _, d := range dialers {
		names = append(names, d.String())
	}

	return "socketio-channel[" + strings.Join(names, ",") + "]"
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Done is closed once the connection loop has exited.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Connect starts the connection loop. Later calls are no-ops.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started || c.closed {
		return
	}

	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)

	go c.run(ctx)
}

// Send emits msg on the live session. It fails with network.ErrorNotConnected
// unless the namespace join was acknowledged.
func (c *Channel) Send(msg interface{}) error {
	return c.WriteMessage(msg)
}

func (c *Channel) SendCommand(action string) error {
	return c.WriteMessage(&proto.AdjustPose{Action: action})
}

func (c *Channel) WriteMessage(msg interface{}) error {
	c.mu.Lock()
	sess, state := c.sess, c.state
	c.mu.Unlock()

	if state != Connected || sess == nil {
		return network.ErrorNotConnected
	}

	return sess.WriteMessage(msg)
}

// Close stops the loop, closes the live connection and waits for the loop
// to exit. It is safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	first := !c.closed
	c.closed = true
	started, cancel, conn := c.started, c.cancel, c.conn
	c.mu.Unlock()

	if first {
		if cancel != nil {
			cancel()
		}

		if conn != nil {
			_ = conn.Close()
		}
	}

	if started {
		<-c.done
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	defer c.setState(Disconnected)

	var failures uint32

	for ctx.Err() == nil {
		opts := c.Options()

		c.setState(Connecting)

		conn, err := c.dial(ctx, opts)
		if err == nil {
			if c.serve(conn, opts) {
				failures = 0
			} else {
				failures++
			}
		} else {
			c.setState(Disconnected)
			failures++

			log.Warn("ChannelDial", zap.String("addr", opts.Addr), zap.Uint32("failures", failures), zap.String("err", err.Error()))
		}

		if opts.MaxReconnectNum > 0 && failures >= opts.MaxReconnectNum {
			log.Error("ChannelGiveUp", zap.String("addr", opts.Addr), zap.Uint32("failures", failures))

			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(opts.ReconnectInterval):
		}
	}
}

func (c *Channel) dial(ctx context.Context, opts network.ClientOptions) (network.Conn, error) {
	if len(opts.Dialers) == 0 {
		return nil, ErrorNoDialer
	}

	var errs []string

	for _, d := range opts.Dialers {
		conn, err := d.Dial(ctx, opts.Addr)
		if err == nil {
			return conn, nil
		}

		log.Debug("ChannelTransport", zap.String("transport", d.String()), zap.String("err", err.Error()))
		errs = append(errs, d.String()+": "+err.Error())

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("all transports failed [%s]", strings.Join(errs, "; "))
}

// serve runs one session to completion and reports whether it ever joined.
func (c *Channel) serve(conn network.Conn, opts network.ClientOptions) bool {
	sess := session.NewSession(
		session.OptionWithConn(conn),
		session.OptionWithCodec(opts.Codec),
		session.OptionWithHandler(&hook{c: c, h: opts.Handler}),
		session.OptionWithAuth(opts.Auth))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()

		return false
	}

	c.conn = conn
	c.sess = sess
	c.mu.Unlock()

	err := sess.Run()

	c.mu.Lock()
	c.conn = nil
	c.sess = nil
	c.state = Disconnected
	c.mu.Unlock()

	_ = conn.Close()

	joined := sess.Connected()
	if joined {
		sess.OnClose()
	}

	log.Info("ChannelLost", zap.String("transport", conn.String()), zap.Bool("joined", joined), zap.String("err", err.Error()))

	return joined
}

// hook keeps the channel state in step with the session before the
// application handler sees the event.
type hook struct {
	c *Channel
	h network.Handler
}

func (k *hook) Handle(a network.Agent, m interface{}) {
	if k.h != nil {
		k.h.Handle(a, m)
	}
}

func (k *hook) OnConnect(a network.Agent) {
	k.c.setState(Connected)

	log.Info("ChannelConnected", zap.String("transport", a.Transport()))

	if k.h != nil {
		k.h.OnConnect(a)
	}
}

func (k *hook) OnClose(a network.Agent) {
	if k.h != nil {
		k.h.OnClose(a)
	}
}
