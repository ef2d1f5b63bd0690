// Package polling is the Engine.IO long-polling fallback transport. A poll
// GET returns every packet the server has queued, separated by 0x1e; writes
// are batched into POSTs by a single writer goroutine.
package polling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"yogavision/network"
)

const (
	recordSeparator byte = 0x1e
	maxBatch             = 16
)

var (
	ErrorConnClosed   = errors.New("polling conn closed")
	ErrorWriteBufFull = errors.New("polling write buffer full")
	ErrorHandshake    = errors.New("polling handshake failed")
	ErrorBodyTooLarge = errors.New("poll body exceeds max message length")
)

type Options struct {
	HandshakeTimeout time.Duration
	MaxMsgLen        uint32
	MaxWriteBufLen   uint32
	Client           *http.Client
}

type Option func(*Options)

func OptionWithHandshakeTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.HandshakeTimeout = t
	}
}

func OptionWithMaxMsgLen(n uint32) Option {
	return func(o *Options) {
		o.MaxMsgLen = n
	}
}

func OptionWithMaxWriteBufLen(n uint32) Option {
	return func(o *Options) {
		o.MaxWriteBufLen = n
	}
}

func OptionWithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.Client = c
	}
}

type dialer struct {
	opts Options
}

func NewDialer(opts ...Option) network.Dialer {
	d := &dialer{opts: Options{
		HandshakeTimeout: network.DefaultHandshakeTimeout,
		MaxMsgLen:        network.DefaultMaxMsgLen,
		MaxWriteBufLen:   network.DefaultWriteBufLen,
		Client:           &http.Client{},
	}}

	for _, o := range opts {
		o(&d.opts)
	}

	return d
}

func (d *dialer) String() string {
	return network.TransportPolling
}

func (d *dialer) Dial(ctx context.Context, addr string) (network.Conn, error) {
	u, err := network.EngineURL(addr, network.TransportPolling)
	if err != nil {
		return nil, err
	}

	hctx, cancel := context.WithTimeout(ctx, d.opts.HandshakeTimeout)
	defer cancel()

	body, err := get(hctx, d.opts.Client, u, d.opts.MaxMsgLen)
	if err != nil {
		return nil, fmt.Errorf("%v %w", err, ErrorHandshake)
	}

	packets := split(body)
	if len(packets) == 0 || len(packets[0]) == 0 || packets[0][0] != '0' {
		return nil, fmt.Errorf("missing open packet %w", ErrorHandshake)
	}

	var open struct {
		SID string `json:"sid"`
	}

	if err := json.Unmarshal(packets[0][1:], &open); err != nil || open.SID == "" {
		return nil, fmt.Errorf("missing sid %w", ErrorHandshake)
	}

	q := u.Query()
	q.Set("sid", open.SID)
	u.RawQuery = q.Encode()

	// the open packet is replayed to the session like any other packet
	return newConn(ctx, d.opts, u, packets), nil
}

type Conn struct {
	opts Options
	url  *url.URL

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pending  [][]byte
	deadline time.Time

	wCh       chan []byte
	closeOnce sync.Once
}

func newConn(ctx context.Context, opts Options, u *url.URL, pending [][]byte) *Conn {
	if opts.MaxWriteBufLen == 0 {
		opts.MaxWriteBufLen = 1
	}

	cctx, cancel := context.WithCancel(ctx)

	c := &Conn{
		opts:    opts,
		url:     u,
		ctx:     cctx,
		cancel:  cancel,
		pending: pending,
		wCh:     make(chan []byte, opts.MaxWriteBufLen),
	}

	go c.writeLoop()

	return c
}

func (c *Conn) ReadMessage() ([]byte, error) {
	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			p := c.pending[0]
			c.pending = c.pending[1:]
			c.mu.Unlock()

			return p, nil
		}
		deadline := c.deadline
		c.mu.Unlock()

		if c.ctx.Err() != nil {
			return nil, ErrorConnClosed
		}

		body, err := c.poll(deadline)
		if err != nil {
			c.cancel()

			return nil, fmt.Errorf("failed to poll %w", err)
		}

		c.mu.Lock()
		c.pending = append(c.pending, split(body)...)
		c.mu.Unlock()
	}
}

// SetReadDeadline bounds the long-poll GETs issued by later reads. A zero
// time removes the bound.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()

	return nil
}

func (c *Conn) poll(deadline time.Time) ([]byte, error) {
	if deadline.IsZero() {
		return get(c.ctx, c.opts.Client, c.url, c.opts.MaxMsgLen)
	}

	ctx, cancel := context.WithDeadline(c.ctx, deadline)
	defer cancel()

	return get(ctx, c.opts.Client, c.url, c.opts.MaxMsgLen)
}

func (c *Conn) WriteMessage(data []byte) error {
	if c.ctx.Err() != nil {
		return ErrorConnClosed
	}

	select {
	case c.wCh <- data:
		return nil
	default:
		return ErrorWriteBufFull
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.wCh:
			batch := [][]byte{data}

		Drain:
			for len(batch) < maxBatch {
				select {
				case d := <-c.wCh:
					batch = append(batch, d)
				default:
					break Drain
				}
			}

			if err := post(c.ctx, c.opts.Client, c.url, bytes.Join(batch, []byte{recordSeparator})); err != nil {
				c.cancel()

				return
			}
		}
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.ctx.Err() == nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = post(ctx, c.opts.Client, c.url, []byte{'1'})
			cancel()
		}

		c.cancel()
	})

	return nil
}

func (c *Conn) String() string {
	return "polling"
}

func get(ctx context.Context, client *http.Client, u *url.URL, maxLen uint32) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected poll status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxLen)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read poll %w", err)
	}

	if len(body) > int(maxLen) {
		return nil, fmt.Errorf("more than %d bytes %w", maxLen, ErrorBodyTooLarge)
	}

	return body, nil
}

func post(ctx context.Context, client *http.Client, u *url.URL, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build post %w", err)
	}

	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected post status %d", resp.StatusCode)
	}

	return nil
}

func split(body []byte) [][]byte {
	var packets [][]byte

	for _, p := range bytes.Split(body, []byte{recordSeparator}) {
		if len(p) > 0 {
			packets = append(packets, p)
		}
	}

	return packets
}
