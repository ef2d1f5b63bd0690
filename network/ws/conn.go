package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var (
	ErrorConnClosed   = errors.New("websocket conn closed")
	ErrorWriteBufFull = errors.New("websocket write buffer full")
)

// Conn queues writes for a single writer goroutine; a full queue drops the
// message instead of blocking the caller.
type Conn struct {
	conn      *websocket.Conn
	wCh       chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newConn(c *websocket.Conn, msgBufferCount uint32) *Conn {
	if msgBufferCount == 0 {
		msgBufferCount = 1
	}

	conn := &Conn{
		conn:    c,
		wCh:     make(chan []byte, msgBufferCount),
		closeCh: make(chan struct{}),
	}

	go conn.writeLoop()

	return conn
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		case data := <-c.wCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()

				return
			}
		}
	}
}

func (c *Conn) ReadMessage() ([]byte, error) {
	_, b, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read message %w", err)
	}

	return b, nil
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Conn) WriteMessage(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrorConnClosed
	default:
	}

	select {
	case c.wCh <- data:
		return nil
	default:
		return ErrorWriteBufFull
	}
}

func (c *Conn) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.closeCh)

		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})

	return err
}

func (c *Conn) String() string {
	return "websocket"
}
