package ui

import (
	"encoding/json"
	"sync"
	"time"

	"yogavision/log"
	"yogavision/render"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	return c.conn.WriteMessage(messageType, payload)
}

// hub pushes the latest view to every browser. Views published faster than
// they can be written coalesce; only the newest is sent.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	latest  []byte

	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newHub() *hub {
	h := &hub{
		clients: make(map[*client]struct{}),
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go h.run()

	return h
}

func (h *hub) publish(v render.View) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn("ConsoleMarshal", zap.String("err", err.Error()))

		return
	}

	h.mu.Lock()
	h.latest = b
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			return
		case <-h.notify:
		}

		h.mu.Lock()
		payload := h.latest
		clients := make([]*client, 0, len(h.clients))

		for c := range h.clients {
			clients = append(clients, c)
		}
		h.mu.Unlock()

		for _, c := range clients {
			if err := c.write(websocket.TextMessage, payload); err != nil {
				h.remove(c)
			}
		}
	}
}

// add registers c and returns the view it should start from.
func (h *hub) add(c *client) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}

	return h.latest
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.conn.Close()
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func (h *hub) close() {
	h.once.Do(func() {
		close(h.stop)
		<-h.done

		h.mu.Lock()
		clients := h.clients
		h.clients = make(map[*client]struct{})
		h.mu.Unlock()

		for c := range clients {
			c.conn.Close()
		}
	})
}
