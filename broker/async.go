package broker

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"yogavision/log"

	"go.uber.org/zap"
)

var (
	ErrorPublisherFull   = errors.New("publisher buffer full")
	ErrorPublisherClosed = errors.New("publisher closed")
)

// Telemetry is one published session event.
type Telemetry struct {
	Session string      `json:"session"`
	Kind    string      `json:"kind"`
	At      time.Time   `json:"at"`
	Data    interface{} `json:"data,omitempty"`
}

// Publisher hands telemetry to a Broker from its own goroutine so the
// session loop never waits on the bus.
type Publisher struct {
	b     Broker
	topic string

	mu     sync.RWMutex
	closed bool
	ch     chan *Message
	done   chan struct{}
	now    func() time.Time
}

func NewPublisher(b Broker, topic string, bufLen int) *Publisher {
	if bufLen <= 0 {
		bufLen = 64
	}

	p := &Publisher{
		b:     b,
		topic: topic,
		ch:    make(chan *Message, bufLen),
		done:  make(chan struct{}),
		now:   time.Now,
	}

	go p.loop()

	return p
}

func (p *Publisher) loop() {
	defer close(p.done)

	for m := range p.ch {
		if err := p.b.Publish(p.topic, m); err != nil {
			log.Warn("TelemetryPublish", zap.String("broker", p.b.String()), zap.String("topic", p.topic), zap.String("err", err.Error()))
		}
	}
}

// Publish drops the event when the buffer is full. It is safe on a nil Publisher.
func (p *Publisher) Publish(session, kind string, data interface{}) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(&Telemetry{Session: session, Kind: kind, At: p.now().UTC(), Data: data})
	if err != nil {
		return err
	}

	m := &Message{
		Header: map[string]string{HeaderKind: kind, HeaderSession: session},
		Body:   body,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrorPublisherClosed
	}

	select {
	case p.ch <- m:
		return nil
	default:
		return ErrorPublisherFull
	}
}

// Close flushes what is buffered and disconnects the broker.
func (p *Publisher) Close() {
	if p == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return
	}

	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	<-p.done

	if err := p.b.Disconnect(); err != nil {
		log.Warn("TelemetryDisconnect", zap.String("broker", p.b.String()), zap.String("err", err.Error()))
	}
}
