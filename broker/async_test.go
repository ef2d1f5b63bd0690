package broker

import (
	"encoding/json"
	"sync"
	"testing"
)

type memBroker struct {
	mu           sync.Mutex
	topics       []string
	msgs         []*Message
	disconnected bool
	block        chan struct{}
}

func (b *memBroker) Connect() error { return nil }

func (b *memBroker) Disconnect() error {
	b.mu.Lock()
	b.disconnected = true
	b.mu.Unlock()

	return nil
}

func (b *memBroker) Publish(topic string, m *Message) error {
	if b.block != nil {
		<-b.block
	}

	b.mu.Lock()
	b.topics = append(b.topics, topic)
	b.msgs = append(b.msgs, m)
	b.mu.Unlock()

	return nil
}

func (b *memBroker) Options() Options { return Options{} }

func (b *memBroker) String() string { return "mem" }

func TestPublisherDeliversInOrder(t *testing.T) {
	b := &memBroker{}
	p := NewPublisher(b, "yogavision.telemetry", 8)

	_ = p.Publish("s1", "connected", nil)
	_ = p.Publish("s1", "pose_adjusted", map[string]float64{"scale": 1.1})
	p.Close()
	p.Close()

	if len(b.msgs) != 2 || !b.disconnected {
		t.Fatalf("published %d, disconnected %v", len(b.msgs), b.disconnected)
	}

	var tm Telemetry
	if err := json.Unmarshal(b.msgs[1].Body, &tm); err != nil {
		t.Fatal(err)
	}

	if tm.Session != "s1" || tm.Kind != "pose_adjusted" || b.msgs[1].Header["kind"] != "pose_adjusted" || b.topics[0] != "yogavision.telemetry" {
		t.Fatalf("unexpected telemetry %+v %v", tm, b.msgs[1].Header)
	}

	if err := p.Publish("s1", "late", nil); err != ErrorPublisherClosed {
		t.Fatalf("publish after close: %v", err)
	}
}

func TestPublisherDropsWhenFull(t *testing.T) {
	b := &memBroker{block: make(chan struct{})}
	p := NewPublisher(b, "t", 1)

	var dropped int

	for i := 0; i < 10; i++ {
		if err := p.Publish("s", "tick", i); err == ErrorPublisherFull {
			dropped++
		}
	}

	close(b.block)
	p.Close()

	if dropped == 0 {
		t.Fatal("expected drops while the broker is stalled")
	}

	var nilPublisher *Publisher
	if err := nilPublisher.Publish("s", "k", nil); err != nil {
		t.Fatal(err)
	}
}

func TestMessageSession(t *testing.T) {
	var nilMsg *Message
	if nilMsg.Session() != "" {
		t.Fatal("nil message has a session")
	}

	m := &Message{Header: map[string]string{HeaderSession: "s1"}}
	if m.Session() != "s1" {
		t.Fatalf("session %q", m.Session())
	}
}
