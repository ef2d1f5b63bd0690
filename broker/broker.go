// Package broker publishes session telemetry to a message bus. The client
// only ever produces; nothing here consumes.
package broker

const (
	HeaderKind    = "kind"
	HeaderSession = "session"
)

// Broker is one bus connection. Publish may be called from one goroutine
// at a time; Publisher serializes it.
type Broker interface {
	Connect() error
	Disconnect() error
	Publish(topic string, m *Message) error
	Options() Options
	String() string
}

type Message struct {
	Header map[string]string
	Body   []byte
}

// Session is the session id the message belongs to, used as the partition
// or routing key by brokers that have one.
func (m *Message) Session() string {
	if m == nil || m.Header == nil {
		return ""
	}

	return m.Header[HeaderSession]
}
