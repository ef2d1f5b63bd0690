package rabbit

import (
	"errors"
	"fmt"
	"sync"

	"yogavision/broker"

	"github.com/streadway/amqp"
)

var (
	ErrNotParamNull  = errors.New("exchange name must not be empty")
	ErrConnectIsNull = errors.New("connection is nil")
)

const DefaultExchange = "yogavision"

// rabbitBroker publishes to a durable topic exchange; the topic is the routing key.
type rabbitBroker struct {
	opts         broker.Options
	exchangeType string

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared bool
}

func (r *rabbitBroker) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.connect()
}

func (r *rabbitBroker) connect() error {
	conn, err := amqp.Dial(r.opts.Addr)
	if err != nil {
		return fmt.Errorf("fail to connect amqp %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()

		return fmt.Errorf("fail to connect channel %w", err)
	}

	r.conn = conn
	r.channel = channel
	r.declared = false

	return nil
}

func (r *rabbitBroker) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		r.channel.Close()
		r.channel = nil
	}

	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}

	return nil
}

func (r *rabbitBroker) declare() error {
	if r.declared {
		return nil
	}

	if r.opts.Exchange == "" {
		return ErrNotParamNull
	}

	if err := r.channel.ExchangeDeclare(r.opts.Exchange, r.exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("fail to declare exchange %w", err)
	}

	r.declared = true

	return nil
}

func (r *rabbitBroker) Publish(topic string, msg *broker.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return ErrConnectIsNull
	}

	if r.conn.IsClosed() || r.channel == nil {
		if err := r.connect(); err != nil {
			return fmt.Errorf("publish reconnect %w", err)
		}
	}

	if err := r.declare(); err != nil {
		return err
	}

	m := amqp.Publishing{
		ContentType: "application/json",
		Body:        msg.Body,
		Headers:     amqp.Table{},
	}

	for k, v := range msg.Header {
		m.Headers[k] = v
	}

	if err := r.channel.Publish(r.opts.Exchange, topic, false, false, m); err != nil {
		r.channel = nil

		return fmt.Errorf("fail to publish %w", err)
	}

	return nil
}

func (r *rabbitBroker) Options() broker.Options {
	return r.opts
}

func (r *rabbitBroker) String() string {
	return "rabbit-broker"
}

func NewBroker(opts ...broker.Option) broker.Broker {
	b := &rabbitBroker{
		opts:         broker.Options{Exchange: DefaultExchange, Timeout: broker.DefaultTimeout},
		exchangeType: "topic",
	}

	for _, o := range opts {
		o(&b.opts)
	}

	return b
}
