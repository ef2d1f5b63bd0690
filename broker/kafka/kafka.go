package kafka

import (
	"errors"
	"fmt"
	"strings"

	"yogavision/broker"

	"github.com/Shopify/sarama"
)

var ErrorNotConnected = errors.New("kafka producer not connected")

type kafkaBroker struct {
	opts broker.Options
	p    sarama.SyncProducer
}

// Connect builds a sync producer against the comma separated broker list in Addr.
func (s *kafkaBroker) Connect() error {
	config := sarama.NewConfig()
	config.ClientID = s.opts.Name
	config.Producer.Return.Successes = true
	config.Producer.Timeout = s.opts.Timeout
	config.Producer.RequiredAcks = sarama.WaitForLocal

	p, err := sarama.NewSyncProducer(strings.Split(s.opts.Addr, ","), config)
	if err != nil {
		return fmt.Errorf("fail to connect kafka %w", err)
	}

	s.p = p

	return nil
}

func (s *kafkaBroker) Disconnect() error {
	if s.p == nil {
		return nil
	}

	if err := s.p.Close(); err != nil {
		return fmt.Errorf("fail to close producer %w", err)
	}

	return nil
}

func (s *kafkaBroker) Publish(topic string, m *broker.Message) error {
	if s.p == nil {
		return ErrorNotConnected
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(m.Body),
	}

	if session := m.Session(); session != "" {
		// keep one session's events on one partition
		msg.Key = sarama.StringEncoder(session)
	}

	for k, v := range m.Header {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	if _, _, err := s.p.SendMessage(msg); err != nil {
		return fmt.Errorf("fail to publish %w", err)
	}

	return nil
}

func (s *kafkaBroker) Options() broker.Options {
	return s.opts
}

func (s *kafkaBroker) String() string {
	return "kafka-broker"
}

func NewBroker(opts ...broker.Option) broker.Broker {
	b := &kafkaBroker{
		opts: broker.Options{Name: "yogavision", Timeout: broker.DefaultTimeout},
	}

	for _, o := range opts {
		o(&b.opts)
	}

	return b
}
