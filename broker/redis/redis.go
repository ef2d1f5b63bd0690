package redis

import (
	"errors"
	"fmt"
	"time"

	"yogavision/broker"

	"github.com/gomodule/redigo/redis"
)

var ErrorNoConn = errors.New("no redigo conn")

const (
	DefaultMaxIdle     uint32        = 2
	DefaultMaxActive   uint32        = 4
	DefaultIdleTimeout time.Duration = 1000 * time.Millisecond
	// DefaultMaxLen caps each telemetry stream, approximately.
	DefaultMaxLen = 10000
)

// redisBroker appends to a redis stream named by topic, so telemetry
// outlives the moment nobody is subscribed.
type redisBroker struct {
	opts        broker.Options
	pool        *redis.Pool
	maxIdle     uint32
	maxActive   uint32
	idleTimeout time.Duration
}

func (b *redisBroker) String() string {
	return "redis-broker"
}

func (b *redisBroker) Connect() error {
	c := b.pool.Get()
	if c == nil {
		return ErrorNoConn
	}

	defer c.Close()

	if _, err := c.Do("PING"); err != nil {
		return fmt.Errorf("failed to ping %w", err)
	}

	return nil
}

func (b *redisBroker) Disconnect() error {
	if err := b.pool.Close(); err != nil {
		return fmt.Errorf("failed to disconnect %w", err)
	}

	return nil
}

func (b *redisBroker) Publish(topic string, msg *broker.Message) error {
	conn := b.pool.Get()
	defer conn.Close()

	if _, err := redis.String(conn.Do("XADD", xaddArgs(topic, msg)...)); err != nil {
		return fmt.Errorf("failed to publish %w", err)
	}

	return nil
}

// xaddArgs lays headers out as stream fields next to the body.
func xaddArgs(topic string, msg *broker.Message) []interface{} {
	args := []interface{}{topic, "MAXLEN", "~", DefaultMaxLen, "*"}

	for k, v := range msg.Header {
		args = append(args, k, v)
	}

	return append(args, "body", msg.Body)
}

func (b *redisBroker) Options() broker.Options {
	return b.opts
}

func NewBroker(opts ...broker.Option) broker.Broker {
	b := &redisBroker{
		opts: broker.Options{Timeout: broker.DefaultTimeout},
	}

	for _, o := range opts {
		o(&b.opts)
	}

	b.maxIdle = DefaultMaxIdle
	b.maxActive = DefaultMaxActive
	b.idleTimeout = DefaultIdleTimeout

	b.pool = &redis.Pool{
		MaxIdle:     int(b.maxIdle),
		MaxActive:   int(b.maxActive),
		IdleTimeout: b.idleTimeout,
		Dial: func() (redis.Conn, error) {
			c, err := redis.Dial("tcp", b.opts.Addr,
				redis.DialConnectTimeout(b.opts.Timeout),
				redis.DialReadTimeout(b.opts.Timeout),
				redis.DialWriteTimeout(b.opts.Timeout))
			if err != nil {
				return nil, fmt.Errorf("failed to dial addr %w", err)
			}

			if b.opts.Password == "" {
				return c, nil
			}

			if _, err := c.Do("AUTH", b.opts.Password); err != nil {
				c.Close()

				return nil, fmt.Errorf("failed to auth %w", err)
			}

			return c, nil
		},
	}

	return b
}
