// Package redis discovers backends from keys of the form domain_addr_id.
// Backends announce themselves with SET ... EX and vanish when the key expires.
package redis

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"yogavision/registry"
	"yogavision/util/timer"

	redigo "github.com/gomodule/redigo/redis"
)

var (
	ErrorNoConn     = errors.New("no redigo conn")
	ErrorInvalidKey = errors.New("invalid key")
)

const (
	DefaultMaxIdle      uint32        = 10
	DefaultMaxActive    uint32        = 10
	DefaultIdleTimeout  time.Duration = 1000 * time.Millisecond
	DefaultTimeout      time.Duration = 3 * time.Second
	DefaultSeparator    string        = "_"
	DefaultSeparatorNum int           = 3
	DefaultDomainIndex  int           = 0
	DefaultAddrIndex    int           = 1
	DefaultNameIndex    int           = 2
)

type redisreg struct {
	opts        registry.Options
	pool        *redigo.Pool
	maxIdle     uint32
	maxActive   uint32
	idleTimeout time.Duration

	watchers []timer.Ticker
	sync.Mutex
}

// ServiceKey builds the key a backend sets to announce itself.
func ServiceKey(domain string, s *registry.Service) (string, error) {
	for _, part := range []string{domain, s.Addr, s.ID} {
		if part == "" || strings.Contains(part, DefaultSeparator) {
			return "", ErrorInvalidKey
		}
	}

	return domain + DefaultSeparator + s.Addr + DefaultSeparator + s.ID, nil
}

func stringKey2Service(key string) (*registry.Service, error) {
	strs := strings.Split(key, DefaultSeparator)
	if len(strs) != DefaultSeparatorNum {
		return nil, ErrorInvalidKey
	}

	if strs[DefaultAddrIndex] == "" || strs[DefaultNameIndex] == "" {
		return nil, ErrorInvalidKey
	}

	s := &registry.Service{
		Addr: strs[DefaultAddrIndex],
		ID:   strs[DefaultNameIndex],
	}

	return s, nil
}

func NewRegistry(opts ...registry.Option) registry.Registry {
	reg := &redisreg{}

	for _, o := range opts {
		o(&reg.opts)
	}

	if reg.opts.Timeout == 0 {
		reg.opts.Timeout = DefaultTimeout
	}

	reg.maxIdle = DefaultMaxIdle
	reg.maxActive = DefaultMaxActive
	reg.idleTimeout = DefaultIdleTimeout

	timeout := reg.opts.Timeout

	reg.pool = &redigo.Pool{
		MaxIdle:     int(reg.maxIdle),
		MaxActive:   int(reg.maxActive),
		IdleTimeout: reg.idleTimeout,
		Dial: func() (redigo.Conn, error) {
			c, err := redigo.Dial("tcp", reg.opts.Addr,
				redigo.DialConnectTimeout(timeout),
				redigo.DialReadTimeout(timeout),
				redigo.DialWriteTimeout(timeout))
			if err != nil {
				return nil, fmt.Errorf("failed to dial addr %w", err)
			}

			if reg.opts.Password == "" {
				return c, nil
			}

			if _, err := c.Do("AUTH", reg.opts.Password); err != nil {
				c.Close()

				return nil, fmt.Errorf("failed to auth %w", err)
			}

			return c, nil
		},
	}

	return reg
}

func (r *redisreg) Init() error {
	c := r.pool.Get()
	if c == nil {
		return ErrorNoConn
	}

	defer c.Close()

	if _, err := c.Do("PING"); err != nil {
		return fmt.Errorf("failed to ping %w", err)
	}

	return nil
}

func (r *redisreg) ListServices(opt ...registry.ListOption) (service []*registry.Service, err error) {
	opts := registry.ListOptions{Domain: registry.DefaultDomain}

	for _, o := range opt {
		o(&opts)
	}

	c := r.pool.Get()
	if c == nil {
		return nil, ErrorNoConn
	}

	defer c.Close()

	res, err := redigo.Strings(c.Do("KEYS", opts.Domain+DefaultSeparator+"*"))
	if err != nil {
		return service, fmt.Errorf("faild to get %w", err)
	}

	for _, v := range res {
		s, err := stringKey2Service(v)
		if err != nil {
			continue
		}

		service = append(service, s)
	}

	return service, nil
}

func (r *redisreg) Watch(opt ...registry.WatchOption) error {
	opts := registry.WatchOptions{Domain: registry.DefaultDomain}

	for _, o := range opt {
		o(&opts)
	}

	svrs, err := r.ListServices(registry.ListOptionWithDomain(opts.Domain))
	if err != nil {
		return err
	}

	t := registry.Poll(opts.Context, svrs, &opts, func() ([]*registry.Service, error) {
		return r.ListServices(registry.ListOptionWithDomain(opts.Domain))
	})

	r.Lock()
	defer r.Unlock()

	r.watchers = append(r.watchers, t)

	return nil
}

func (r *redisreg) Options() registry.Options {
	return r.opts
}

func (r *redisreg) Release() error {
	r.Lock()
	watchers := r.watchers
	r.watchers = nil
	r.Unlock()

	for _, v := range watchers {
		v.Stop()
	}

	return r.pool.Close()
}

func (r *redisreg) String() string {
	return "redis"
}
