// Package zookeeper discovers backends stored as JSON nodes under a root path.
package zookeeper

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"yogavision/log"
	"yogavision/registry"
	"yogavision/util/timer"

	"github.com/samuel/go-zookeeper/zk"
	"go.uber.org/zap"
)

var (
	ErrorNoNode  = errors.New("require at least one node")
	ErrorNotInit = errors.New("registry not initialized")
)

const (
	DefaultRoot    string        = "/yogavision-registry"
	DefaultTimeout time.Duration = 5 * time.Second
)

type zookeeperRegistry struct {
	client  *zk.Conn
	options registry.Options
	root    string
	sync.Mutex

	watchers []timer.Ticker
}

func NewRegistry(opts ...registry.Option) registry.Registry {
	var options registry.Options

	for _, o := range opts {
		o(&options)
	}

	if options.Timeout == 0 {
		options.Timeout = DefaultTimeout
	}

	return &zookeeperRegistry{
		options: options,
		root:    DefaultRoot,
	}
}

func (z *zookeeperRegistry) Init() error {
	if z.options.Addr == "" {
		return ErrorNoNode
	}

	c, _, err := zk.Connect([]string{z.options.Addr}, z.options.Timeout)
	if err != nil {
		return fmt.Errorf("failed to connect zookeeper %w", err)
	}

	if err := createPath(z.root, []byte{}, c); err != nil {
		c.Close()

		return err
	}

	z.Lock()
	z.client = c
	z.Unlock()

	return nil
}

func (z *zookeeperRegistry) conn() (*zk.Conn, error) {
	z.Lock()
	defer z.Unlock()

	if z.client == nil {
		return nil, ErrorNotInit
	}

	return z.client, nil
}

func (z *zookeeperRegistry) Options() registry.Options {
	return z.options
}

func (z *zookeeperRegistry) String() string {
	return "zookeeper"
}

func (z *zookeeperRegistry) ListServices(opt ...registry.ListOption) ([]*registry.Service, error) {
	opts := registry.ListOptions{Domain: registry.DefaultDomain}

	for _, o := range opt {
		o(&opts)
	}

	c, err := z.conn()
	if err != nil {
		return nil, err
	}

	srv, _, err := c.Children(z.root)
	if err != nil {
		return nil, fmt.Errorf("failed to find client children %w", err)
	}

	res := []*registry.Service{}

	for _, key := range srv {
		if opts.Domain != registry.WildcardDomain && vaguePath(key) != opts.Domain {
			continue
		}

		b, _, err := c.Get(nodePath(z.root, key, ""))
		if err != nil {
			if errors.Is(err, zk.ErrNoNode) {
				continue
			}

			return nil, fmt.Errorf("failed to get client %w", err)
		}

		s, err := decode(b)
		if err != nil {
			log.Warn("ZookeeperDecode", zap.String("node", key), zap.String("err", err.Error()))

			continue
		}

		res = append(res, s)
	}

	return res, nil
}

func (z *zookeeperRegistry) Watch(opt ...registry.WatchOption) error {
	opts := registry.WatchOptions{Domain: registry.DefaultDomain}

	for _, o := range opt {
		o(&opts)
	}

	svrs, err := z.ListServices(registry.ListOptionWithDomain(opts.Domain))
	if err != nil {
		return err
	}

	t := registry.Poll(opts.Context, svrs, &opts, func() ([]*registry.Service, error) {
		return z.ListServices(registry.ListOptionWithDomain(opts.Domain))
	})

	z.Lock()
	defer z.Unlock()

	z.watchers = append(z.watchers, t)

	return nil
}

func (z *zookeeperRegistry) Release() error {
	z.Lock()
	watchers := z.watchers
	z.watchers = nil
	c := z.client
	z.client = nil
	z.Unlock()

	for _, v := range watchers {
		v.Stop()
	}

	if c != nil {
		c.Close()
	}

	return nil
}
