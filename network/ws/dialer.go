package ws

import (
	"context"
	"fmt"

	"yogavision/network"

	"github.com/gorilla/websocket"
)

type dialer struct {
	opts   Options
	dialer websocket.Dialer
}

func NewDialer(opts ...Option) network.Dialer {
	d := &dialer{opts: defaultOptions()}

	for _, o := range opts {
		o(&d.opts)
	}

	d.dialer = websocket.Dialer{
		HandshakeTimeout: d.opts.HandshakeTimeout,
	}

	return d
}

func (d *dialer) Dial(ctx context.Context, addr string) (network.Conn, error) {
	u, err := network.EngineURL(addr, network.TransportWebsocket)
	if err != nil {
		return nil, err
	}

	conn, _, err := d.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %v %w", u, err)
	}

	conn.SetReadLimit(int64(d.opts.MaxMsgLen))

	return newConn(conn, d.opts.MaxWriteBufLen), nil
}

func (d *dialer) String() string {
	return network.TransportWebsocket
}
