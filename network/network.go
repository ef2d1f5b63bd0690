package network

import (
	"context"
	"errors"
)

var ErrorNotConnected = errors.New("not connected")

const (
	TransportWebsocket = "websocket"
	TransportPolling   = "polling"
)

type Client interface {
	Connect(context.Context)
	Close()
	String() string
	WriteMessage(interface{}) error
	Options() ClientOptions
	SetOption(...ClientOption)
}

type Handler interface {
	Handle(Agent, interface{})
	OnConnect(Agent)
	OnClose(Agent)
}

type Agent interface {
	WriteMessage(interface{}) error
	GetData(string) interface{}
	SetData(string, interface{})
	Transport() string
}

type Codec interface {
	Marshal(interface{}) ([]byte, error)
	Unmarshal([]byte) (interface{}, error)
	String() string
}

// Conn carries whole protocol packets; implementations are safe for one
// reader and concurrent writers.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage([]byte) error
	Close() error
	String() string
}

// Dialer opens one Conn to the backend base address, e.g. http://host:5000.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
	String() string
}
