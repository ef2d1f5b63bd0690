// Package socketio encodes Socket.IO v5 packets carried over Engine.IO v4.
//
// Each Conn message is one Engine.IO packet. Events are mapped to Go types
// through Register, the same way the message name keyed codecs work: the
// event name selects the payload type on decode and the payload type selects
// the event name on encode.
package socketio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrorInvaildPacket = errors.New("invalid socket.io packet")
	ErrorNoPointer     = errors.New("event message pointer required")
	ErrorNotRegister   = errors.New("event not registered")
)

// Engine.IO packet types.
const (
	eioOpen    byte = '0'
	eioClose   byte = '1'
	eioPing    byte = '2'
	eioPong    byte = '3'
	eioMessage byte = '4'
	eioUpgrade byte = '5'
	eioNoop    byte = '6'
)

// Socket.IO packet types.
const (
	sioConnect      byte = '0'
	sioDisconnect   byte = '1'
	sioEvent        byte = '2'
	sioAck          byte = '3'
	sioConnectError byte = '4'
)

type (
	// Open is the Engine.IO handshake sent by the server.
	Open struct {
		SID          string   `json:"sid"`
		Upgrades     []string `json:"upgrades"`
		PingInterval int      `json:"pingInterval"`
		PingTimeout  int      `json:"pingTimeout"`
		MaxPayload   int      `json:"maxPayload"`
	}

	Close struct{}

	Ping struct {
		Data string
	}

	Pong struct {
		Data string
	}

	Noop struct{}

	// Connect is both the namespace join request and the server's acknowledgement.
	Connect struct {
		SID string `json:"sid"`
		// Auth rides on the join request only.
		Auth map[string]string `json:"-"`
	}

	Disconnect struct{}

	ConnectError struct {
		Message string `json:"message"`
	}

	Ack struct {
		Payload json.RawMessage
	}
)

type MsgInfo struct {
	msgType reflect.Type
}

type Processor struct {
	msgInfo map[string]*MsgInfo
	msgName map[reflect.Type]string
}

func NewCodec() *Processor {
	return &Processor{
		msgInfo: make(map[string]*MsgInfo),
		msgName: make(map[reflect.Type]string),
	}
}

// Register binds an event name to a pointer payload type, e.g.
// Register("frame", (*proto.Frame)(nil)).
func (p *Processor) Register(event string, msg interface{}) error {
	msgType := reflect.TypeOf(msg)
	if msgType == nil || msgType.Kind() != reflect.Ptr {
		return ErrorNoPointer
	}

	if event == "" {
		return fmt.Errorf("empty event name for %v: %w", msgType, ErrorInvaildPacket)
	}

	if _, ok := p.msgInfo[event]; ok {
		return fmt.Errorf("event %v is already registered", event)
	}

	p.msgInfo[event] = &MsgInfo{msgType: msgType}
	p.msgName[msgType] = event

	return nil
}

func (p *Processor) String() string {
	return "socket.io"
}

func (p *Processor) Marshal(msg interface{}) ([]byte, error) {
	switch m := msg.(type) {
	case *Pong:
		return []byte(string(eioPong) + m.Data), nil
	case *Ping:
		return []byte(string(eioPing) + m.Data), nil
	case *Close:
		return []byte{eioClose}, nil
	case *Connect:
		if len(m.Auth) == 0 {
			return []byte{eioMessage, sioConnect}, nil
		}

		auth, err := json.Marshal(m.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal auth %w", err)
		}

		return append([]byte{eioMessage, sioConnect}, auth...), nil
	case *Disconnect:
		return []byte{eioMessage, sioDisconnect}, nil
	}

	msgType := reflect.TypeOf(msg)
	if msgType == nil || msgType.Kind() != reflect.Ptr {
		return nil, ErrorNoPointer
	}

	event, ok := p.msgName[msgType]
	if !ok {
		return nil, fmt.Errorf("message %v not registered %w", msgType, ErrorNotRegister)
	}

	data, err := json.Marshal([]interface{}{event, msg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %v %w", event, err)
	}

	return append([]byte{eioMessage, sioEvent}, data...), nil
}

func (p *Processor) Unmarshal(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, ErrorInvaildPacket
	}

	switch data[0] {
	case eioOpen:
		o := &Open{}
		if err := json.Unmarshal(data[1:], o); err != nil {
			return nil, fmt.Errorf("failed to unmarshal open %w", err)
		}

		return o, nil
	case eioClose:
		return &Close{}, nil
	case eioPing:
		return &Ping{Data: string(data[1:])}, nil
	case eioPong:
		return &Pong{Data: string(data[1:])}, nil
	case eioUpgrade, eioNoop:
		return &Noop{}, nil
	case eioMessage:
		return p.unmarshalSocket(data[1:])
	}

	return nil, fmt.Errorf("engine.io type %q %w", data[0], ErrorInvaildPacket)
}

func (p *Processor) unmarshalSocket(b []byte) (interface{}, error) {
	if len(b) == 0 {
		return nil, ErrorInvaildPacket
	}

	typ, rest := b[0], b[1:]

	// only the default namespace is joined; drop any "/ns," prefix
	if len(rest) > 0 && rest[0] == '/' {
		i := bytes.IndexByte(rest, ',')
		if i < 0 {
			rest = nil
		} else {
			rest = rest[i+1:]
		}
	}

	// ack id
	for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
		rest = rest[1:]
	}

	switch typ {
	case sioConnect:
		c := &Connect{}
		if len(rest) > 0 {
			if err := json.Unmarshal(rest, c); err != nil {
				return nil, fmt.Errorf("failed to unmarshal connect %w", err)
			}
		}

		return c, nil
	case sioDisconnect:
		return &Disconnect{}, nil
	case sioConnectError:
		ce := &ConnectError{}
		if len(rest) > 0 && json.Unmarshal(rest, ce) != nil {
			// older servers send a bare string
			var s string
			if err := json.Unmarshal(rest, &s); err != nil {
				return nil, fmt.Errorf("failed to unmarshal connect error %w", err)
			}

			ce.Message = s
		}

		return ce, nil
	case sioAck:
		return &Ack{Payload: rest}, nil
	case sioEvent:
		return p.unmarshalEvent(rest)
	}

	return nil, fmt.Errorf("socket.io type %q %w", typ, ErrorInvaildPacket)
}

func (p *Processor) unmarshalEvent(b []byte) (interface{}, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(b, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %w", err)
	}

	if len(args) == 0 {
		return nil, ErrorInvaildPacket
	}

	var event string
	if err := json.Unmarshal(args[0], &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event name %w", err)
	}

	i, ok := p.msgInfo[event]
	if !ok {
		return nil, fmt.Errorf("event %v not registered %w", event, ErrorNotRegister)
	}

	msg := reflect.New(i.msgType.Elem()).Interface()
	if len(args) > 1 {
		if err := json.Unmarshal(args[1], msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event %v payload %w", event, err)
		}
	}

	return msg, nil
}
