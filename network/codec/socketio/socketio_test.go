package socketio

import (
	"errors"
	"testing"
)

type frameMsg struct {
	Image string `json:"image"`
}

type adjustedMsg struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Scale   float64 `json:"scale"`
}

func newTestCodec(t *testing.T) *Processor {
	t.Helper()

	p := NewCodec()
	if err := p.Register("frame", (*frameMsg)(nil)); err != nil {
		t.Fatalf("register frame: %v", err)
	}

	if err := p.Register("pose_adjusted", (*adjustedMsg)(nil)); err != nil {
		t.Fatalf("register pose_adjusted: %v", err)
	}

	return p
}

func TestMarshalEvent(t *testing.T) {
	p := newTestCodec(t)

	data, err := p.Marshal(&frameMsg{Image: "data:image/jpeg;base64,AAAA"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `42["frame",{"image":"data:image/jpeg;base64,AAAA"}]`
	if string(data) != want {
		t.Fatalf("unexpected packet:\n got %s\nwant %s", data, want)
	}
}

func TestMarshalUnregistered(t *testing.T) {
	p := newTestCodec(t)

	if _, err := p.Marshal(&struct{ A int }{}); !errors.Is(err, ErrorNotRegister) {
		t.Fatalf("expected ErrorNotRegister, got %v", err)
	}

	if _, err := p.Marshal(frameMsg{}); !errors.Is(err, ErrorNoPointer) {
		t.Fatalf("expected ErrorNoPointer, got %v", err)
	}
}

func TestMarshalControl(t *testing.T) {
	p := newTestCodec(t)

	cases := map[string]interface{}{
		"3":                 &Pong{},
		"2x":                &Ping{Data: "x"},
		"1":                 &Close{},
		"40":                &Connect{},
		`40{"token":"abc"}`: &Connect{Auth: map[string]string{"token": "abc"}},
		"41":                &Disconnect{},
	}

	for want, msg := range cases {
		data, err := p.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal %T: %v", msg, err)
		}

		if string(data) != want {
			t.Fatalf("marshal %T: got %q want %q", msg, data, want)
		}
	}
}

func TestUnmarshalEvent(t *testing.T) {
	p := newTestCodec(t)

	msg, err := p.Unmarshal([]byte(`42["pose_adjusted",{"offset_x":0.05,"offset_y":-0.1,"scale":1.2}]`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	m, ok := msg.(*adjustedMsg)
	if !ok {
		t.Fatalf("unexpected type %T", msg)
	}

	if m.OffsetX != 0.05 || m.OffsetY != -0.1 || m.Scale != 1.2 {
		t.Fatalf("unexpected payload: %+v", m)
	}
}

func TestUnmarshalEventWithNamespaceAndAckID(t *testing.T) {
	p := newTestCodec(t)

	msg, err := p.Unmarshal([]byte(`42/pose,12["frame",{"image":"x"}]`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if m, ok := msg.(*frameMsg); !ok || m.Image != "x" {
		t.Fatalf("unexpected message %#v", msg)
	}
}

func TestUnmarshalControl(t *testing.T) {
	p := newTestCodec(t)

	msg, err := p.Unmarshal([]byte(`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))
	if err != nil {
		t.Fatalf("unmarshal open: %v", err)
	}

	o, ok := msg.(*Open)
	if !ok || o.SID != "abc" || o.PingInterval != 25000 || o.PingTimeout != 20000 {
		t.Fatalf("unexpected open %#v", msg)
	}

	msg, err = p.Unmarshal([]byte(`40{"sid":"xyz"}`))
	if err != nil {
		t.Fatalf("unmarshal connect: %v", err)
	}

	if c, ok := msg.(*Connect); !ok || c.SID != "xyz" {
		t.Fatalf("unexpected connect %#v", msg)
	}

	msg, err = p.Unmarshal([]byte(`44{"message":"not authorized"}`))
	if err != nil {
		t.Fatalf("unmarshal connect error: %v", err)
	}

	if ce, ok := msg.(*ConnectError); !ok || ce.Message != "not authorized" {
		t.Fatalf("unexpected connect error %#v", msg)
	}

	msg, err = p.Unmarshal([]byte(`2`))
	if err != nil {
		t.Fatalf("unmarshal ping: %v", err)
	}

	if _, ok := msg.(*Ping); !ok {
		t.Fatalf("unexpected ping %#v", msg)
	}

	msg, err = p.Unmarshal([]byte(`41`))
	if err != nil {
		t.Fatalf("unmarshal disconnect: %v", err)
	}

	if _, ok := msg.(*Disconnect); !ok {
		t.Fatalf("unexpected disconnect %#v", msg)
	}
}

func TestUnmarshalRejects(t *testing.T) {
	p := newTestCodec(t)

	if _, err := p.Unmarshal(nil); !errors.Is(err, ErrorInvaildPacket) {
		t.Fatalf("expected ErrorInvaildPacket for empty packet, got %v", err)
	}

	if _, err := p.Unmarshal([]byte(`42["unknown",{}]`)); !errors.Is(err, ErrorNotRegister) {
		t.Fatalf("expected ErrorNotRegister, got %v", err)
	}

	if _, err := p.Unmarshal([]byte(`9`)); !errors.Is(err, ErrorInvaildPacket) {
		t.Fatalf("expected ErrorInvaildPacket, got %v", err)
	}

	if _, err := p.Unmarshal([]byte(`42[]`)); !errors.Is(err, ErrorInvaildPacket) {
		t.Fatalf("expected ErrorInvaildPacket for empty event, got %v", err)
	}
}

func TestRegisterTwice(t *testing.T) {
	p := newTestCodec(t)

	if err := p.Register("frame", (*frameMsg)(nil)); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}
