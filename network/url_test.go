package network

import (
	"errors"
	"testing"
)

func TestEngineURL(t *testing.T) {
	cases := []struct {
		addr, transport, want string
	}{
		{"http://pose.local:5000", TransportWebsocket, "ws://pose.local:5000/socket.io/?EIO=4&transport=websocket"},
		{"https://pose.local:5000", TransportWebsocket, "wss://pose.local:5000/socket.io/?EIO=4&transport=websocket"},
		{"pose.local:5000", TransportPolling, "http://pose.local:5000/socket.io/?EIO=4&transport=polling"},
		{"wss://pose.local", TransportPolling, "https://pose.local/socket.io/?EIO=4&transport=polling"},
	}

	for _, c := range cases {
		u, err := EngineURL(c.addr, c.transport)
		if err != nil {
			t.Fatalf("%s: %v", c.addr, err)
		}

		if u.String() != c.want {
			t.Fatalf("%s: got %s want %s", c.addr, u, c.want)
		}
	}
}

func TestEngineURLRejects(t *testing.T) {
	for _, addr := range []string{"", "ftp://pose.local", "http://"} {
		if _, err := EngineURL(addr, TransportPolling); !errors.Is(err, ErrorInvaildAddr) {
			t.Fatalf("%q: expected ErrorInvaildAddr, got %v", addr, err)
		}
	}
}
