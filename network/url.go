package network

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultEnginePath = "/socket.io/"
	EngineVersion     = "4"
)

var ErrorInvaildAddr = errors.New("invalid backend addr")

// EngineURL builds the Engine.IO endpoint for a backend base address such as
// "http://host:5000" or "host:5000".
func EngineURL(addr, transport string) (*url.URL, error) {
	if addr == "" {
		return nil, ErrorInvaildAddr
	}

	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse addr %v: %w", err, ErrorInvaildAddr)
	}

	if u.Host == "" {
		return nil, ErrorInvaildAddr
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "http"
	case "https", "wss":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("scheme %v: %w", u.Scheme, ErrorInvaildAddr)
	}

	if transport == TransportWebsocket {
		if u.Scheme == "https" {
			u.Scheme = "wss"
		} else {
			u.Scheme = "ws"
		}
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultEnginePath
	}

	q := u.Query()
	q.Set("EIO", EngineVersion)
	q.Set("transport", transport)
	u.RawQuery = q.Encode()

	return u, nil
}
