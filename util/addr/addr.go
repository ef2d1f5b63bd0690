// Package addr turns listen addresses into something a user can open.
package addr

import (
	"errors"
	"net"
)

var (
	defaultPrivateBlocks []*net.IPNet

	ErrorIPNotFound = errors.New("no IP address found, and explicit IP not provided")
)

func init() {
	for _, b := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "100.64.0.0/10", "fd00::/8"} {
		if _, block, err := net.ParseCIDR(b); err == nil {
			defaultPrivateBlocks = append(defaultPrivateBlocks, block)
		}
	}
}

func isPrivateIP(ip net.IP) bool {
	for _, priv := range defaultPrivateBlocks {
		if priv.Contains(ip) {
			return true
		}
	}

	return false
}

// IsLoopback reports whether host only accepts connections from this machine.
func IsLoopback(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)

	return ip != nil && ip.IsLoopback()
}

// Extract returns host unless it is a wildcard, in which case it picks a
// private interface address, then a public one, then loopback.
func Extract(host string) (string, error) {
	if len(host) > 0 && host != "0.0.0.0" && host != "[::]" && host != "::" {
		return host, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	var private, public, loopback net.IP

	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, a := range addrs {
			var ip net.IP

			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			default:
				continue
			}

			switch {
			case iface.Flags&net.FlagLoopback != 0 || ip.IsLoopback():
				if loopback == nil {
					loopback = ip
				}
			case isPrivateIP(ip):
				if private == nil {
					private = ip
				}
			case ip.IsGlobalUnicast():
				if public == nil {
					public = ip
				}
			}
		}
	}

	for _, ip := range []net.IP{private, public, loopback} {
		if ip != nil {
			return ip.String(), nil
		}
	}

	return "", ErrorIPNotFound
}
