// File: internal/netcore/resolve.go
// Author: momentics <momentics@gmail.com>
//
// Resolves an api.RemoteAddr (a resolved net.Addr or a free-form
// string) against a specific transport's network name, mirroring the
// lazy resolve-at-connect-time contract documented on api.RemoteAddr.
package netcore

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/momentics/netcore/api"
)

func resolveTCP(addr api.RemoteAddr) (*net.TCPAddr, error) {
	switch a := addr.(type) {
	case api.SocketAddr:
		if tcp, ok := a.Addr.(*net.TCPAddr); ok {
			return tcp, nil
		}
		return net.ResolveTCPAddr("tcp", a.Addr.String())
	default:
		return net.ResolveTCPAddr("tcp", addr.String())
	}
}

func resolveUDP(addr api.RemoteAddr) (*net.UDPAddr, error) {
	switch a := addr.(type) {
	case api.SocketAddr:
		if udp, ok := a.Addr.(*net.UDPAddr); ok {
			return udp, nil
		}
		return net.ResolveUDPAddr("udp", a.Addr.String())
	default:
		return net.ResolveUDPAddr("udp", addr.String())
	}
}

// resolveWS splits a ws(s):// URL (or a bare host:port, treated as
// ws://) into the dial target and path+query used for the HTTP
// upgrade request line.
func resolveWS(addr api.RemoteAddr) (target *net.TCPAddr, path string, secure bool, err error) {
	raw := addr.String()
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", false, fmt.Errorf("ws: invalid address %q: %w", addr.String(), err)
	}
	secure = u.Scheme == "wss"
	host := u.Host
	if !strings.Contains(host, ":") {
		if secure {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	target, err = net.ResolveTCPAddr("tcp", host)
	if err != nil {
		return nil, "", false, err
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return target, path, secure, nil
}
