// File: node/config.go
// Author: momentics <momentics@gmail.com>
//
// Per-transport listen/connect configuration, grounded on the teacher's
// functional-options idiom (server/options.go's ServerOption/WithXxx
// constructors passed into server.NewServer) but expressed as plain
// value types, since every field here is a one-shot socket option
// applied once at Listen/Connect time rather than a long-lived knob a
// ServerOption mutates on a running *Server.
package node

import (
	"time"

	"github.com/momentics/netcore/api"
	"github.com/momentics/netcore/internal/netcore"
)

// ListenConfig is a closed sum of per-transport listen configurations,
// dispatched on by NetworkController.ListenWith.
type ListenConfig interface {
	transport() api.Transport
	addr() string
	isListenConfig()
}

// ConnectConfig is a closed sum of per-transport connect configurations,
// dispatched on by NetworkController.ConnectWith.
type ConnectConfig interface {
	transport() api.Transport
	addr() string
	isConnectConfig()
}

// KeepaliveOptions configures TCP/FramedTcp keepalive probing.
type KeepaliveOptions struct {
	Idle     time.Duration
	Interval time.Duration
	Retries  int
}

func (o KeepaliveOptions) toTCPOptions() netcore.TCPOptions {
	return netcore.TCPOptions{
		KeepaliveIdle:     o.Idle,
		KeepaliveInterval: o.Interval,
		KeepaliveRetries:  o.Retries,
	}
}

// TCPListenConfig configures a Tcp or FramedTcp Listen call. Kind must
// be api.Tcp or api.FramedTcp; other values make ListenWith return an
// error.
type TCPListenConfig struct {
	Kind       api.Transport
	Address    string
	Keepalive  KeepaliveOptions
	BindDevice string
}

func (c TCPListenConfig) transport() api.Transport { return c.Kind }
func (c TCPListenConfig) addr() string             { return c.Address }
func (TCPListenConfig) isListenConfig()            {}

func (c TCPListenConfig) toOptions() netcore.TCPOptions {
	opts := c.Keepalive.toTCPOptions()
	opts.BindDevice = c.BindDevice
	return opts
}

// TCPConnectConfig configures a Tcp or FramedTcp Connect call.
type TCPConnectConfig struct {
	Kind          api.Transport
	Address       string
	Keepalive     KeepaliveOptions
	SourceAddress string
	BindDevice    string
}

func (c TCPConnectConfig) transport() api.Transport { return c.Kind }
func (c TCPConnectConfig) addr() string             { return c.Address }
func (TCPConnectConfig) isConnectConfig()           {}

func (c TCPConnectConfig) toOptions() netcore.TCPOptions {
	opts := c.Keepalive.toTCPOptions()
	opts.SourceAddress = c.SourceAddress
	opts.BindDevice = c.BindDevice
	return opts
}

// UDPListenConfig configures a Udp Listen call.
type UDPListenConfig struct {
	Address              string
	ReuseAddress         bool
	ReusePort            bool
	BroadcastSelfReceive bool
}

func (c UDPListenConfig) transport() api.Transport { return api.Udp }
func (c UDPListenConfig) addr() string             { return c.Address }
func (UDPListenConfig) isListenConfig()            {}

func (c UDPListenConfig) toOptions() netcore.UDPOptions {
	return netcore.UDPOptions{
		ReuseAddress:         c.ReuseAddress,
		ReusePort:            c.ReusePort,
		BroadcastSelfReceive: c.BroadcastSelfReceive,
	}
}

// UDPConnectConfig configures a Udp Connect call.
type UDPConnectConfig struct {
	Address       string
	SourceAddress string
}

func (c UDPConnectConfig) transport() api.Transport { return api.Udp }
func (c UDPConnectConfig) addr() string             { return c.Address }
func (UDPConnectConfig) isConnectConfig()           {}

func (c UDPConnectConfig) toOptions() netcore.UDPOptions {
	return netcore.UDPOptions{SourceAddress: c.SourceAddress}
}

// WSListenConfig configures a Ws Listen call. TLSConfig is accepted for
// interface completeness; see internal/netcore.WSOptions for why it is
// not operationally wired to the raw-fd frame codec.
type WSListenConfig struct {
	Address      string
	TLSConfig    interface{}
	MaxFrameSize int64
}

func (c WSListenConfig) transport() api.Transport { return api.Ws }
func (c WSListenConfig) addr() string             { return c.Address }
func (WSListenConfig) isListenConfig()            {}

func (c WSListenConfig) toOptions() netcore.WSOptions {
	return netcore.WSOptions{TLSConfig: c.TLSConfig, MaxFrameSize: c.MaxFrameSize}
}

// WSConnectConfig configures a Ws Connect call.
type WSConnectConfig struct {
	Address      string
	TLSConfig    interface{}
	MaxFrameSize int64
}

func (c WSConnectConfig) transport() api.Transport { return api.Ws }
func (c WSConnectConfig) addr() string             { return c.Address }
func (WSConnectConfig) isConnectConfig()           {}

func (c WSConnectConfig) toOptions() netcore.WSOptions {
	return netcore.WSOptions{TLSConfig: c.TLSConfig, MaxFrameSize: c.MaxFrameSize}
}

// NodeOption configures Split. Grounded on the same functional-options
// idiom as the per-transport configs above (server/options.go's
// ServerOption/WithXxx constructors).
type NodeOption func(*nodeConfig)

type nodeConfig struct {
	handoffQueueDepth int
}

func defaultNodeConfig() nodeConfig {
	return nodeConfig{handoffQueueDepth: 0} // 0: unbuffered hand-off
}

// WithHandoffQueueDepth sets the buffer depth of the channels that carry
// network events and due signals from the background goroutines to the
// fusion loop (default 0, unbuffered). Whatever the depth, the processor
// waits for each network event's callback to return before it resumes,
// so Message payloads stay valid for the callback; a positive depth lets
// the signal forwarder take up to n due signals off the queue ahead of
// the callback.
func WithHandoffQueueDepth(n int) NodeOption {
	return func(c *nodeConfig) { c.handoffQueueDepth = n }
}
