// File: internal/netcore/udpadapter_test.go
// Author: momentics <momentics@gmail.com>
package netcore

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/netcore/api"
)

func pollUntil(t *testing.T, e *Engine, deadline time.Time, want func(api.NetEvent) bool) api.NetEvent {
	t.Helper()
	var found api.NetEvent
	var ok bool
	for !ok && time.Now().Before(deadline) {
		timeout := 50 * time.Millisecond
		require.NoError(t, e.Poll(&timeout, func(ev api.NetEvent) {
			if !ok && want(ev) {
				found = ev.Owned()
				ok = true
			}
		}))
	}
	require.True(t, ok, "deadline exceeded waiting for event")
	return found
}

func TestUDPDatagramFromPlainSocketSurfacesAsMessage(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Close()

	_, local, err := e.Listen(api.Udp, api.Str("127.0.0.1:0"))
	require.NoError(t, err)

	conn, err := net.Dial("udp", local.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	ev := pollUntil(t, e, time.Now().Add(2*time.Second), func(ev api.NetEvent) bool {
		return ev.Kind() == api.EventMessage
	})
	require.Equal(t, "ping", string(ev.Data()))
}

func TestUDPReplyReachesThePassivelyDiscoveredPeer(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Close()

	_, local, err := e.Listen(api.Udp, api.Str("127.0.0.1:0"))
	require.NoError(t, err)

	conn, err := net.Dial("udp", local.String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	ev := pollUntil(t, e, time.Now().Add(2*time.Second), func(ev api.NetEvent) bool {
		return ev.Kind() == api.EventMessage
	})

	status := e.Send(ev.Endpoint().ResourceID(), []byte("world"))
	require.Equal(t, api.SendStatusSent, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "world", string(buf[:n]))
}

func TestUDPConnectedSocketSendReceive(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Close()

	_, local, err := e.Listen(api.Udp, api.Str("127.0.0.1:0"))
	require.NoError(t, err)

	id, err := e.Connect(api.Udp, api.Socket(local))
	require.NoError(t, err)

	ready, known := e.IsReady(id)
	require.True(t, known)
	require.True(t, ready) // UDP has no handshake; ready as soon as it exists

	status := e.Send(id, []byte("connected-hello"))
	require.Equal(t, api.SendStatusSent, status)

	ev := pollUntil(t, e, time.Now().Add(2*time.Second), func(ev api.NetEvent) bool {
		return ev.Kind() == api.EventMessage
	})
	require.Equal(t, "connected-hello", string(ev.Data()))
}

func TestUDPSendRejectsOversizedPayload(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Close()

	id, err := e.Connect(api.Udp, api.Str("127.0.0.1:9"))
	require.NoError(t, err)

	oversized := make([]byte, api.MaxUDPNetworkPayloadLen+1)
	status := e.Send(id, oversized)
	require.Equal(t, api.SendStatusMaxPacketSizeExceeded, status)
}
