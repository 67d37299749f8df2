// File: node/node_integration_test.go
// Author: momentics <momentics@gmail.com>
package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/netcore/api"
)

func TestFramedTcpEchoThroughSplitNode(t *testing.T) {
	h, l, err := Split()
	require.NoError(t, err)
	defer h.Close()

	_, local, err := h.Network().Listen(api.FramedTcp, api.Str("127.0.0.1:0"))
	require.NoError(t, err)

	var server, client api.Endpoint
	connected := make(chan struct{}, 2)
	echoed := make(chan string, 1)
	disconnected := make(chan struct{}, 1)

	task := l.ForEachAsync(func(ev NodeEvent) {
		if ev.Kind() != NodeEventNetwork {
			return
		}
		net := ev.Network()
		switch net.Kind() {
		case api.EventAccepted:
			server = net.Endpoint()
			connected <- struct{}{}
		case api.EventConnected:
			if net.Ok() {
				client = net.Endpoint()
				connected <- struct{}{}
			}
		case api.EventMessage:
			if net.Endpoint().Equal(server) {
				h.Network().Send(server, net.Data())
			} else {
				echoed <- string(net.Data())
			}
		case api.EventDisconnected:
			if net.Endpoint().Equal(server) {
				disconnected <- struct{}{}
			}
		}
	})
	defer func() {
		h.Stop()
		require.NoError(t, task.Wait())
	}()

	_, _, err = h.Network().Connect(api.FramedTcp, api.Socket(local))
	require.NoError(t, err)

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect")
	}

	status := h.Network().Send(client, []byte("echo-me"))
	require.Equal(t, api.SendStatusSent, status)

	select {
	case got := <-echoed:
		require.Equal(t, "echo-me", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	require.True(t, h.Network().Remove(client.ResourceID()))

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side disconnect")
	}
}

func TestSignalTimerFiresAndCancelPreventsDelivery(t *testing.T) {
	h, l, err := Split()
	require.NoError(t, err)
	defer h.Close()

	fired := make(chan string, 4)
	task := l.ForEachAsync(func(ev NodeEvent) {
		if ev.Kind() == NodeEventSignal {
			fired <- ev.Signal().(string)
		}
	})
	defer func() {
		h.Stop()
		require.NoError(t, task.Wait())
	}()

	id := h.Signals().SendWithTimer("cancel-me", 100*time.Millisecond)
	require.True(t, h.Signals().Cancel(id))

	h.Signals().SendWithTimer("fire-me", 10*time.Millisecond)

	select {
	case v := <-fired:
		require.Equal(t, "fire-me", v)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timer signal")
	}

	select {
	case v := <-fired:
		t.Fatalf("cancelled timer still fired: %v", v)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSignalPriorityInterleavingThroughSplitNode(t *testing.T) {
	h, l, err := Split()
	require.NoError(t, err)
	defer h.Close()

	var order []string
	done := make(chan struct{})
	task := l.ForEachAsync(func(ev NodeEvent) {
		if ev.Kind() != NodeEventSignal {
			return
		}
		order = append(order, ev.Signal().(string))
		if len(order) == 4 {
			close(done)
		}
	})
	defer func() {
		h.Stop()
		require.NoError(t, task.Wait())
	}()

	h.Signals().Send("normal-1")
	h.Signals().SendWithPriority("high-1")
	h.Signals().Send("normal-2")
	h.Signals().SendWithPriority("high-2")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all four signals")
	}
	require.Equal(t, []string{"high-2", "high-1", "normal-1", "normal-2"}, order)
}

func TestAsyncConnectFailureSurfacesAsUnokConnected(t *testing.T) {
	h, l, err := Split()
	require.NoError(t, err)
	defer h.Close()

	failed := make(chan struct{}, 1)
	task := l.ForEachAsync(func(ev NodeEvent) {
		if ev.Kind() != NodeEventNetwork {
			return
		}
		net := ev.Network()
		if net.Kind() == api.EventConnected && !net.Ok() {
			failed <- struct{}{}
		}
	})
	defer func() {
		h.Stop()
		require.NoError(t, task.Wait())
	}()

	// Port 1 on loopback is reserved and never accepts connections; the
	// handshake is refused almost immediately.
	_, _, err = h.Network().Connect(api.Tcp, api.Str("127.0.0.1:1"))
	require.NoError(t, err)

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for connect failure")
	}
}

func TestHandlerStopIsIdempotentAndUnblocksListener(t *testing.T) {
	h, l, err := Split()
	require.NoError(t, err)
	defer h.Close()

	task := l.ForEachAsync(func(NodeEvent) {})

	h.Stop()
	h.Stop() // must not panic or double-close

	require.NoError(t, task.Wait())
	require.False(t, h.IsRunning())
}
