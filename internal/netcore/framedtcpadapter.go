// File: internal/netcore/framedtcpadapter.go
// Author: momentics <momentics@gmail.com>
//
// FramedTcp is byte-stream Tcp plus the self-describing length-prefix
// codec in framing.go, so its driver is simply tcpAdapter constructed
// with framed=true: the shared read/write path in tcpadapter.go
// branches on that flag to run inbound bytes through a frameDecoder
// and to prefix outbound payloads before writing.
package netcore

import (
	"github.com/momentics/netcore/api"
	"github.com/momentics/netcore/internal/bufpool"
	"github.com/momentics/netcore/internal/poll"
)

func newFramedTCPAdapter(p poll.Poll, bufs *bufpool.Pool) *tcpAdapter {
	return newTCPAdapter(api.FramedTcp, p, bufs, true)
}
