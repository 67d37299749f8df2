// File: internal/netcore/tcpadapter.go
// Author: momentics <momentics@gmail.com>
//
// Raw-byte-stream TCP driver. Every socket is created, connected and
// accepted directly through golang.org/x/sys/unix so the only blocking
// point in the whole read/write path is the engine's shared poller,
// grounded on the teacher's syscall-level epoll reactor
// (reactor/epoll_reactor.go) generalized from "one fd, one callback"
// to the adapter-qualified resource table.
package netcore

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/netcore/api"
	"github.com/momentics/netcore/internal/bufpool"
	"github.com/momentics/netcore/internal/netlog"
	"github.com/momentics/netcore/internal/poll"
)

// tcpAdapter implements Driver for Tcp and, embedded, for FramedTcp
// (see framedtcpadapter.go): the only difference between the two is
// whether HandleEvent's read path runs payload bytes through a
// frameDecoder before emitting Message events.
type tcpAdapter struct {
	baseDriver
	bufs   *bufpool.Pool
	framed bool
}

func newTCPAdapter(t api.Transport, p poll.Poll, bufs *bufpool.Pool, framed bool) *tcpAdapter {
	return &tcpAdapter{baseDriver: newBaseDriver(t, p), bufs: bufs, framed: framed}
}

func (d *tcpAdapter) Listen(addr api.RemoteAddr) (api.ResourceID, net.Addr, error) {
	return d.ListenOpts(addr, TCPOptions{})
}

// ListenOpts is Listen with explicit socket-level configuration, reached
// through Engine.ListenTCP/ListenFramedTCP rather than the plain Driver
// interface.
func (d *tcpAdapter) ListenOpts(addr api.RemoteAddr, opts TCPOptions) (api.ResourceID, net.Addr, error) {
	tcpAddr, err := resolveTCP(addr)
	if err != nil {
		return 0, nil, api.Wrap(api.ErrKindAddressResolution, "tcp listen", err)
	}
	fd, err := newNonblockingSocket(unix.AF_INET, unix.SOCK_STREAM)
	if err != nil {
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "tcp socket", err)
	}
	if err := opts.apply(fd); err != nil {
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "tcp options", err)
	}
	sa, _, err := tcpToSockaddr(tcpAddr)
	if err != nil {
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "tcp sockaddr", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "tcp bind", err)
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "tcp listen", err)
	}
	boundSA, err := unix.Getsockname(fd)
	var localAddr net.Addr = tcpAddr
	if err == nil {
		if a := sockaddrToNetTCP(boundSA); a != nil {
			localAddr = a
		}
	}

	id := d.localGen.Generate()
	res := &netResource{id: id, addr: localAddr, fd: fd}
	d.locals.put(res)
	if err := d.poll.Register(fd, uint64(id), poll.InterestRead); err != nil {
		d.locals.remove(id)
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "tcp register", err)
	}
	return id, localAddr, nil
}

func (d *tcpAdapter) Connect(addr api.RemoteAddr) (api.ResourceID, error) {
	return d.ConnectOpts(addr, TCPOptions{})
}

// ConnectOpts is Connect with explicit socket-level configuration,
// reached through Engine.ConnectTCP/ConnectFramedTCP.
func (d *tcpAdapter) ConnectOpts(addr api.RemoteAddr, opts TCPOptions) (api.ResourceID, error) {
	tcpAddr, err := resolveTCP(addr)
	if err != nil {
		return 0, api.Wrap(api.ErrKindAddressResolution, "tcp connect", err)
	}
	fd, err := newNonblockingSocket(unix.AF_INET, unix.SOCK_STREAM)
	if err != nil {
		return 0, api.Wrap(api.ErrKindConnectFailure, "tcp socket", err)
	}
	if err := opts.apply(fd); err != nil {
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "tcp options", err)
	}
	if opts.SourceAddress != "" {
		if srcSA, _, saErr := tcpToSockaddr(&net.TCPAddr{IP: net.ParseIP(opts.SourceAddress)}); saErr == nil {
			_ = unix.Bind(fd, srcSA)
		}
	}
	sa, _, err := tcpToSockaddr(tcpAddr)
	if err != nil {
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "tcp sockaddr", err)
	}

	id := d.remoteGen.Generate()
	res := &netResource{id: id, addr: tcpAddr, fd: fd, backlog: newWriteBacklog()}
	res.bindAddr = localBoundTCPAddr(fd)
	d.remotes.put(res)

	err = unix.Connect(fd, sa)
	interest := poll.InterestWrite
	if err != nil && err != unix.EINPROGRESS {
		d.remotes.remove(id)
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "tcp connect", err)
	}
	if err := d.poll.Register(fd, uint64(id), interest); err != nil {
		d.remotes.remove(id)
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "tcp register", err)
	}
	return id, nil
}

func (d *tcpAdapter) Send(id api.ResourceID, data []byte) api.SendStatus {
	res, ok := d.remotes.get(id)
	if !ok || res.closed {
		return api.SendStatusResourceNotFound
	}
	if d.framed {
		if int64(len(data)) > api.MaxFramedTcpMessageSize {
			return api.SendStatusMaxPacketSizeExceeded
		}
		data = encodeMessage(nil, data)
	}

	res.writeMu.Lock()
	defer res.writeMu.Unlock()
	if res.backlog.full() {
		return api.SendStatusResourceNotAvailable
	}
	if !res.backlog.empty() {
		res.backlog.push(data)
		return api.SendStatusSent
	}
	n, err := unix.Write(res.fd, data)
	if err != nil && err != unix.EAGAIN {
		return api.SendStatusResourceNotAvailable
	}
	if n < len(data) {
		if n < 0 {
			n = 0
		}
		remaining := make([]byte, len(data)-n)
		copy(remaining, data[n:])
		res.backlog.push(remaining)
		_ = d.poll.Reregister(res.fd, uint64(id), poll.InterestRead|poll.InterestWrite)
	}
	return api.SendStatusSent
}

func (d *tcpAdapter) Remove(id api.ResourceID) bool {
	reg := d.remotes
	if id.IsLocal() {
		reg = d.locals
	}
	res, ok := reg.remove(id)
	if !ok {
		return false
	}
	_ = d.poll.Deregister(res.fd)
	closeResource(res)
	return true
}

// IsReady overrides baseDriver's existence check for remotes: an
// outbound Tcp/FramedTcp remote is only ready once its Connected event
// has fired, not merely while its connect is still in flight; a remote
// accepted on a listener is ready as soon as it exists.
func (d *tcpAdapter) IsReady(id api.ResourceID) (bool, bool) {
	if id.IsLocal() {
		return d.baseDriver.IsReady(id)
	}
	res, ok := d.remotes.get(id)
	if !ok {
		return false, false
	}
	if res.closed {
		return false, true
	}
	return res.ownerID != 0 || res.connectedEmitted(), true
}

func (d *tcpAdapter) Close() error {
	d.closeAll()
	return nil
}

func (d *tcpAdapter) HandleEvent(ev poll.Event, emit func(api.NetEvent)) {
	id := api.ResourceID(ev.ID)
	if id.IsLocal() {
		d.handleListenerEvent(id, emit)
		return
	}
	d.handleRemoteEvent(id, ev, emit)
}

func (d *tcpAdapter) handleListenerEvent(id api.ResourceID, emit func(api.NetEvent)) {
	listener, ok := d.locals.get(id)
	if !ok {
		return
	}
	for {
		fd, sa, err := unix.Accept4(listener.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err != unix.EAGAIN {
				netlog.Logger.Warn().Err(err).Msg("tcp accept failed")
			}
			return
		}
		peerAddr := sockaddrToNetTCP(sa)
		remoteID := d.remoteGen.Generate()
		res := &netResource{id: remoteID, addr: peerAddr, fd: fd, ownerID: id, backlog: newWriteBacklog()}
		d.remotes.put(res)
		if err := d.poll.Register(fd, uint64(remoteID), poll.InterestRead); err != nil {
			d.remotes.remove(remoteID)
			unix.Close(fd)
			continue
		}
		emit(api.AcceptedEvent(api.NewEndpoint(remoteID, peerAddr), id))
	}
}

func (d *tcpAdapter) handleRemoteEvent(id api.ResourceID, ev poll.Event, emit func(api.NetEvent)) {
	res, ok := d.remotes.get(id)
	if !ok || res.closed {
		return
	}
	endpoint := api.NewEndpoint(id, res.addr)

	if !res.backlog.empty() && ev.Writable {
		d.drainBacklog(res, id)
	}

	if ev.Error {
		d.failConnect(res, id, endpoint, emit)
		return
	}

	// A connect completion is distinguished from steady-state writable
	// readiness by ownerID being unset and the resource never having
	// seen a successful read/connect yet.
	if ev.Writable && res.ownerID == 0 && !res.connectedEmitted() {
		errno, _ := unix.GetsockoptInt(res.fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if errno != 0 {
			d.failConnect(res, id, endpoint, emit)
			return
		}
		res.markConnected()
		emit(api.ConnectedEvent(endpoint, true))
		_ = d.poll.Reregister(res.fd, uint64(id), poll.InterestRead)
	}

	if ev.Readable {
		d.readLoop(res, id, endpoint, emit)
	}
}

func (d *tcpAdapter) failConnect(res *netResource, id api.ResourceID, endpoint api.Endpoint, emit func(api.NetEvent)) {
	if res.ownerID == 0 && !res.connectedEmitted() {
		emit(api.ConnectedEvent(endpoint, false))
	} else {
		emit(api.DisconnectedEvent(endpoint))
	}
	d.remotes.remove(id)
	_ = d.poll.Deregister(res.fd)
	closeResource(res)
}

func (d *tcpAdapter) drainBacklog(res *netResource, id api.ResourceID) {
	res.writeMu.Lock()
	defer res.writeMu.Unlock()
	for {
		chunk, ok := res.backlog.pop()
		if !ok {
			_ = d.poll.Reregister(res.fd, uint64(id), poll.InterestRead)
			return
		}
		n, err := unix.Write(res.fd, chunk)
		if err != nil && err != unix.EAGAIN {
			return
		}
		if n < len(chunk) {
			if n < 0 {
				n = 0
			}
			remaining := make([]byte, len(chunk)-n)
			copy(remaining, chunk[n:])
			res.backlog.pushFront(remaining)
			return
		}
	}
}

func (d *tcpAdapter) readLoop(res *netResource, id api.ResourceID, endpoint api.Endpoint, emit func(api.NetEvent)) {
	buf := d.bufs.Get(64 << 10)
	defer d.bufs.Put(buf)
	for {
		n, err := unix.Read(res.fd, buf)
		if err != nil {
			if err != unix.EAGAIN {
				d.remotes.remove(id)
				_ = d.poll.Deregister(res.fd)
				closeResource(res)
				emit(api.DisconnectedEvent(endpoint))
			}
			return
		}
		if n == 0 {
			d.remotes.remove(id)
			_ = d.poll.Deregister(res.fd)
			closeResource(res)
			emit(api.DisconnectedEvent(endpoint))
			return
		}
		data := buf[:n]
		if d.framed {
			res.decoder.feed(data, func(msg []byte) {
				emit(api.MessageEvent(endpoint, msg))
			})
		} else {
			emit(api.MessageEvent(endpoint, data))
		}
		if n < len(buf) {
			return
		}
	}
}
