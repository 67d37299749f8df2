// File: internal/netcore/wsadapter.go
// Author: momentics <momentics@gmail.com>
//
// WebSocket driver: a connection-oriented transport layered on the
// same raw-fd accept/connect machinery as tcpadapter.go, with an
// RFC 6455 opening handshake (wshandshake.go) gating Accepted/
// Connected, and an RFC 6455 frame codec (wsframe.go) gating Message.
// Ping frames are answered inline; Close frames are echoed once, then
// the resource is torn down, matching the teacher's
// protocol/connection.go handleControl behavior.
package netcore

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/netcore/api"
	"github.com/momentics/netcore/internal/bufpool"
	"github.com/momentics/netcore/internal/netlog"
	"github.com/momentics/netcore/internal/poll"
)

type wsAdapter struct {
	baseDriver
	bufs *bufpool.Pool

	// listenOpts remembers each listener's WSOptions so accepted
	// connections inherit its MaxFrameSize override.
	listenOpts map[api.ResourceID]WSOptions
}

func newWSAdapter(p poll.Poll, bufs *bufpool.Pool) *wsAdapter {
	return &wsAdapter{baseDriver: newBaseDriver(api.Ws, p), bufs: bufs, listenOpts: make(map[api.ResourceID]WSOptions)}
}

func (d *wsAdapter) Listen(addr api.RemoteAddr) (api.ResourceID, net.Addr, error) {
	return d.ListenOpts(addr, WSOptions{})
}

// ListenOpts is Listen with explicit configuration, reached through
// Engine.ListenWS. See WSOptions for what TLSConfig does and does not do.
func (d *wsAdapter) ListenOpts(addr api.RemoteAddr, opts WSOptions) (api.ResourceID, net.Addr, error) {
	tcpAddr, _, _, err := resolveWS(addr)
	if err != nil {
		return 0, nil, api.Wrap(api.ErrKindAddressResolution, "ws listen", err)
	}

	fd, err := newNonblockingSocket(unix.AF_INET, unix.SOCK_STREAM)
	if err != nil {
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "ws socket", err)
	}
	sa, _, err := tcpToSockaddr(tcpAddr)
	if err != nil {
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "ws sockaddr", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "ws bind", err)
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "ws listen", err)
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
	d.listenOpts[id] = opts
	if err := d.poll.Register(fd, uint64(id), poll.InterestRead); err != nil {
		d.locals.remove(id)
		delete(d.listenOpts, id)
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "ws register", err)
	}
	return id, localAddr, nil
}

func (d *wsAdapter) Connect(addr api.RemoteAddr) (api.ResourceID, error) {
	return d.ConnectOpts(addr, WSOptions{})
}

// ConnectOpts is Connect with explicit configuration, reached through
// Engine.ConnectWS.
func (d *wsAdapter) ConnectOpts(addr api.RemoteAddr, opts WSOptions) (api.ResourceID, error) {
	tcpAddr, path, _, err := resolveWS(addr)
	if err != nil {
		return 0, api.Wrap(api.ErrKindAddressResolution, "ws connect", err)
	}
	fd, err := newNonblockingSocket(unix.AF_INET, unix.SOCK_STREAM)
	if err != nil {
		return 0, api.Wrap(api.ErrKindConnectFailure, "ws socket", err)
	}
	sa, _, err := tcpToSockaddr(tcpAddr)
	if err != nil {
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "ws sockaddr", err)
	}

	id := d.remoteGen.Generate()
	res := &netResource{
		id: id, addr: tcpAddr, fd: fd, backlog: newWriteBacklog(),
		wsCodec: &wsConnState{isServer: false, path: path, host: tcpAddr.String(), maxFrame: opts.MaxFrameSize},
	}
	res.bindAddr = localBoundTCPAddr(fd)
	d.remotes.put(res)

	err = unix.Connect(fd, sa)
	interest := poll.InterestWrite
	if err != nil && err != unix.EINPROGRESS {
		d.remotes.remove(id)
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "ws connect", err)
	}
	if err := d.poll.Register(fd, uint64(id), interest); err != nil {
		d.remotes.remove(id)
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "ws register", err)
	}
	return id, nil
}

func (d *wsAdapter) Send(id api.ResourceID, data []byte) api.SendStatus {
	res, ok := d.remotes.get(id)
	if !ok || res.closed || res.wsCodec == nil || !res.wsCodec.handshakeDone {
		return api.SendStatusResourceNotFound
	}
	if int64(len(data)) > res.wsCodec.effectiveMaxFrame() {
		return api.SendStatusMaxPacketSizeExceeded
	}
	frame := encodeWSFrame(nil, wsOpcodeBinary, data, !res.wsCodec.isServer)
	return d.writeOrBacklog(res, id, frame)
}

func (d *wsAdapter) writeOrBacklog(res *netResource, id api.ResourceID, data []byte) api.SendStatus {
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

func (d *wsAdapter) Remove(id api.ResourceID) bool {
	reg := d.remotes
	if id.IsLocal() {
		reg = d.locals
		delete(d.listenOpts, id)
	}
	res, ok := reg.remove(id)
	if !ok {
		return false
	}
	_ = d.poll.Deregister(res.fd)
	closeResource(res)
	return true
}

// IsReady overrides baseDriver's existence check: a Ws remote is only
// ready once its opening handshake has completed.
func (d *wsAdapter) IsReady(id api.ResourceID) (bool, bool) {
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
	return res.wsCodec != nil && res.wsCodec.handshakeDone, true
}

func (d *wsAdapter) Close() error {
	d.closeAll()
	return nil
}

func (d *wsAdapter) HandleEvent(ev poll.Event, emit func(api.NetEvent)) {
	id := api.ResourceID(ev.ID)
	if id.IsLocal() {
		d.handleListenerEvent(id, emit)
		return
	}
	d.handleRemoteEvent(id, ev, emit)
}

func (d *wsAdapter) handleListenerEvent(id api.ResourceID, emit func(api.NetEvent)) {
	listener, ok := d.locals.get(id)
	if !ok {
		return
	}
	for {
		fd, sa, err := unix.Accept4(listener.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err != unix.EAGAIN {
				netlog.Logger.Warn().Err(err).Msg("ws accept failed")
			}
			return
		}
		peerAddr := sockaddrToNetTCP(sa)
		remoteID := d.remoteGen.Generate()
		res := &netResource{
			id: remoteID, addr: peerAddr, fd: fd, ownerID: id, backlog: newWriteBacklog(),
			wsCodec: &wsConnState{isServer: true, maxFrame: d.listenOpts[id].MaxFrameSize},
		}
		d.remotes.put(res)
		if err := d.poll.Register(fd, uint64(remoteID), poll.InterestRead); err != nil {
			d.remotes.remove(remoteID)
			unix.Close(fd)
			continue
		}
		// Accepted fires only after the handshake completes; the raw
		// TCP accept is an implementation detail of Ws's transport.
	}
}

func (d *wsAdapter) handleRemoteEvent(id api.ResourceID, ev poll.Event, emit func(api.NetEvent)) {
	res, ok := d.remotes.get(id)
	if !ok || res.closed {
		return
	}
	endpoint := api.NewEndpoint(id, res.addr)
	codec := res.wsCodec

	if !res.backlog.empty() && ev.Writable {
		d.drainBacklog(res, id)
	}

	if ev.Error {
		if !codec.isServer && !codec.handshakeDone {
			emit(api.ConnectedEvent(endpoint, false))
		}
		d.teardown(res, id, endpoint, emit, codec.handshakeDone)
		return
	}

	if !codec.handshakeDone {
		if codec.isServer {
			if ev.Readable {
				d.continueServerHandshake(res, id, endpoint, emit)
			}
			return
		}
		if ev.Writable && len(codec.handshakeBuf) == 0 {
			req := buildClientHandshakeRequest(codec.host, codec.path)
			if _, err := unix.Write(res.fd, req); err != nil && err != unix.EAGAIN {
				emit(api.ConnectedEvent(endpoint, false))
				d.teardown(res, id, endpoint, emit, false)
				return
			}
			codec.handshakeBuf = []byte{} // marks the request as sent
			_ = d.poll.Reregister(res.fd, uint64(id), poll.InterestRead)
		}
		if ev.Readable {
			d.continueClientHandshake(res, id, endpoint, emit)
		}
		return
	}

	if ev.Readable {
		d.readFrames(res, id, endpoint, emit)
	}
}

func (d *wsAdapter) continueServerHandshake(res *netResource, id api.ResourceID, endpoint api.Endpoint, emit func(api.NetEvent)) {
	buf := make([]byte, 4096)
	n, err := unix.Read(res.fd, buf)
	if err != nil {
		if err != unix.EAGAIN {
			d.teardown(res, id, endpoint, emit, false)
		}
		return
	}
	if n == 0 {
		d.teardown(res, id, endpoint, emit, false)
		return
	}
	res.wsCodec.handshakeBuf = append(res.wsCodec.handshakeBuf, buf[:n]...)
	path, acceptKey, _, ok, err := parseServerHandshake(res.wsCodec.handshakeBuf)
	if err != nil {
		netlog.Logger.Warn().Err(err).Msg("ws handshake rejected")
		d.teardown(res, id, endpoint, emit, false)
		return
	}
	if !ok {
		return // need more bytes
	}
	res.wsCodec.path = path
	resp := buildServerHandshakeResponse(acceptKey)
	if _, err := unix.Write(res.fd, resp); err != nil && err != unix.EAGAIN {
		d.teardown(res, id, endpoint, emit, false)
		return
	}
	res.wsCodec.handshakeDone = true
	res.wsCodec.handshakeBuf = nil
	emit(api.AcceptedEvent(endpoint, res.ownerID))
}

func (d *wsAdapter) continueClientHandshake(res *netResource, id api.ResourceID, endpoint api.Endpoint, emit func(api.NetEvent)) {
	buf := make([]byte, 4096)
	n, err := unix.Read(res.fd, buf)
	if err != nil {
		if err != unix.EAGAIN {
			emit(api.ConnectedEvent(endpoint, false))
			d.teardown(res, id, endpoint, emit, false)
		}
		return
	}
	if n == 0 {
		emit(api.ConnectedEvent(endpoint, false))
		d.teardown(res, id, endpoint, emit, false)
		return
	}
	res.wsCodec.handshakeBuf = append(res.wsCodec.handshakeBuf, buf[:n]...)
	_, ok, err := parseClientHandshakeResponse(res.wsCodec.handshakeBuf)
	if err != nil {
		emit(api.ConnectedEvent(endpoint, false))
		d.teardown(res, id, endpoint, emit, false)
		return
	}
	if !ok {
		return
	}
	res.wsCodec.handshakeDone = true
	res.wsCodec.handshakeBuf = nil
	emit(api.ConnectedEvent(endpoint, true))
}

func (d *wsAdapter) readFrames(res *netResource, id api.ResourceID, endpoint api.Endpoint, emit func(api.NetEvent)) {
	buf := d.bufs.Get(64 << 10)
	defer d.bufs.Put(buf)
	for {
		n, err := unix.Read(res.fd, buf)
		if err != nil {
			if err != unix.EAGAIN {
				d.teardown(res, id, endpoint, emit, true)
			}
			return
		}
		if n == 0 {
			d.teardown(res, id, endpoint, emit, true)
			return
		}
		res.wsCodec.frameBuf = append(res.wsCodec.frameBuf, buf[:n]...)
		for {
			frame, consumed, ok, err := decodeWSFrame(res.wsCodec.frameBuf, res.wsCodec.effectiveMaxFrame())
			if err != nil {
				d.teardown(res, id, endpoint, emit, true)
				return
			}
			if !ok {
				break
			}
			res.wsCodec.frameBuf = res.wsCodec.frameBuf[consumed:]
			switch frame.opcode {
			case wsOpcodePing:
				pong := encodeWSFrame(nil, wsOpcodePong, frame.payload, !res.wsCodec.isServer)
				d.writeOrBacklog(res, id, pong)
			case wsOpcodePong:
			case wsOpcodeClose:
				echo := encodeWSFrame(nil, wsOpcodeClose, frame.payload, !res.wsCodec.isServer)
				_, _ = unix.Write(res.fd, echo)
				d.teardown(res, id, endpoint, emit, true)
				return
			default:
				emit(api.MessageEvent(endpoint, frame.payload))
			}
		}
		if n < len(buf) {
			return
		}
	}
}

func (d *wsAdapter) drainBacklog(res *netResource, id api.ResourceID) {
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

func (d *wsAdapter) teardown(res *netResource, id api.ResourceID, endpoint api.Endpoint, emit func(api.NetEvent), wasUp bool) {
	d.remotes.remove(id)
	_ = d.poll.Deregister(res.fd)
	closeResource(res)
	if wasUp {
		emit(api.DisconnectedEvent(endpoint))
	}
}
