// File: internal/netcore/udpadapter.go
// Author: momentics <momentics@gmail.com>
//
// Connectionless datagram driver. A bound local resource answers
// every peer that has ever sent it a datagram through one shared fd
// (sendto, keyed by the peer's address); a "connected" remote resource
// is a dedicated socket bound to one peer via connect(2), which lets
// the kernel deliver ICMP "port unreachable" as a socket error instead
// of silently dropping the datagram. Grounded on the accept-loop
// structure of tcpadapter.go, generalized from stream to datagram I/O,
// and on the original source's adapters/udp.rs for which syscalls a
// UDP adapter needs (recvfrom/sendto plus a connected variant).
package netcore

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/netcore/api"
	"github.com/momentics/netcore/internal/bufpool"
	"github.com/momentics/netcore/internal/netlog"
	"github.com/momentics/netcore/internal/poll"
)

type udpAdapter struct {
	baseDriver
	bufs *bufpool.Pool

	// peers maps a bound listener's id to the peer-address -> remote
	// resource table of passive (recvfrom-discovered) remotes, so that
	// repeated datagrams from the same peer resolve to the same id.
	peers map[api.ResourceID]map[string]api.ResourceID
}

func newUDPAdapter(p poll.Poll, bufs *bufpool.Pool) *udpAdapter {
	return &udpAdapter{
		baseDriver: newBaseDriver(api.Udp, p),
		bufs:       bufs,
		peers:      make(map[api.ResourceID]map[string]api.ResourceID),
	}
}

func (d *udpAdapter) Listen(addr api.RemoteAddr) (api.ResourceID, net.Addr, error) {
	return d.ListenOpts(addr, UDPOptions{})
}

// ListenOpts is Listen with explicit socket-level configuration, reached
// through Engine.ListenUDP.
func (d *udpAdapter) ListenOpts(addr api.RemoteAddr, opts UDPOptions) (api.ResourceID, net.Addr, error) {
	udpAddr, err := resolveUDP(addr)
	if err != nil {
		return 0, nil, api.Wrap(api.ErrKindAddressResolution, "udp listen", err)
	}
	fd, err := newNonblockingSocket(unix.AF_INET, unix.SOCK_DGRAM)
	if err != nil {
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "udp socket", err)
	}
	if err := opts.apply(fd); err != nil {
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "udp options", err)
	}
	sa, _, err := udpToSockaddr(udpAddr)
	if err != nil {
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "udp sockaddr", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "udp bind", err)
	}
	if udpAddr.IP != nil && udpAddr.IP.IsMulticast() {
		if err := joinMulticastGroup(fd, udpAddr.IP); err != nil {
			unix.Close(fd)
			return 0, nil, api.Wrap(api.ErrKindBindFailure, "udp join multicast group", err)
		}
	}
	boundSA, err := unix.Getsockname(fd)
	var localAddr net.Addr = udpAddr
	if err == nil {
		if a := sockaddrToNetUDP(boundSA); a != nil {
			localAddr = a
		}
	}

	id := d.localGen.Generate()
	res := &netResource{id: id, addr: localAddr, fd: fd}
	d.locals.put(res)
	d.peers[id] = make(map[string]api.ResourceID)
	if err := d.poll.Register(fd, uint64(id), poll.InterestRead); err != nil {
		d.locals.remove(id)
		delete(d.peers, id)
		unix.Close(fd)
		return 0, nil, api.Wrap(api.ErrKindBindFailure, "udp register", err)
	}
	return id, localAddr, nil
}

// Connect opens a dedicated, kernel-filtered socket for one peer so
// ICMP errors surface per the adapter, rather than joining the shared
// listener socket's passive peer table.
func (d *udpAdapter) Connect(addr api.RemoteAddr) (api.ResourceID, error) {
	return d.ConnectOpts(addr, UDPOptions{})
}

// ConnectOpts is Connect with explicit socket-level configuration,
// reached through Engine.ConnectUDP.
func (d *udpAdapter) ConnectOpts(addr api.RemoteAddr, opts UDPOptions) (api.ResourceID, error) {
	udpAddr, err := resolveUDP(addr)
	if err != nil {
		return 0, api.Wrap(api.ErrKindAddressResolution, "udp connect", err)
	}
	fd, err := newNonblockingSocket(unix.AF_INET, unix.SOCK_DGRAM)
	if err != nil {
		return 0, api.Wrap(api.ErrKindConnectFailure, "udp socket", err)
	}
	if err := opts.apply(fd); err != nil {
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "udp options", err)
	}
	if opts.SourceAddress != "" {
		if srcSA, _, saErr := udpToSockaddr(&net.UDPAddr{IP: net.ParseIP(opts.SourceAddress)}); saErr == nil {
			_ = unix.Bind(fd, srcSA)
		}
	}
	sa, _, err := udpToSockaddr(udpAddr)
	if err != nil {
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "udp sockaddr", err)
	}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "udp connect", err)
	}

	id := d.remoteGen.Generate()
	res := &netResource{id: id, addr: udpAddr, fd: fd}
	res.bindAddr = localBoundUDPAddr(fd)
	res.markConnected()
	d.remotes.put(res)
	if err := d.poll.Register(fd, uint64(id), poll.InterestRead); err != nil {
		d.remotes.remove(id)
		unix.Close(fd)
		return 0, api.Wrap(api.ErrKindConnectFailure, "udp register", err)
	}
	return id, nil
}

func (d *udpAdapter) Send(id api.ResourceID, data []byte) api.SendStatus {
	if len(data) > api.MaxUDPNetworkPayloadLen {
		return api.SendStatusMaxPacketSizeExceeded
	}
	res, ok := d.remotes.get(id)
	if !ok || res.closed {
		return api.SendStatusResourceNotFound
	}

	var err error
	if res.connectedEmitted() {
		// A dedicated, connect(2)'d socket: plain write targets the
		// single peer it is bound to.
		_, err = unix.Write(res.fd, data)
	} else {
		// A passive remote discovered via recvfrom on the shared
		// listener socket: reply must name the peer explicitly.
		sa, _, saErr := udpToSockaddr(res.addr.(*net.UDPAddr))
		if saErr != nil {
			return api.SendStatusResourceNotAvailable
		}
		err = unix.Sendto(res.fd, data, 0, sa)
	}
	if err != nil {
		// An ICMP "connection refused" on a connected UDP socket is
		// delivered as ECONNREFUSED on the next send; it is consumed
		// here rather than reported, since from the caller's point of
		// view the datagram was handed to the kernel successfully.
		if err != unix.ECONNREFUSED && err != unix.EAGAIN {
			return api.SendStatusResourceNotAvailable
		}
	}
	return api.SendStatusSent
}

func (d *udpAdapter) Remove(id api.ResourceID) bool {
	if id.IsRemote() {
		res, ok := d.remotes.remove(id)
		if !ok {
			return false
		}
		if res.connectedEmitted() {
			_ = d.poll.Deregister(res.fd)
			closeResource(res)
		} else if peerTable, ok := d.peers[res.ownerID]; ok {
			delete(peerTable, res.addr.String())
		}
		return true
	}
	res, ok := d.locals.remove(id)
	if !ok {
		return false
	}
	if udpAddr, ok := res.addr.(*net.UDPAddr); ok && udpAddr.IP.IsMulticast() {
		_ = leaveMulticastGroup(res.fd, udpAddr.IP)
	}
	for _, peerID := range d.peers[id] {
		d.remotes.remove(peerID)
	}
	delete(d.peers, id)
	_ = d.poll.Deregister(res.fd)
	closeResource(res)
	return true
}

func (d *udpAdapter) Close() error {
	d.closeAll()
	return nil
}

func (d *udpAdapter) HandleEvent(ev poll.Event, emit func(api.NetEvent)) {
	id := api.ResourceID(ev.ID)
	if id.IsLocal() {
		d.handleListenerDatagrams(id, emit)
		return
	}
	d.handleConnectedDatagrams(id, emit)
}

func (d *udpAdapter) handleListenerDatagrams(id api.ResourceID, emit func(api.NetEvent)) {
	listener, ok := d.locals.get(id)
	if !ok {
		return
	}
	buf := d.bufs.Get(api.MaxUDPNetworkPayloadLen)
	defer d.bufs.Put(buf)
	for {
		n, sa, err := unix.Recvfrom(listener.fd, buf, 0)
		if err != nil {
			if err != unix.EAGAIN {
				netlog.Logger.Warn().Err(err).Msg("udp recvfrom failed")
			}
			return
		}
		peerAddr := sockaddrToNetUDP(sa)
		peerKey := peerAddr.String()
		peerTable := d.peers[id]
		remoteID, known := peerTable[peerKey]
		if !known {
			remoteID = d.remoteGen.Generate()
			res := &netResource{id: remoteID, addr: peerAddr, fd: listener.fd, ownerID: id}
			d.remotes.put(res)
			peerTable[peerKey] = remoteID
		}
		endpoint := api.NewEndpoint(remoteID, peerAddr)
		emit(api.MessageEvent(endpoint, buf[:n]))
	}
}

func (d *udpAdapter) handleConnectedDatagrams(id api.ResourceID, emit func(api.NetEvent)) {
	res, ok := d.remotes.get(id)
	if !ok || res.closed {
		return
	}
	endpoint := api.NewEndpoint(id, res.addr)
	buf := d.bufs.Get(api.MaxUDPNetworkPayloadLen)
	defer d.bufs.Put(buf)
	for {
		n, err := unix.Read(res.fd, buf)
		if err != nil {
			if err != unix.EAGAIN && err != unix.ECONNREFUSED {
				netlog.Logger.Warn().Err(err).Msg("udp read failed")
			}
			return
		}
		emit(api.MessageEvent(endpoint, buf[:n]))
	}
}
