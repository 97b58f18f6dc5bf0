// Package socket provides non-blocking IPv4 UDP sockets and a readiness set
// multiplexed with select(2). Callers above this boundary deal exclusively in
// host byte order; marshaling to sockaddr form happens here.
package socket

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/vcnet/netlib/internal/logging"
	"github.com/vcnet/netlib/internal/netaddr"
)

var log = logging.DefaultLogger.WithTag("socket")

// Socket is a non-blocking UDPv4 socket bound to an ephemeral local port.
type Socket struct {
	fd int
}

// Open creates a non-blocking UDPv4 socket and binds it to an ephemeral
// port on all interfaces.
func Open() (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, errors.Wrap(err, "create UDP socket")
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "set non-blocking mode")
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: 0}); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "bind ephemeral port")
	}
	return &Socket{fd: fd}, nil
}

func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// Send transmits data to the given remote address. A partial or refused send
// is reported as an error; would-block counts as a send failure here, since
// UDP sends on an unsaturated socket are not expected to block.
func (s *Socket) Send(data []byte, to netaddr.Ipv4Address) (int, error) {
	sa := &unix.SockaddrInet4{Port: int(to.Port)}
	sa.Addr = to.Bytes()
	if err := unix.Sendto(s.fd, data, 0, sa); err != nil {
		return 0, errors.Wrapf(err, "send %d bytes to %s", len(data), to)
	}
	return len(data), nil
}

// Recv reads one datagram into buf. Returns the byte count and the sender's
// address. When no datagram is pending the socket reports (0, zero address,
// nil): not having data is not a failure on a non-blocking socket.
func (s *Socket) Recv(buf []byte) (int, netaddr.Ipv4Address, error) {
	n, from, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, netaddr.Ipv4Address{}, nil
		}
		return 0, netaddr.Ipv4Address{}, errors.Wrap(err, "receive packet")
	}
	var peer netaddr.Ipv4Address
	if sa, ok := from.(*unix.SockaddrInet4); ok {
		peer = netaddr.FromBytes(sa.Addr, uint16(sa.Port))
	}
	return n, peer, nil
}

// RecvTimeout waits up to timeout for a datagram, then reads it. Expiry is
// not a failure: it yields (0, zero address, nil). A non-positive timeout
// blocks until a datagram arrives.
func (s *Socket) RecvTimeout(buf []byte, timeout time.Duration) (int, netaddr.Ipv4Address, error) {
	ready, err := waitReadable(s.fd, timeout)
	if err != nil {
		return 0, netaddr.Ipv4Address{}, err
	}
	if !ready {
		log.Debug("receive wait timed out after %s", timeout)
		return 0, netaddr.Ipv4Address{}, nil
	}
	return s.Recv(buf)
}

// LocalAddr reports the locally bound address. A lookup failure yields the
// zero address.
func (s *Socket) LocalAddr() netaddr.Ipv4Address {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		log.Error("local address lookup failed: %v", err)
		return netaddr.Ipv4Address{}
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return netaddr.Ipv4Address{}
	}
	return netaddr.FromBytes(in4.Addr, uint16(in4.Port))
}

// Fd exposes the descriptor for readiness multiplexing.
func (s *Socket) Fd() int {
	return s.fd
}

func waitReadable(fd int, timeout time.Duration) (bool, error) {
	var fds unix.FdSet
	fds.Zero()
	fds.Set(fd)

	var tv *unix.Timeval
	if timeout > 0 {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}
	n, err := unix.Select(fd+1, &fds, nil, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, errors.Wrap(err, "wait for readable socket")
	}
	return n > 0, nil
}
