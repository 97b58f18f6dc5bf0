// Package ice implements the candidate gathering phase of Interactive
// Connectivity Establishment (RFC 8445) over IPv4 UDP: host candidates from
// the machine's own addresses, and server-reflexive candidates obtained by
// fanning STUN Binding requests out to a list of public servers and
// multiplexing the responses under a wall-clock timeout.
package ice

import (
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/vcnet/netlib/internal/dns"
	"github.com/vcnet/netlib/internal/logging"
	"github.com/vcnet/netlib/internal/netaddr"
	"github.com/vcnet/netlib/internal/packet"
	"github.com/vcnet/netlib/internal/socket"
	"github.com/vcnet/netlib/internal/stun"
)

var log = logging.DefaultLogger.WithTag("ice")

// DefaultServers are well-known public STUN servers, all on the standard
// port.
var DefaultServers = []string{
	"stun.12connect.com",
	"stun.12voip.com",
	"stun.1und1.de",
	"stun.2talk.co.nz",
	"stun.2talk.com",
	"stun.3clogic.com",
	"stun.3cx.com",
}

const stunService = "3478"

// Per readiness-wait cycle, not cumulative.
const defaultWaitTimeout = time.Second

// A Binding success response with a mapped address fits comfortably.
const responseBufferSize = 92

// bindingSocket is the slice of the socket surface the gatherer needs.
// *socket.Socket implements it; tests substitute fakes.
type bindingSocket interface {
	Send(data []byte, to netaddr.Ipv4Address) (int, error)
	Recv(buf []byte) (int, netaddr.Ipv4Address, error)
	LocalAddr() netaddr.Ipv4Address
	Close() error
}

// readinessSet mirrors socket.Set over bindingSocket.
type readinessSet interface {
	Add(s bindingSocket)
	Remove(s bindingSocket)
	Len() int
	WaitAny(timeout time.Duration) ([]bindingSocket, error)
}

type selectSet struct {
	set *socket.Set
}

func (s selectSet) Add(b bindingSocket)    { s.set.Add(b.(*socket.Socket)) }
func (s selectSet) Remove(b bindingSocket) { s.set.Remove(b.(*socket.Socket)) }
func (s selectSet) Len() int               { return s.set.Len() }

func (s selectSet) WaitAny(timeout time.Duration) ([]bindingSocket, error) {
	ready, err := s.set.WaitAny(timeout)
	if err != nil {
		return nil, err
	}
	out := make([]bindingSocket, len(ready))
	for i, sock := range ready {
		out[i] = sock
	}
	return out, nil
}

// Gatherer discovers local ICE candidates. The zero value is not usable;
// construct with NewGatherer and override fields before the first discovery
// call.
type Gatherer struct {
	// STUN server hostnames, queried on the standard port.
	Servers []string

	// Wall-clock timeout for each readiness wait.
	Timeout time.Duration

	resolve func(host, service string) ([]netaddr.Ipv4Address, error)
	open    func() (bindingSocket, error)
	newSet  func() readinessSet
}

func NewGatherer() *Gatherer {
	return &Gatherer{
		Servers: DefaultServers,
		Timeout: defaultWaitTimeout,
		resolve: dns.ResolveUDP,
		open: func() (bindingSocket, error) {
			return socket.Open()
		},
		newSet: func() readinessSet {
			return selectSet{socket.NewSet()}
		},
	}
}

// DiscoverHostCandidates resolves the machine's own hostname and returns a
// host candidate (port 0) for every non-loopback IPv4 address.
func DiscoverHostCandidates() ([]Candidate, error) {
	return NewGatherer().DiscoverHostCandidates()
}

// DiscoverServerCandidates probes the default STUN server list and returns
// the server-reflexive candidates harvested from the responses.
func DiscoverServerCandidates() []Candidate {
	return NewGatherer().DiscoverServerCandidates()
}

func (g *Gatherer) DiscoverHostCandidates() ([]Candidate, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, errors.Wrap(err, "get local hostname")
	}

	addrs, err := g.resolve(host, "")
	if err != nil {
		return nil, errors.Wrapf(err, "resolve local hostname %q", host)
	}

	var candidates []Candidate
	for _, addr := range addrs {
		if addr.IsLoopback() {
			continue
		}
		c := makeHostCandidate(addr)
		log.Info("host candidate: %s", c)
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// DiscoverServerCandidates sends one Binding request per resolved server IP,
// then collects responses as sockets become readable. Each socket is retired
// after its first response; the loop ends when no sockets remain or a wait
// cycle times out with nothing ready.
func (g *Gatherer) DiscoverServerCandidates() []Candidate {
	set := g.newSet()
	enrolled := make(map[bindingSocket]netaddr.Ipv4Address)

	for _, server := range g.Servers {
		addrs, err := g.resolve(server, stunService)
		if err != nil {
			log.Warn("resolve %q failed: %v", server, err)
			continue
		}
		for _, addr := range addrs {
			sock := g.sendBindingRequest(server, addr)
			if sock == nil {
				continue
			}
			set.Add(sock)
			enrolled[sock] = addr
		}
	}

	var candidates []Candidate
	buf := make([]byte, responseBufferSize)
	for set.Len() > 0 {
		ready, err := set.WaitAny(g.Timeout)
		if err != nil {
			log.Error("readiness wait failed: %v", err)
			break
		}
		if len(ready) == 0 {
			log.Info("timed out waiting for STUN responses")
			break
		}
		for _, sock := range ready {
			candidates = append(candidates, g.collectResponse(sock, enrolled[sock], buf)...)
			set.Remove(sock)
			sock.Close()
			delete(enrolled, sock)
		}
	}

	// Retire sockets whose servers never answered.
	for sock := range enrolled {
		sock.Close()
	}
	return candidates
}

// sendBindingRequest opens a socket and fires a fresh Binding request at the
// server. Returns nil (with the socket closed) on any failure.
func (g *Gatherer) sendBindingRequest(server string, addr netaddr.Ipv4Address) bindingSocket {
	sock, err := g.open()
	if err != nil {
		log.Error("socket for %q failed: %v", server, err)
		return nil
	}

	req := stun.NewBindingRequest()
	w := packet.NewWriterSize(responseBufferSize)
	n, err := req.WriteTo(w)
	if err != nil {
		log.Error("encode binding request: %v", err)
		sock.Close()
		return nil
	}

	sent, err := sock.Send(w.Bytes(), addr)
	if err != nil || sent < n {
		log.Warn("send to %q at %s failed: %v", server, addr, err)
		sock.Close()
		return nil
	}

	log.Info("sent binding request to %q at %s", server, addr)
	return sock
}

// collectResponse drains one datagram from a ready socket and harvests
// candidates from its mapped-address attributes.
func (g *Gatherer) collectResponse(sock bindingSocket, server netaddr.Ipv4Address, buf []byte) []Candidate {
	n, peer, err := sock.Recv(buf)
	if err != nil {
		log.Error("receive from %s failed: %v", server, err)
		return nil
	}
	if n == 0 {
		// Readable with nothing to read: spurious wakeup.
		return nil
	}

	msg, err := stun.ParseMessage(buf[:n])
	if err != nil {
		log.Info("dropping packet from %s: %v", peer, err)
		return nil
	}
	if msg.Class != stun.ClassSuccessResponse || msg.Method != stun.MethodBinding {
		log.Info("dropping unexpected message from %s: %s", peer, msg)
		return nil
	}
	log.Info("binding succeeded for %s", peer)

	base := sock.LocalAddr()
	var candidates []Candidate
	for _, attr := range msg.Attributes() {
		log.Info("got %s", attr)
		switch a := attr.(type) {
		case *stun.AddressAttribute:
			if a.Type() == stun.AttrMappedAddress {
				candidates = append(candidates, makeServerReflexiveCandidate(a.Address, base, server.DottedQuad()))
			}
		case *stun.XorAddressAttribute:
			candidates = append(candidates, makeServerReflexiveCandidate(a.Address, base, server.DottedQuad()))
		}
	}
	for _, typ := range msg.UnknownTypes {
		log.Info("got unrecognized attribute %#04x", typ)
	}
	return candidates
}
