package ice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcnet/netlib/internal/netaddr"
	"github.com/vcnet/netlib/internal/stun"
)

type fakeSocket struct {
	local    netaddr.Ipv4Address
	sent     [][]byte
	sentTo   []netaddr.Ipv4Address
	response []byte
	peer     netaddr.Ipv4Address
	closed   bool
}

func (f *fakeSocket) Send(data []byte, to netaddr.Ipv4Address) (int, error) {
	copied := make([]byte, len(data))
	copy(copied, data)
	f.sent = append(f.sent, copied)
	f.sentTo = append(f.sentTo, to)
	return len(data), nil
}

func (f *fakeSocket) Recv(buf []byte) (int, netaddr.Ipv4Address, error) {
	n := copy(buf, f.response)
	return n, f.peer, nil
}

func (f *fakeSocket) LocalAddr() netaddr.Ipv4Address { return f.local }

func (f *fakeSocket) Close() error {
	f.closed = true
	return nil
}

// fakeSet reports every member ready on the first wait and times out on the
// second, mimicking servers that all answer at once.
type fakeSet struct {
	members map[bindingSocket]bool
	woken   bool
}

func newFakeSet() *fakeSet {
	return &fakeSet{members: make(map[bindingSocket]bool)}
}

func (f *fakeSet) Add(s bindingSocket)    { f.members[s] = true }
func (f *fakeSet) Remove(s bindingSocket) { delete(f.members, s) }
func (f *fakeSet) Len() int               { return len(f.members) }

func (f *fakeSet) WaitAny(timeout time.Duration) ([]bindingSocket, error) {
	if f.woken {
		return nil, nil
	}
	f.woken = true
	var ready []bindingSocket
	for s := range f.members {
		ready = append(ready, s)
	}
	return ready, nil
}

func successResponse(t *testing.T, mapped netaddr.Ipv4Address) []byte {
	msg := stun.New(stun.ClassSuccessResponse, stun.MethodBinding)
	msg.RandomizeTransactionID()
	attr := stun.NewXorAddressAttribute()
	attr.SetIP(mapped.IP)
	attr.SetPort(mapped.Port)
	msg.AddAttribute(attr)
	return msg.Bytes()
}

func newTestGatherer(resolve func(host, service string) ([]netaddr.Ipv4Address, error),
	open func() (bindingSocket, error)) *Gatherer {
	return &Gatherer{
		Servers: []string{"stun.one.test", "stun.two.test"},
		Timeout: 10 * time.Millisecond,
		resolve: resolve,
		open:    open,
		newSet:  func() readinessSet { return newFakeSet() },
	}
}

func TestDiscoverHostCandidatesExcludesLoopback(t *testing.T) {
	g := newTestGatherer(func(host, service string) ([]netaddr.Ipv4Address, error) {
		assert.Equal(t, "", service)
		return []netaddr.Ipv4Address{
			netaddr.Loopback,
			{IP: 0x0a010203},
			{IP: 0x7f000002}, // still loopback space
			{IP: 0xc0a80105},
		}, nil
	}, nil)

	candidates, err := g.DiscoverHostCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.Equal(t, hostType, c.Type)
		assert.Zero(t, c.Address.Port)
		assert.False(t, c.Address.IsLoopback())
	}
	assert.Equal(t, uint32(0x0a010203), candidates[0].Address.IP)
	assert.Equal(t, uint32(0xc0a80105), candidates[1].Address.IP)
}

func TestDiscoverServerCandidates(t *testing.T) {
	serverIPs := map[string][]netaddr.Ipv4Address{
		"stun.one.test": {{IP: 0x01010101, Port: 3478}, {IP: 0x01010102, Port: 3478}},
		"stun.two.test": {{IP: 0x02020202, Port: 3478}},
	}
	mapped := netaddr.Ipv4Address{IP: 0xac1744e6, Port: 0x9dfc}

	var sockets []*fakeSocket
	g := newTestGatherer(func(host, service string) ([]netaddr.Ipv4Address, error) {
		assert.Equal(t, stunService, service)
		return serverIPs[host], nil
	}, nil)
	g.open = func() (bindingSocket, error) {
		s := &fakeSocket{
			local:    netaddr.Ipv4Address{IP: 0x0a000001, Port: 40000 + uint16(len(sockets))},
			response: successResponse(t, mapped),
		}
		sockets = append(sockets, s)
		return s, nil
	}

	candidates := g.DiscoverServerCandidates()

	// One socket and exactly one Binding request per resolved IP.
	require.Len(t, sockets, 3)
	sentTo := make(map[netaddr.Ipv4Address]int)
	for _, s := range sockets {
		require.Len(t, s.sent, 1)
		sentTo[s.sentTo[0]]++
		assert.True(t, s.closed)

		// The request on the wire is a Binding request with no attributes.
		req, err := stun.ParseMessage(s.sent[0])
		require.NoError(t, err)
		assert.Equal(t, stun.ClassRequest, req.Class)
		assert.Equal(t, stun.MethodBinding, req.Method)
		assert.Zero(t, req.Length)
	}
	assert.Len(t, sentTo, 3)

	// One candidate per successful response.
	require.Len(t, candidates, 3)
	for _, c := range candidates {
		assert.Equal(t, srflxType, c.Type)
		assert.Equal(t, mapped, c.Address)
		assert.NotEmpty(t, c.Server)
	}
}

func TestDiscoverServerCandidatesDropsFailures(t *testing.T) {
	errorResponse := func() []byte {
		msg := stun.New(stun.ClassFailureResponse, stun.MethodBinding)
		msg.AddAttribute(stun.NewErrorAttribute(420, "Unknown Attribute"))
		return msg.Bytes()
	}

	responses := [][]byte{
		errorResponse(),
		{0xde, 0xad, 0xbe, 0xef}, // not STUN at all
		successResponse(t, netaddr.Ipv4Address{IP: 0x08080404, Port: 1234}),
	}

	var opened int
	g := newTestGatherer(func(host, service string) ([]netaddr.Ipv4Address, error) {
		if host == "stun.one.test" {
			return []netaddr.Ipv4Address{
				{IP: 0x01010101, Port: 3478},
				{IP: 0x01010102, Port: 3478},
				{IP: 0x01010103, Port: 3478},
			}, nil
		}
		return nil, nil
	}, nil)
	g.open = func() (bindingSocket, error) {
		s := &fakeSocket{response: responses[opened]}
		opened++
		return s, nil
	}

	candidates := g.DiscoverServerCandidates()
	require.Len(t, candidates, 1)
	assert.Equal(t, uint32(0x08080404), candidates[0].Address.IP)
	assert.Equal(t, uint16(1234), candidates[0].Address.Port)
}

func TestDiscoverServerCandidatesResolverEmpty(t *testing.T) {
	g := newTestGatherer(func(host, service string) ([]netaddr.Ipv4Address, error) {
		return nil, nil
	}, func() (bindingSocket, error) {
		t.Fatal("no socket should be opened when nothing resolves")
		return nil, nil
	})

	assert.Empty(t, g.DiscoverServerCandidates())
}

func TestCandidatePriorities(t *testing.T) {
	host := makeHostCandidate(netaddr.Ipv4Address{IP: 0x0a000001})
	srflx := makeServerReflexiveCandidate(
		netaddr.Ipv4Address{IP: 0x08080808, Port: 3478},
		netaddr.Ipv4Address{IP: 0x0a000001, Port: 54321},
		"1.2.3.4")

	assert.True(t, host.Priority > srflx.Priority)
	assert.NotEqual(t, host.Foundation, srflx.Foundation)
	assert.Contains(t, host.String(), "typ host")
	assert.Contains(t, srflx.String(), "typ srflx")
}
