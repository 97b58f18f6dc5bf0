package ice

import (
	"encoding/base32"
	"fmt"
	"hash/fnv"

	"github.com/vcnet/netlib/internal/netaddr"
)

// A local ICE candidate produced by the gathering phase.
// See [RFC8445 §5.3] for a definition of fields.
type Candidate struct {
	Address netaddr.Ipv4Address

	// Either "host" or "srflx".
	Type string

	Priority   uint32
	Foundation string

	// For a server-reflexive candidate, the local address the mapping was
	// observed for and the STUN server that reported it.
	Base   netaddr.Ipv4Address
	Server string
}

const (
	hostType  = "host"
	srflxType = "srflx"
)

// Only a single component (RTP) is gathered for.
const component = 1

func makeHostCandidate(addr netaddr.Ipv4Address) Candidate {
	return Candidate{
		Address:    addr,
		Type:       hostType,
		Priority:   computePriority(hostType),
		Foundation: computeFoundation(hostType, addr, ""),
	}
}

func makeServerReflexiveCandidate(mapped, base netaddr.Ipv4Address, server string) Candidate {
	return Candidate{
		Address:    mapped,
		Type:       srflxType,
		Priority:   computePriority(srflxType),
		Foundation: computeFoundation(srflxType, base, server),
		Base:       base,
		Server:     server,
	}
}

// [RFC8445 §5.1.2] Prioritizing Candidates
func computePriority(typ string) uint32 {
	var typePref int
	switch typ {
	case hostType:
		typePref = 126
	case srflxType:
		typePref = 110
	default:
		panic("illegal candidate type: " + typ)
	}

	localPref := 65535
	return uint32((typePref << 24) + (localPref << 8) + (256 - component))
}

// [RFC8445 §5.1.1.3] The foundation must be unique for each tuple of
// (candidate type, base IP address, protocol, STUN server).
func computeFoundation(typ string, base netaddr.Ipv4Address, server string) string {
	fingerprint := fmt.Sprintf("%s/udp/%s", typ, base.DottedQuad())
	if server != "" {
		fingerprint += "/" + server
	}
	hash := fnv.New64()
	hash.Write([]byte(fingerprint))
	return base32.StdEncoding.EncodeToString(hash.Sum(nil))[0:8]
}

func (c Candidate) String() string {
	return fmt.Sprintf("candidate:%s %d udp %d %s %d typ %s",
		c.Foundation, component, c.Priority, c.Address.DottedQuad(), c.Address.Port, c.Type)
}
