/*
Package netlib is a small IPv4 networking core: a STUN message codec and the
candidate gathering phase of ICE, built on non-blocking UDP sockets.

Gathering is invoked as a library function:

	host, err := netlib.DiscoverHostCandidates()
	srflx := netlib.DiscoverServerCandidates()

Diagnostic verbosity is controlled by the LOGLEVEL environment variable,
e.g. LOGLEVEL=debug or LOGLEVEL=ice=debug,stun=warn.
*/
package netlib

import (
	"github.com/vcnet/netlib/internal/ice"
)

// A Candidate is an address/port pair that might serve as one endpoint of an
// ICE-negotiated session.
type Candidate = ice.Candidate

// A Gatherer discovers local ICE candidates. Override its fields before the
// first discovery call.
type Gatherer = ice.Gatherer

// NewGatherer returns a Gatherer with the default STUN server list and
// timeout.
func NewGatherer() *Gatherer {
	return ice.NewGatherer()
}

// DiscoverHostCandidates returns a host candidate for every non-loopback
// IPv4 address the machine's hostname resolves to.
func DiscoverHostCandidates() ([]Candidate, error) {
	return ice.DiscoverHostCandidates()
}

// DiscoverServerCandidates probes the default STUN servers and returns the
// server-reflexive candidates observed in their Binding responses.
func DiscoverServerCandidates() []Candidate {
	return ice.DiscoverServerCandidates()
}
