package dns

import (
	"github.com/pkg/errors"
	"golang.org/x/net/dns/dnsmessage"

	"github.com/vcnet/netlib/internal/netaddr"
	"github.com/vcnet/netlib/internal/rng"
	"github.com/vcnet/netlib/internal/socket"
)

// Large enough for a full answer section; responses are truncated by the
// server beyond 512 bytes anyway (no EDNS here).
const maxResponseSize = 512

const nameserverPort = 53

// queryNameservers sends an A query for host to each configured nameserver
// in turn and returns the answers of the first one that responds.
func (r *Resolver) queryNameservers(host string) ([]netaddr.Ipv4Address, error) {
	if len(r.Servers) == 0 {
		return nil, errors.New("no nameservers configured")
	}

	id := rng.Uint16(0, 0xffff)
	query, err := buildQuery(id, host)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, server := range r.Servers {
		ips, err := r.queryOne(server, query, id)
		if err != nil {
			log.Debug("nameserver %s: %v", server, err)
			lastErr = err
			continue
		}
		return ips, nil
	}
	return nil, lastErr
}

func (r *Resolver) queryOne(server netaddr.Ipv4Address, query []byte, id uint16) ([]netaddr.Ipv4Address, error) {
	sock, err := socket.Open()
	if err != nil {
		return nil, err
	}
	defer sock.Close()

	if _, err := sock.Send(query, server); err != nil {
		return nil, err
	}

	buf := make([]byte, maxResponseSize)
	n, _, err := sock.RecvTimeout(buf, r.timeout())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.Errorf("no response from %s", server)
	}

	return parseAnswers(buf[:n], id)
}

func buildQuery(id uint16, host string) ([]byte, error) {
	name, err := dnsmessage.NewName(host + ".")
	if err != nil {
		return nil, errors.Wrapf(err, "bad domain name %q", host)
	}

	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{
		ID:               id,
		RecursionDesired: true,
	})
	b.EnableCompression()
	if err := b.StartQuestions(); err != nil {
		return nil, err
	}
	err = b.Question(dnsmessage.Question{
		Name:  name,
		Type:  dnsmessage.TypeA,
		Class: dnsmessage.ClassINET,
	})
	if err != nil {
		return nil, err
	}
	return b.Finish()
}

// parseAnswers extracts every A record from a response, in answer order and
// with duplicates preserved.
func parseAnswers(msg []byte, id uint16) ([]netaddr.Ipv4Address, error) {
	var p dnsmessage.Parser
	hdr, err := p.Start(msg)
	if err != nil {
		return nil, errors.Wrap(err, "invalid DNS response")
	}
	if hdr.ID != id {
		return nil, errors.Errorf("response ID %#04x does not match query %#04x", hdr.ID, id)
	}
	if !hdr.Response {
		return nil, errors.New("response flag not set")
	}
	if hdr.RCode != dnsmessage.RCodeSuccess {
		// NXDOMAIN and friends: no match, not a failure.
		return nil, nil
	}

	if err := p.SkipAllQuestions(); err != nil {
		return nil, errors.Wrap(err, "invalid question section")
	}

	var ips []netaddr.Ipv4Address
	for {
		h, err := p.AnswerHeader()
		if err == dnsmessage.ErrSectionDone {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "invalid answer section")
		}

		if h.Type != dnsmessage.TypeA || h.Class != dnsmessage.ClassINET {
			if err := p.SkipAnswer(); err != nil {
				return nil, errors.Wrap(err, "invalid answer section")
			}
			continue
		}

		res, err := p.AResource()
		if err != nil {
			return nil, errors.Wrap(err, "invalid A record")
		}
		ips = append(ips, netaddr.FromBytes(res.A, 0))
	}
	return ips, nil
}
