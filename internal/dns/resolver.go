// Package dns resolves hostnames to IPv4 addresses for a named service.
// Queries go over the wire to the system's configured nameservers; names the
// nameservers cannot answer (the local hostname, /etc/hosts entries) fall
// back to the OS resolver. Results are cached briefly so that repeated
// lookups of the same server list within one gathering run stay cheap.
package dns

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"

	"github.com/vcnet/netlib/internal/logging"
	"github.com/vcnet/netlib/internal/netaddr"
)

var log = logging.DefaultLogger.WithTag("dns")

// Hint restricts a resolution to a socket type, mirroring getaddrinfo's
// ai_socktype. It selects the service table used for port lookups.
type Hint int

const (
	HintUDP Hint = iota
	HintTCP
)

func (h Hint) Network() string {
	if h == HintTCP {
		return "tcp"
	}
	return "udp"
}

const (
	defaultTimeout = 2 * time.Second

	cacheTTL  = time.Minute
	cacheSize = 64
)

type cacheEntry struct {
	addrs   []netaddr.Ipv4Address
	expires time.Time
}

// Resolver answers (host, service) queries with every matching IPv4 address.
type Resolver struct {
	// Nameservers queried in order, first answer wins.
	Servers []netaddr.Ipv4Address

	// Per-nameserver wait for a response.
	Timeout time.Duration

	// Overridable for tests.
	lookup func(host string) ([]netaddr.Ipv4Address, error)

	mu    sync.Mutex
	cache *lru.Cache
}

// NewResolver reads the nameserver list from /etc/resolv.conf.
func NewResolver() *Resolver {
	r := &Resolver{
		Servers: systemNameservers(),
		Timeout: defaultTimeout,
		cache:   lru.New(cacheSize),
	}
	r.lookup = r.lookupHost
	return r
}

var defaultResolver = NewResolver()

// Resolve returns all IPv4 addresses offered for host, with the port derived
// from service under the given hint. An empty result means no match; it is
// not an error. Duplicate answers are preserved.
func Resolve(host, service string, hint Hint) ([]netaddr.Ipv4Address, error) {
	return defaultResolver.Resolve(host, service, hint)
}

// ResolveUDP resolves host for a UDP service.
func ResolveUDP(host, service string) ([]netaddr.Ipv4Address, error) {
	return defaultResolver.Resolve(host, service, HintUDP)
}

// ResolveTCP resolves host for a TCP service.
func ResolveTCP(host, service string) ([]netaddr.Ipv4Address, error) {
	return defaultResolver.Resolve(host, service, HintTCP)
}

func (r *Resolver) Resolve(host, service string, hint Hint) ([]netaddr.Ipv4Address, error) {
	port, err := lookupPort(service, hint)
	if err != nil {
		return nil, err
	}

	key := host + "|" + service + "|" + hint.Network()
	if addrs, ok := r.cached(key); ok {
		return addrs, nil
	}

	ips, err := r.lookup(host)
	if err != nil {
		return nil, err
	}

	addrs := make([]netaddr.Ipv4Address, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, netaddr.Ipv4Address{IP: ip.IP, Port: port})
	}
	if len(addrs) == 0 {
		log.Info("no IPv4 addresses for %q", host)
	} else {
		log.Debug("resolved %q to %d IPv4 address(es)", host, len(addrs))
	}

	r.store(key, addrs)
	return addrs, nil
}

func (r *Resolver) cached(key string) ([]netaddr.Ipv4Address, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache.Get(lru.Key(key))
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if time.Now().After(entry.expires) {
		r.cache.Remove(lru.Key(key))
		return nil, false
	}
	return entry.addrs, true
}

func (r *Resolver) store(key string, addrs []netaddr.Ipv4Address) {
	r.mu.Lock()
	r.cache.Add(lru.Key(key), cacheEntry{addrs, time.Now().Add(cacheTTL)})
	r.mu.Unlock()
}

// lookupHost resolves a hostname to its IPv4 addresses: literals
// short-circuit, then the configured nameservers are queried on the wire,
// then the OS resolver has the last word.
func (r *Resolver) lookupHost(host string) ([]netaddr.Ipv4Address, error) {
	if literal, err := netaddr.ParseIPv4(host); err == nil {
		return []netaddr.Ipv4Address{literal}, nil
	}

	if ips, err := r.queryNameservers(host); err != nil {
		log.Debug("wire query for %q failed: %v", host, err)
	} else if len(ips) > 0 {
		return ips, nil
	}

	return r.fallbackLookup(host)
}

// fallbackLookup asks the OS resolver, which also consults /etc/hosts and
// handles the machine's own hostname.
func (r *Resolver) fallbackLookup(host string) ([]netaddr.Ipv4Address, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout())
	defer cancel()

	found, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		if dnsErr, ok := err.(*net.DNSError); ok && dnsErr.IsNotFound {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "resolve %q", host)
	}

	var ips []netaddr.Ipv4Address
	for _, addr := range found {
		ip4 := addr.IP.To4()
		if ip4 == nil {
			continue
		}
		var b [4]byte
		copy(b[:], ip4)
		ips = append(ips, netaddr.FromBytes(b, 0))
	}
	return ips, nil
}

func (r *Resolver) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return defaultTimeout
}

func lookupPort(service string, hint Hint) (uint16, error) {
	if service == "" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(service, 10, 16); err == nil {
		return uint16(n), nil
	}
	port, err := net.LookupPort(hint.Network(), service)
	if err != nil {
		return 0, errors.Wrapf(err, "look up %s service %q", hint.Network(), service)
	}
	return uint16(port), nil
}
