package dns

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/vcnet/netlib/internal/netaddr"
)

const resolvConfPath = "/etc/resolv.conf"

// systemNameservers parses the nameserver directives from /etc/resolv.conf.
// IPv6 nameservers are skipped; an unreadable file yields an empty list, in
// which case resolution relies on the OS fallback.
func systemNameservers() []netaddr.Ipv4Address {
	f, err := os.Open(resolvConfPath)
	if err != nil {
		log.Debug("cannot read %s: %v", resolvConfPath, err)
		return nil
	}
	defer f.Close()
	return parseResolvConf(f)
}

func parseResolvConf(f io.Reader) []netaddr.Ipv4Address {
	var servers []netaddr.Ipv4Address
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		servers = append(servers, parseResolvConfLine(scanner.Text())...)
	}
	return servers
}

func parseResolvConfLine(line string) []netaddr.Ipv4Address {
	if i := strings.IndexAny(line, "#;"); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "nameserver" {
		return nil
	}
	addr, err := netaddr.ParseIPv4(fields[1])
	if err != nil {
		return nil
	}
	addr.Port = nameserverPort
	return []netaddr.Ipv4Address{addr}
}
