package netaddr

import (
	"fmt"
	"strconv"
	"strings"
)

// An IPv4 address/port pair. Both fields are kept in host byte order;
// conversion to network byte order happens only at the socket layer and in
// the STUN address codecs.
type Ipv4Address struct {
	IP   uint32
	Port uint16
}

// Loopback is 127.0.0.1 with an unset port.
var Loopback = Ipv4Address{IP: 0x7f000001}

// ParseIPv4 converts a dotted-quad string to a host-order Ipv4Address with
// port 0.
func ParseIPv4(s string) (Ipv4Address, error) {
	var addr Ipv4Address
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return addr, fmt.Errorf("invalid IPv4 address: %q", s)
	}
	for _, part := range parts {
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return addr, fmt.Errorf("invalid IPv4 address: %q", s)
		}
		addr.IP = addr.IP<<8 | uint32(n)
	}
	return addr, nil
}

// Bytes returns the address in network byte order, as used on the wire.
func (a Ipv4Address) Bytes() [4]byte {
	return [4]byte{byte(a.IP >> 24), byte(a.IP >> 16), byte(a.IP >> 8), byte(a.IP)}
}

// FromBytes converts a network-order 4-byte IP and host-order port.
func FromBytes(ip [4]byte, port uint16) Ipv4Address {
	return Ipv4Address{
		IP:   uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3]),
		Port: port,
	}
}

func (a Ipv4Address) IsLoopback() bool {
	return a.IP>>24 == 127
}

func (a Ipv4Address) IsZero() bool {
	return a.IP == 0 && a.Port == 0
}

// DottedQuad renders only the IP part.
func (a Ipv4Address) DottedQuad() string {
	b := a.Bytes()
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

func (a Ipv4Address) String() string {
	return fmt.Sprintf("%s:%d", a.DottedQuad(), a.Port)
}
