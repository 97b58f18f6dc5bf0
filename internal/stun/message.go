// Package stun implements a codec for STUN messages (RFC 5389 subset):
// header framing, the bit-stuffed type field, and a closed set of attribute
// variants with 4-byte padding accounting. Message integrity, fingerprints
// and long-term credentials are not computed here; those attribute types
// round-trip as opaque payloads or land in the unknown-attribute list.
package stun

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/vcnet/netlib/internal/netaddr"
	"github.com/vcnet/netlib/internal/packet"
	"github.com/vcnet/netlib/internal/rng"
)

// Message classes, 2 bits.
type Class uint16

const (
	ClassRequest         Class = 0
	ClassIndication      Class = 1
	ClassSuccessResponse Class = 2
	ClassFailureResponse Class = 3
)

func (c Class) String() string {
	switch c {
	case ClassRequest:
		return "request"
	case ClassIndication:
		return "indication"
	case ClassSuccessResponse:
		return "success response"
	case ClassFailureResponse:
		return "failure response"
	}
	return fmt.Sprintf("class %d", uint16(c))
}

// Message methods, 12 bits.
type Method uint16

const (
	MethodBinding Method = 0x001

	// RFC 3489 Shared Secret, long gone but still recognized on decode.
	MethodSharedSecret Method = 0x002
)

const (
	MagicCookie  uint32 = 0x2112A442
	HeaderLength        = 20

	// TransactionIDLength is the size of the transaction ID in bytes.
	TransactionIDLength = 12
)

// Format of the STUN message type field. The two class bits are interleaved
// into the 12-bit method:
//
//	 0                 1
//	 2  3  4 5 6 7 8 9 0 1 2 3 4 5
//	+--+--+-+-+-+-+-+-+-+-+-+-+-+-+
//	|M |M |M|M|M|C|M|M|M|C|M|M|M|M|
//	|11|10|9|8|7|1|6|5|4|0|3|2|1|0|
//	+--+--+-+-+-+-+-+-+-+-+-+-+-+-+
const (
	classMask1  = 0x0100 // 0b0000000100000000
	classMask2  = 0x0010 // 0b0000000000010000
	methodMask1 = 0x3e00 // 0b0011111000000000
	methodMask2 = 0x00e0 // 0b0000000011100000
	methodMask3 = 0x000f // 0b0000000000001111
)

func composeType(class Class, method Method) uint16 {
	t := (uint16(class)<<7)&classMask1 | (uint16(class)<<4)&classMask2
	t |= (uint16(method)<<2)&methodMask1 | (uint16(method)<<1)&methodMask2 | (uint16(method) & methodMask3)
	return t
}

func decomposeType(t uint16) (Class, Method) {
	class := (t&classMask1)>>7 | (t&classMask2)>>4
	method := (t&methodMask1)>>2 | (t&methodMask2)>>1 | (t & methodMask3)
	return Class(class), Method(method)
}

// Message is one STUN message: header fields plus an ordered attribute list.
// Attribute types encountered during decoding that have no codec are
// preserved in UnknownTypes and their bytes skipped.
type Message struct {
	Class  Class
	Method Method

	// Byte length of the attribute section, NOT including the 20-byte
	// header. Maintained by AddAttribute/RemoveAttribute; set verbatim from
	// the wire on decode.
	Length uint16

	TransactionID [TransactionIDLength]byte

	attributes   []Attribute
	UnknownTypes []uint16
}

// New builds a message of the given class and method with a zero transaction
// ID. Out-of-range values are a programmer error.
func New(class Class, method Method) *Message {
	if class>>2 != 0 {
		panic(fmt.Sprintf("stun: invalid message class: %#x", uint16(class)))
	}
	if method>>12 != 0 {
		panic(fmt.Sprintf("stun: invalid method: %#x", uint16(method)))
	}
	return &Message{Class: class, Method: method}
}

// NewBindingRequest builds a Binding request with a fresh random transaction
// ID and no attributes.
func NewBindingRequest() *Message {
	m := New(ClassRequest, MethodBinding)
	m.RandomizeTransactionID()
	return m
}

func (m *Message) SetType(class Class, method Method) {
	m.Class = class
	m.Method = method
}

// SetRawType parses a wire-format type field, e.g. to turn a freshly read
// request into a response template. The top two bits must be zero and the
// method must be recognized.
func (m *Message) SetRawType(t uint16) error {
	if t>>14 != 0 {
		return errNotStun
	}
	class, method := decomposeType(t)
	switch method {
	case MethodBinding, MethodSharedSecret:
	default:
		return errors.Wrapf(errUnknownMethod, "method %#03x", uint16(method))
	}
	m.Class = class
	m.Method = method
	return nil
}

// RandomizeTransactionID draws a fresh 96-bit transaction ID.
func (m *Message) RandomizeTransactionID() {
	rng.Fill(m.TransactionID[:])
}

// AddAttribute appends the attribute and records its wire footprint in the
// message length. The attribute is owned by the message from here on.
func (m *Message) AddAttribute(a Attribute) {
	m.attributes = append(m.attributes, a)
	m.Length += uint16(footprint(a))
}

// RemoveAttribute removes the first attribute of the given type. Reports
// whether one was found.
func (m *Message) RemoveAttribute(typ uint16) bool {
	for i, a := range m.attributes {
		if a.Type() == typ {
			m.attributes = append(m.attributes[:i], m.attributes[i+1:]...)
			m.Length -= uint16(footprint(a))
			return true
		}
	}
	return false
}

// Attributes yields the decoded attributes in wire order.
func (m *Message) Attributes() []Attribute {
	return m.attributes
}

func (m *Message) findAttribute(typ uint16) Attribute {
	for _, a := range m.attributes {
		if a.Type() == typ {
			return a
		}
	}
	return nil
}

// AddressAttr returns the first address-layout attribute of the given type,
// or nil if the type does not use the address layout or is absent.
func (m *Message) AddressAttr(typ uint16) *AddressAttribute {
	if a, ok := m.findAttribute(typ).(*AddressAttribute); ok {
		return a
	}
	return nil
}

// XorAddressAttr returns the XOR-MAPPED-ADDRESS attribute, or nil.
func (m *Message) XorAddressAttr() *XorAddressAttribute {
	if a, ok := m.findAttribute(AttrXorMappedAddress).(*XorAddressAttribute); ok {
		return a
	}
	return nil
}

// StringAttr returns the first string-layout attribute of the given type,
// or nil.
func (m *Message) StringAttr(typ uint16) *StringAttribute {
	if a, ok := m.findAttribute(typ).(*StringAttribute); ok {
		return a
	}
	return nil
}

// ErrorAttr returns the ERROR-CODE attribute, or nil.
func (m *Message) ErrorAttr() *ErrorAttribute {
	if a, ok := m.findAttribute(AttrErrorCode).(*ErrorAttribute); ok {
		return a
	}
	return nil
}

// Uint16ListAttr returns the UNKNOWN-ATTRIBUTES attribute, or nil.
func (m *Message) Uint16ListAttr() *Uint16ListAttribute {
	if a, ok := m.findAttribute(AttrUnknownAttributes).(*Uint16ListAttribute); ok {
		return a
	}
	return nil
}

// IntAttr returns the first integer attribute of the given type, or nil.
func (m *Message) IntAttr(typ uint16) *IntAttribute {
	if a, ok := m.findAttribute(typ).(*IntAttribute); ok {
		return a
	}
	return nil
}

// MappedAddress returns the first MAPPED-ADDRESS or XOR-MAPPED-ADDRESS
// value carried by the message.
func (m *Message) MappedAddress() (netaddr.Ipv4Address, bool) {
	for _, a := range m.attributes {
		switch attr := a.(type) {
		case *AddressAttribute:
			if attr.Type() == AttrMappedAddress {
				return attr.Address, true
			}
		case *XorAddressAttribute:
			return attr.Address, true
		}
	}
	return netaddr.Ipv4Address{}, false
}

// WriteTo serializes the message. On any failure the writer is rewound to
// the offset captured at message start and 0 is returned.
func (m *Message) WriteTo(w *packet.Writer) (int, error) {
	start := w.Offset()
	n, err := m.encode(w)
	if err != nil {
		w.Reset(start)
		return 0, err
	}
	return n, nil
}

func (m *Message) encode(w *packet.Writer) (int, error) {
	start := w.Offset()
	if err := w.WriteUint16(composeType(m.Class, m.Method)); err != nil {
		return 0, err
	}
	if err := w.WriteUint16(m.Length); err != nil {
		return 0, err
	}
	if err := w.WriteUint32(MagicCookie); err != nil {
		return 0, err
	}
	if err := w.WriteSlice(m.TransactionID[:]); err != nil {
		return 0, err
	}
	for _, a := range m.attributes {
		if err := w.WriteUint16(a.Type()); err != nil {
			return 0, err
		}
		if err := w.WriteUint16(a.Length()); err != nil {
			return 0, err
		}
		if err := a.writeTo(w); err != nil {
			return 0, err
		}
	}
	return w.Offset() - start, nil
}

// Bytes serializes the message into a freshly sized buffer.
func (m *Message) Bytes() []byte {
	w := packet.NewWriterSize(HeaderLength + int(m.Length))
	if _, err := m.WriteTo(w); err != nil {
		// The buffer is sized from m.Length, so this means an attribute lied
		// about its footprint.
		panic(err)
	}
	return w.Bytes()
}

// ReadMessage decodes one STUN message from the reader. The reader's cursor
// ends just past the attribute section on success.
func ReadMessage(r *packet.Reader) (*Message, error) {
	if err := r.CheckRemaining(HeaderLength); err != nil {
		return nil, errors.Wrap(errTruncated, "header")
	}

	rawType, _ := r.ReadUint16()
	if rawType>>14 != 0 {
		// RTP/RTCP or other non-STUN traffic multiplexed onto the port.
		return nil, errNotStun
	}

	m := new(Message)
	if err := m.SetRawType(rawType); err != nil {
		return nil, err
	}

	length, _ := r.ReadUint16()
	if length%4 != 0 {
		return nil, errors.Wrapf(errMalformed, "attribute section length %d is not a multiple of 4", length)
	}

	cookie, _ := r.ReadUint32()
	if cookie != MagicCookie {
		return nil, errors.Wrapf(errBadCookie, "%#08x", cookie)
	}

	if err := r.ReadFull(m.TransactionID[:]); err != nil {
		return nil, errors.Wrap(errTruncated, "transaction id")
	}

	if r.Remaining() < int(length) {
		return nil, errors.Wrapf(errTruncated, "declared %d attribute bytes, %d remain", length, r.Remaining())
	}
	m.Length = length

	start := r.Offset()
	for r.Offset()-start < int(length) {
		typ, err := r.ReadUint16()
		if err != nil {
			return nil, errors.Wrap(errTruncated, "attribute header")
		}
		attrLength, err := r.ReadUint16()
		if err != nil {
			return nil, errors.Wrap(errTruncated, "attribute header")
		}

		factory, ok := attrFactories[typ]
		if !ok {
			// Quarantine: remember the type, skip the payload rounded up to
			// the 4-byte boundary.
			m.UnknownTypes = append(m.UnknownTypes, typ)
			if err := r.Skip(int(attrLength) + pad4(attrLength)); err != nil {
				return nil, errors.Wrapf(errTruncated, "%s payload", attrName(typ))
			}
			continue
		}

		a := factory()
		if err := a.readFrom(r, attrLength); err != nil {
			return nil, err
		}
		m.attributes = append(m.attributes, a)
	}

	if r.Offset()-start != int(length) {
		return nil, errors.Wrapf(errMalformed, "attributes span %d bytes, declared %d", r.Offset()-start, length)
	}

	return m, nil
}

// ParseMessage decodes a STUN message from raw bytes.
func ParseMessage(data []byte) (*Message, error) {
	return ReadMessage(packet.NewReader(data))
}

func (m *Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "STUN %s", m.Class)
	if m.Method != MethodBinding {
		fmt.Fprintf(&b, ", method %#03x", uint16(m.Method))
	}
	fmt.Fprintf(&b, ", tid=%x", m.TransactionID)
	for _, a := range m.attributes {
		b.WriteString(", ")
		b.WriteString(a.String())
	}
	for _, typ := range m.UnknownTypes {
		fmt.Fprintf(&b, ", unknown %#04x", typ)
	}
	return b.String()
}
