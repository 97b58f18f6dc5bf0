package stun

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/vcnet/netlib/internal/netaddr"
	"github.com/vcnet/netlib/internal/packet"
)

// Attribute type registry. Comprehension-optional types (>= 0x8000) follow
// RFC 5389; the DEPR_* codes come from RFC 3489 and still appear in the wild.
const (
	AttrMappedAddress     uint16 = 0x0001
	AttrResponseAddress   uint16 = 0x0002 // deprecated
	AttrSourceAddress     uint16 = 0x0004 // deprecated
	AttrChangedAddress    uint16 = 0x0005 // deprecated
	AttrUsername          uint16 = 0x0006
	AttrPassword          uint16 = 0x0007 // deprecated
	AttrErrorCode         uint16 = 0x0009
	AttrUnknownAttributes uint16 = 0x000A
	AttrReflectedFrom     uint16 = 0x000B // deprecated
	AttrRealm             uint16 = 0x0014
	AttrNonce             uint16 = 0x0015
	AttrXorMappedAddress  uint16 = 0x0020
	AttrPriority          uint16 = 0x0024
	AttrSoftware          uint16 = 0x8022
	AttrAlternateServer   uint16 = 0x8023
)

const familyIPv4 = 0x01

// Attribute is one decoded STUN attribute. The set of implementations is
// closed: the message codec dispatches on the 16-bit wire type through
// attrFactories, and the read/write methods stay unexported.
//
// readFrom assumes the 4-byte type/length header was already consumed, and
// consumes exactly Length()+Padding() bytes on success; on failure it leaves
// the cursor where it started. writeTo emits the payload and zero padding
// only; the message codec writes the header.
type Attribute interface {
	Type() uint16

	// Length of the payload in bytes, excluding padding.
	Length() uint16

	// Padding bytes needed to round the payload up to a multiple of 4.
	Padding() int

	readFrom(r *packet.Reader, length uint16) error
	writeTo(w *packet.Writer) error

	String() string
}

// pad4 returns the number of extra bytes needed to pad the given length to
// a 4-byte boundary: 0, 1, 2, or 3.
func pad4(n uint16) int {
	return -int(n) & 3
}

// footprint is the attribute's total wire size: header + payload + padding.
func footprint(a Attribute) int {
	return 4 + int(a.Length()) + a.Padding()
}

var attrFactories = map[uint16]func() Attribute{
	AttrMappedAddress:     func() Attribute { return &AddressAttribute{typ: AttrMappedAddress} },
	AttrResponseAddress:   func() Attribute { return &AddressAttribute{typ: AttrResponseAddress} },
	AttrSourceAddress:     func() Attribute { return &AddressAttribute{typ: AttrSourceAddress} },
	AttrChangedAddress:    func() Attribute { return &AddressAttribute{typ: AttrChangedAddress} },
	AttrReflectedFrom:     func() Attribute { return &AddressAttribute{typ: AttrReflectedFrom} },
	AttrAlternateServer:   func() Attribute { return &AddressAttribute{typ: AttrAlternateServer} },
	AttrXorMappedAddress:  func() Attribute { return new(XorAddressAttribute) },
	AttrUsername:          func() Attribute { return &StringAttribute{typ: AttrUsername} },
	AttrPassword:          func() Attribute { return &StringAttribute{typ: AttrPassword} },
	AttrRealm:             func() Attribute { return &StringAttribute{typ: AttrRealm} },
	AttrNonce:             func() Attribute { return &StringAttribute{typ: AttrNonce} },
	AttrSoftware:          func() Attribute { return &StringAttribute{typ: AttrSoftware} },
	AttrErrorCode:         func() Attribute { return new(ErrorAttribute) },
	AttrUnknownAttributes: func() Attribute { return new(Uint16ListAttribute) },
	AttrPriority:          func() Attribute { return &IntAttribute{typ: AttrPriority, width: 4} },
}

var attrNames = map[uint16]string{
	AttrMappedAddress:     "MAPPED-ADDRESS",
	AttrResponseAddress:   "RESPONSE-ADDRESS",
	AttrSourceAddress:     "SOURCE-ADDRESS",
	AttrChangedAddress:    "CHANGED-ADDRESS",
	AttrUsername:          "USERNAME",
	AttrPassword:          "PASSWORD",
	AttrErrorCode:         "ERROR-CODE",
	AttrUnknownAttributes: "UNKNOWN-ATTRIBUTES",
	AttrReflectedFrom:     "REFLECTED-FROM",
	AttrRealm:             "REALM",
	AttrNonce:             "NONCE",
	AttrXorMappedAddress:  "XOR-MAPPED-ADDRESS",
	AttrPriority:          "PRIORITY",
	AttrSoftware:          "SOFTWARE",
	AttrAlternateServer:   "ALTERNATE-SERVER",
}

func attrName(typ uint16) string {
	if name, ok := attrNames[typ]; ok {
		return name
	}
	return fmt.Sprintf("attribute %#04x", typ)
}

// AddressAttribute holds the fixed 8-byte IPv4 address payload shared by
// MAPPED-ADDRESS, ALTERNATE-SERVER and the deprecated RFC 3489 address
// attributes. The address is kept in host byte order.
type AddressAttribute struct {
	typ     uint16
	Address netaddr.Ipv4Address
}

// NewAddressAttribute builds an empty address attribute of the given type.
// The type must use the 8-byte address layout.
func NewAddressAttribute(typ uint16) (*AddressAttribute, error) {
	switch typ {
	case AttrMappedAddress, AttrResponseAddress, AttrSourceAddress,
		AttrChangedAddress, AttrReflectedFrom, AttrAlternateServer:
		return &AddressAttribute{typ: typ}, nil
	}
	return nil, errors.Errorf("stun: %s does not use the address layout", attrName(typ))
}

func (a *AddressAttribute) Type() uint16   { return a.typ }
func (a *AddressAttribute) Length() uint16 { return 8 }
func (a *AddressAttribute) Padding() int   { return 0 }

func (a *AddressAttribute) SetIP(ip uint32)     { a.Address.IP = ip }
func (a *AddressAttribute) SetPort(port uint16) { a.Address.Port = port }

func (a *AddressAttribute) readFrom(r *packet.Reader, length uint16) error {
	start := r.Offset()
	addr, err := readAddressPayload(r, length)
	if err != nil {
		r.Reset(start)
		return errors.Wrap(err, attrName(a.typ))
	}
	a.Address = addr
	return nil
}

func (a *AddressAttribute) writeTo(w *packet.Writer) error {
	return writeAddressPayload(w, a.Address)
}

func (a *AddressAttribute) String() string {
	return fmt.Sprintf("%s %s", attrName(a.typ), a.Address)
}

// XorAddressAttribute is XOR-MAPPED-ADDRESS. The stored address is the real
// one: XOR with the magic cookie is applied on the wire only, so a decoded
// attribute compares directly against literals.
type XorAddressAttribute struct {
	Address netaddr.Ipv4Address
}

func NewXorAddressAttribute() *XorAddressAttribute {
	return new(XorAddressAttribute)
}

func (a *XorAddressAttribute) Type() uint16   { return AttrXorMappedAddress }
func (a *XorAddressAttribute) Length() uint16 { return 8 }
func (a *XorAddressAttribute) Padding() int   { return 0 }

func (a *XorAddressAttribute) SetIP(ip uint32)     { a.Address.IP = ip }
func (a *XorAddressAttribute) SetPort(port uint16) { a.Address.Port = port }

func (a *XorAddressAttribute) readFrom(r *packet.Reader, length uint16) error {
	start := r.Offset()
	addr, err := readAddressPayload(r, length)
	if err != nil {
		r.Reset(start)
		return errors.Wrap(err, attrName(AttrXorMappedAddress))
	}
	a.Address = netaddr.Ipv4Address{
		IP:   addr.IP ^ MagicCookie,
		Port: addr.Port ^ uint16(MagicCookie>>16),
	}
	return nil
}

func (a *XorAddressAttribute) writeTo(w *packet.Writer) error {
	xored := netaddr.Ipv4Address{
		IP:   a.Address.IP ^ MagicCookie,
		Port: a.Address.Port ^ uint16(MagicCookie>>16),
	}
	return writeAddressPayload(w, xored)
}

func (a *XorAddressAttribute) String() string {
	return fmt.Sprintf("%s %s", attrName(AttrXorMappedAddress), a.Address)
}

func readAddressPayload(r *packet.Reader, length uint16) (netaddr.Ipv4Address, error) {
	var addr netaddr.Ipv4Address
	if length != 8 {
		return addr, errors.Errorf("payload is %d bytes, want 8", length)
	}
	zero, err := r.ReadByte()
	if err != nil {
		return addr, err
	}
	if zero != 0 {
		return addr, errors.Errorf("reserved byte is %#02x", zero)
	}
	family, err := r.ReadByte()
	if err != nil {
		return addr, err
	}
	if family != familyIPv4 {
		return addr, errors.Errorf("address family %#02x is not IPv4", family)
	}
	if addr.Port, err = r.ReadUint16(); err != nil {
		return addr, err
	}
	if addr.IP, err = r.ReadUint32(); err != nil {
		return addr, err
	}
	return addr, nil
}

func writeAddressPayload(w *packet.Writer, addr netaddr.Ipv4Address) error {
	if err := w.WriteByte(0); err != nil {
		return err
	}
	if err := w.WriteByte(familyIPv4); err != nil {
		return err
	}
	if err := w.WriteUint16(addr.Port); err != nil {
		return err
	}
	return w.WriteUint32(addr.IP)
}

// StringAttribute carries an opaque UTF-8 payload (USERNAME, SOFTWARE,
// REALM, NONCE, deprecated PASSWORD). The declared length never includes
// padding.
type StringAttribute struct {
	typ  uint16
	Text string
}

func NewStringAttribute(typ uint16, text string) (*StringAttribute, error) {
	switch typ {
	case AttrUsername, AttrPassword, AttrRealm, AttrNonce, AttrSoftware:
		return &StringAttribute{typ: typ, Text: text}, nil
	}
	return nil, errors.Errorf("stun: %s does not use the string layout", attrName(typ))
}

func (a *StringAttribute) Type() uint16   { return a.typ }
func (a *StringAttribute) Length() uint16 { return uint16(len(a.Text)) }
func (a *StringAttribute) Padding() int   { return pad4(a.Length()) }

func (a *StringAttribute) SetString(text string) { a.Text = text }

func (a *StringAttribute) readFrom(r *packet.Reader, length uint16) error {
	start := r.Offset()
	payload, err := r.ReadSlice(int(length))
	if err != nil {
		return errors.Wrap(err, attrName(a.typ))
	}
	if err := r.Skip(pad4(length)); err != nil {
		r.Reset(start)
		return errors.Wrap(err, attrName(a.typ))
	}
	a.Text = string(payload)
	return nil
}

func (a *StringAttribute) writeTo(w *packet.Writer) error {
	if err := w.WriteString(a.Text); err != nil {
		return err
	}
	return w.ZeroPad(a.Padding())
}

func (a *StringAttribute) String() string {
	return fmt.Sprintf("%s %q", attrName(a.typ), a.Text)
}

// ErrorAttribute is ERROR-CODE: a numeric code in [300, 699] split into a
// class (hundreds) and number (0-99) on the wire, plus a reason phrase.
type ErrorAttribute struct {
	Code   uint16
	Reason string
}

func NewErrorAttribute(code uint16, reason string) *ErrorAttribute {
	return &ErrorAttribute{Code: code, Reason: reason}
}

func (a *ErrorAttribute) Type() uint16   { return AttrErrorCode }
func (a *ErrorAttribute) Length() uint16 { return uint16(4 + len(a.Reason)) }
func (a *ErrorAttribute) Padding() int   { return pad4(a.Length()) }

func (a *ErrorAttribute) SetError(code uint16, reason string) {
	a.Code = code
	a.Reason = reason
}

func (a *ErrorAttribute) readFrom(r *packet.Reader, length uint16) error {
	start := r.Offset()
	err := a.decode(r, length)
	if err != nil {
		r.Reset(start)
		return errors.Wrap(err, attrName(AttrErrorCode))
	}
	return nil
}

func (a *ErrorAttribute) decode(r *packet.Reader, length uint16) error {
	if length < 4 {
		return errors.Errorf("payload is %d bytes, want at least 4", length)
	}
	reserved, err := r.ReadUint16()
	if err != nil {
		return err
	}
	if reserved != 0 {
		return errors.Errorf("reserved bytes are %#04x", reserved)
	}
	class, err := r.ReadByte()
	if err != nil {
		return err
	}
	number, err := r.ReadByte()
	if err != nil {
		return err
	}
	reason, err := r.ReadSlice(int(length) - 4)
	if err != nil {
		return err
	}
	if err := r.Skip(pad4(length)); err != nil {
		return err
	}
	a.Code = uint16(class&0x07)*100 + uint16(number)
	a.Reason = string(reason)
	return nil
}

func (a *ErrorAttribute) writeTo(w *packet.Writer) error {
	if err := w.WriteUint16(0); err != nil {
		return err
	}
	if err := w.WriteByte(byte(a.Code / 100)); err != nil {
		return err
	}
	if err := w.WriteByte(byte(a.Code % 100)); err != nil {
		return err
	}
	if err := w.WriteString(a.Reason); err != nil {
		return err
	}
	return w.ZeroPad(a.Padding())
}

func (a *ErrorAttribute) String() string {
	return fmt.Sprintf("%s %d %q", attrName(AttrErrorCode), a.Code, a.Reason)
}

// Uint16ListAttribute is UNKNOWN-ATTRIBUTES: a sequence of 16-bit type
// codes. The declared length must be even.
type Uint16ListAttribute struct {
	Values []uint16
}

func NewUint16ListAttribute(values ...uint16) *Uint16ListAttribute {
	return &Uint16ListAttribute{Values: values}
}

func (a *Uint16ListAttribute) Type() uint16   { return AttrUnknownAttributes }
func (a *Uint16ListAttribute) Length() uint16 { return uint16(2 * len(a.Values)) }
func (a *Uint16ListAttribute) Padding() int   { return pad4(a.Length()) }

func (a *Uint16ListAttribute) AddValue(v uint16) {
	a.Values = append(a.Values, v)
}

func (a *Uint16ListAttribute) readFrom(r *packet.Reader, length uint16) error {
	if length%2 != 0 {
		return errors.Errorf("stun: %s has odd length %d", attrName(AttrUnknownAttributes), length)
	}
	start := r.Offset()
	values := make([]uint16, 0, length/2)
	for i := 0; i < int(length); i += 2 {
		v, err := r.ReadUint16()
		if err != nil {
			r.Reset(start)
			return errors.Wrap(err, attrName(AttrUnknownAttributes))
		}
		values = append(values, v)
	}
	if err := r.Skip(pad4(length)); err != nil {
		r.Reset(start)
		return errors.Wrap(err, attrName(AttrUnknownAttributes))
	}
	a.Values = values
	return nil
}

func (a *Uint16ListAttribute) writeTo(w *packet.Writer) error {
	for _, v := range a.Values {
		if err := w.WriteUint16(v); err != nil {
			return err
		}
	}
	return w.ZeroPad(a.Padding())
}

func (a *Uint16ListAttribute) String() string {
	var b strings.Builder
	b.WriteString(attrName(AttrUnknownAttributes))
	for _, v := range a.Values {
		fmt.Fprintf(&b, " %#04x", v)
	}
	return b.String()
}

// IntAttribute is a fixed-width unsigned integer payload in network byte
// order, e.g. PRIORITY (width 4).
type IntAttribute struct {
	typ   uint16
	width int
	Value uint64
}

// NewIntAttribute builds an integer attribute of the given byte width
// (1, 2, 4 or 8).
func NewIntAttribute(typ uint16, width int) (*IntAttribute, error) {
	switch width {
	case 1, 2, 4, 8:
		return &IntAttribute{typ: typ, width: width}, nil
	}
	return nil, errors.Errorf("stun: invalid integer attribute width %d", width)
}

func (a *IntAttribute) Type() uint16   { return a.typ }
func (a *IntAttribute) Length() uint16 { return uint16(a.width) }
func (a *IntAttribute) Padding() int   { return pad4(a.Length()) }

func (a *IntAttribute) SetValue(v uint64) { a.Value = v }

func (a *IntAttribute) readFrom(r *packet.Reader, length uint16) error {
	if int(length) != a.width {
		return errors.Errorf("stun: %s payload is %d bytes, want %d", attrName(a.typ), length, a.width)
	}
	start := r.Offset()
	err := a.decode(r)
	if err != nil {
		r.Reset(start)
		return errors.Wrap(err, attrName(a.typ))
	}
	return nil
}

func (a *IntAttribute) decode(r *packet.Reader) error {
	switch a.width {
	case 1:
		v, err := r.ReadByte()
		if err != nil {
			return err
		}
		a.Value = uint64(v)
	case 2:
		v, err := r.ReadUint16()
		if err != nil {
			return err
		}
		a.Value = uint64(v)
	case 4:
		v, err := r.ReadUint32()
		if err != nil {
			return err
		}
		a.Value = uint64(v)
	case 8:
		v, err := r.ReadUint64()
		if err != nil {
			return err
		}
		a.Value = v
	}
	return r.Skip(a.Padding())
}

func (a *IntAttribute) writeTo(w *packet.Writer) error {
	var err error
	switch a.width {
	case 1:
		err = w.WriteByte(byte(a.Value))
	case 2:
		err = w.WriteUint16(uint16(a.Value))
	case 4:
		err = w.WriteUint32(uint32(a.Value))
	case 8:
		err = w.WriteUint64(a.Value)
	}
	if err != nil {
		return err
	}
	return w.ZeroPad(a.Padding())
}

func (a *IntAttribute) String() string {
	return fmt.Sprintf("%s %d", attrName(a.typ), a.Value)
}
