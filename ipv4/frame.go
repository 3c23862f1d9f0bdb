// Package ipv4 implements IPv4 framing (RFC 791, no options) and the
// stack's IPv4 layer: ingress validation/demux and egress with
// fragmentation, wired to ARP for next-hop resolution.
package ipv4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/soypat/ipstack"
)

// HeaderSize is the fixed 20-byte IPv4 header length this stack emits and
// expects on ingress; IP options are not supported.
const HeaderSize = ipstack.SizeHeaderIPv4

var (
	errBadTotalLen = errors.New("ipv4: total length shorter than header")
	errShort       = errors.New("ipv4: total length exceeds buffer")
	errBadIHL      = errors.New("ipv4: IHL < 5 (options unsupported)")
	errBadVersion  = errors.New("ipv4: version field != 4")
)

// NewFrame returns a Frame over buf. An error is returned if buf is shorter
// than the 20-byte header.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, errors.New("ipv4: frame shorter than 20-byte header")
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw bytes of an IPv4 datagram and provides
// accessors over RFC 791's header layout. See [RFC 791].
//
// [RFC 791]: https://www.rfc-editor.org/rfc/rfc791
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice the frame was constructed with.
func (f Frame) RawData() []byte { return f.buf }

func (f Frame) ihl() uint8     { return f.buf[0] & 0xf }
func (f Frame) version() uint8 { return f.buf[0] >> 4 }

// HeaderLength returns IHL*4. Always 20 for this stack, which never emits or
// expects IP options.
func (f Frame) HeaderLength() int { return int(f.ihl()) * 4 }

// SetVersionAndIHL sets the version (always 4) and IHL (always 5) fields.
func (f Frame) SetVersionAndIHL(version, ihl uint8) { f.buf[0] = version<<4 | ihl&0xf }

// ToS returns the Type of Service byte.
func (f Frame) ToS() ipstack.IPToS { return ipstack.IPToS(f.buf[1]) }

// SetToS sets the Type of Service byte.
func (f Frame) SetToS(tos ipstack.IPToS) { f.buf[1] = byte(tos) }

// TotalLength returns the total datagram length (header + payload).
func (f Frame) TotalLength() uint16 { return binary.BigEndian.Uint16(f.buf[2:4]) }

// SetTotalLength sets the total datagram length field.
func (f Frame) SetTotalLength(tl uint16) { binary.BigEndian.PutUint16(f.buf[2:4], tl) }

// ID returns the datagram identification field, used to group fragments.
func (f Frame) ID() uint16 { return binary.BigEndian.Uint16(f.buf[4:6]) }

// SetID sets the datagram identification field.
func (f Frame) SetID(id uint16) { binary.BigEndian.PutUint16(f.buf[4:6], id) }

// Flags returns the flags + fragment-offset field.
func (f Frame) Flags() ipstack.IPv4Flags { return ipstack.IPv4Flags(binary.BigEndian.Uint16(f.buf[6:8])) }

// SetFlags sets the flags + fragment-offset field.
func (f Frame) SetFlags(flags ipstack.IPv4Flags) { binary.BigEndian.PutUint16(f.buf[6:8], uint16(flags)) }

// TTL returns the time-to-live field.
func (f Frame) TTL() uint8 { return f.buf[8] }

// SetTTL sets the time-to-live field.
func (f Frame) SetTTL(ttl uint8) { f.buf[8] = ttl }

// Protocol returns the upper-layer protocol field.
func (f Frame) Protocol() ipstack.IPProto { return ipstack.IPProto(f.buf[9]) }

// SetProtocol sets the upper-layer protocol field.
func (f Frame) SetProtocol(proto ipstack.IPProto) { f.buf[9] = uint8(proto) }

// CRC returns the header checksum field.
func (f Frame) CRC() uint16 { return binary.BigEndian.Uint16(f.buf[10:12]) }

// SetCRC sets the header checksum field.
func (f Frame) SetCRC(crc uint16) { binary.BigEndian.PutUint16(f.buf[10:12], crc) }

// SourceAddr returns a pointer to the 4-byte source address field.
func (f Frame) SourceAddr() *[4]byte { return (*[4]byte)(f.buf[12:16]) }

// DestinationAddr returns a pointer to the 4-byte destination address field.
func (f Frame) DestinationAddr() *[4]byte { return (*[4]byte)(f.buf[16:20]) }

// Payload returns the datagram payload, from HeaderLength to TotalLength.
// Call ValidateSize first to avoid a panic on a malformed length field.
func (f Frame) Payload() []byte {
	return f.buf[f.HeaderLength():f.TotalLength()]
}

// ClearHeader zeros out the 20-byte header.
func (f Frame) ClearHeader() {
	for i := range f.buf[:HeaderSize] {
		f.buf[i] = 0
	}
}

// CalculateHeaderCRC computes the header checksum treating the CRC field as
// zero, per RFC 791. The CRC field's current value is not read.
func (f Frame) CalculateHeaderCRC() uint16 {
	var crc ipstack.CRC791
	crc.WriteEven(f.buf[0:10])
	crc.WriteEven(f.buf[12:20])
	return crc.Sum16()
}

// WriteUDPPseudoHeader feeds the IPv4 pseudo-header fields (src, dst,
// protocol) used in the UDP checksum into crc. The caller adds the UDP
// length separately since it is not simply TotalLength-HeaderLength when
// called mid-checksum.
func (f Frame) WriteUDPPseudoHeader(crc *ipstack.CRC791) {
	crc.WriteEven(f.SourceAddr()[:])
	crc.WriteEven(f.DestinationAddr()[:])
	crc.AddUint16(uint16(f.Protocol()))
}

// ValidateSize checks the frame's size fields against the actual buffer.
func (f Frame) ValidateSize(v *ipstack.Validator) {
	ihl := f.ihl()
	tl := f.TotalLength()
	if tl < HeaderSize {
		v.AddError(errBadTotalLen)
	}
	if int(tl) > len(f.buf) {
		v.AddError(errShort)
	}
	if ihl < 5 {
		v.AddError(errBadIHL)
	}
}

// ValidateExceptCRC runs ValidateSize plus the version-field check. It does
// not verify the header checksum; callers compare CalculateHeaderCRC against
// the stored CRC themselves, since the wire value must be preserved
// (restored) around the comparison rather than consumed by it.
func (f Frame) ValidateExceptCRC(v *ipstack.Validator) {
	f.ValidateSize(v)
	if f.version() != 4 {
		v.AddError(errBadVersion)
	}
}

func (f Frame) String() string {
	dst := netip.AddrFrom4(*f.DestinationAddr())
	src := netip.AddrFrom4(*f.SourceAddr())
	return fmt.Sprintf("IP %s SRC=%s DST=%s LEN=%d TTL=%d ID=%d flags=%04x",
		f.Protocol().String(), src, dst, f.TotalLength(), f.TTL(), f.ID(), uint16(f.Flags()))
}
