// Package udp implements UDP datagram framing (RFC 768) and the stack's UDP
// layer: pseudo-header checksum, a port table, and open/close/send.
package udp

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/ipstack"
)

// HeaderSize is the fixed 8-byte UDP header.
const HeaderSize = ipstack.SizeHeaderUDP

var (
	errBadLen = errors.New("udp: length field shorter than header")
	errShort  = errors.New("udp: length field exceeds buffer")
)

// NewFrame returns a Frame over buf. An error is returned if buf is shorter
// than the 8-byte header.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, errors.New("udp: frame shorter than 8-byte header")
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw bytes of a UDP datagram. See [RFC 768].
//
// [RFC 768]: https://www.rfc-editor.org/rfc/rfc768
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice the frame was constructed with.
func (ufrm Frame) RawData() []byte { return ufrm.buf }

// SourcePort identifies the sending port. May be zero.
func (ufrm Frame) SourcePort() uint16 { return binary.BigEndian.Uint16(ufrm.buf[0:2]) }

// SetSourcePort sets the source port field.
func (ufrm Frame) SetSourcePort(src uint16) { binary.BigEndian.PutUint16(ufrm.buf[0:2], src) }

// DestinationPort identifies the receiving port.
func (ufrm Frame) DestinationPort() uint16 { return binary.BigEndian.Uint16(ufrm.buf[2:4]) }

// SetDestinationPort sets the destination port field.
func (ufrm Frame) SetDestinationPort(dst uint16) { binary.BigEndian.PutUint16(ufrm.buf[2:4], dst) }

// Length is the length in bytes of the UDP header and payload together; the
// minimum is 8 (header only, no payload).
func (ufrm Frame) Length() uint16 { return binary.BigEndian.Uint16(ufrm.buf[4:6]) }

// SetLength sets the length field.
func (ufrm Frame) SetLength(length uint16) { binary.BigEndian.PutUint16(ufrm.buf[4:6], length) }

// CRC returns the checksum field.
func (ufrm Frame) CRC() uint16 { return binary.BigEndian.Uint16(ufrm.buf[6:8]) }

// SetCRC sets the checksum field.
func (ufrm Frame) SetCRC(checksum uint16) { binary.BigEndian.PutUint16(ufrm.buf[6:8], checksum) }

// Payload returns the datagram payload, from HeaderSize to Length. Call
// ValidateSize first to avoid a panic on a malformed length field.
func (ufrm Frame) Payload() []byte { return ufrm.buf[HeaderSize:ufrm.Length()] }

// ClearHeader zeros out the 8-byte header.
func (ufrm Frame) ClearHeader() {
	for i := range ufrm.buf[:HeaderSize] {
		ufrm.buf[i] = 0
	}
}

// pseudoHeaderWriter decouples the checksum routine from ipv4.Frame's
// concrete type: any IPv4 header accessor that knows how to feed its
// src/dst/protocol fields into a running checksum can stand in.
type pseudoHeaderWriter interface {
	WriteUDPPseudoHeader(crc *ipstack.CRC791)
}

// CalculateChecksum computes the UDP checksum over the IPv4 pseudo-header
// (src, dst, zero, protocol=17 from ipHdr) plus the UDP header and payload,
// per RFC 768 §Checksum. The checksum field's current contents are not read:
// it is excluded from the running sum rather than zeroed and restored, since
// CRC791 is a pure accumulator with no wire-buffer side effects.
func (ufrm Frame) CalculateChecksum(ipHdr pseudoHeaderWriter) uint16 {
	var crc ipstack.CRC791
	ipHdr.WriteUDPPseudoHeader(&crc)
	crc.AddUint16(ufrm.Length()) // UDP length, folded into the pseudo-header
	crc.WriteEven(ufrm.buf[0:4]) // source port, destination port
	crc.AddUint16(ufrm.Length()) // UDP length again, the header's own length field
	return crc.PayloadSum16(ufrm.Payload())
}

// ValidateSize checks the frame's length field against the actual buffer.
func (ufrm Frame) ValidateSize(v *ipstack.Validator) {
	ul := ufrm.Length()
	if ul < HeaderSize {
		v.AddError(errBadLen)
	}
	if int(ul) > len(ufrm.buf) {
		v.AddError(errShort)
	}
}
