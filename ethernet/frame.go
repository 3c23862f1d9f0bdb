// Package ethernet implements Ethernet II framing: header accessors, a
// broadcast-address helper, and the minimum-frame padding rule. It ports
// the teacher's Frame accessor type trimmed to the fields the stack needs —
// VLAN tagging is dropped, see DESIGN.md.
package ethernet

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/ipstack"
)

const (
	// HeaderSize is the fixed 14-byte Ethernet II header length.
	HeaderSize = ipstack.SizeHeaderEthernet
	// MinPayload is the minimum payload size before tail padding is required.
	MinPayload = ipstack.MinEthernetPayload
)

var errShort = errors.New("ethernet: frame shorter than 14-byte header")

// NewFrame returns a Frame over buf. An error is returned if buf is shorter
// than the 14-byte header.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw bytes of an Ethernet II frame (no preamble,
// first byte is the destination address) and provides accessors over the
// dst[6] | src[6] | ethertype[2] | payload layout.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice the frame was constructed with.
func (f Frame) RawData() []byte { return f.buf }

// Destination returns the frame's destination hardware address.
func (f Frame) Destination() *[6]byte { return (*[6]byte)(f.buf[0:6]) }

// SetDestination sets the frame's destination hardware address.
func (f Frame) SetDestination(addr [6]byte) { copy(f.buf[0:6], addr[:]) }

// IsBroadcast reports whether the destination is ff:ff:ff:ff:ff:ff.
func (f Frame) IsBroadcast() bool {
	d := f.buf[0:6]
	for _, b := range d {
		if b != 0xff {
			return false
		}
	}
	return true
}

// Source returns the frame's source hardware address.
func (f Frame) Source() *[6]byte { return (*[6]byte)(f.buf[6:12]) }

// SetSource sets the frame's source hardware address.
func (f Frame) SetSource(addr [6]byte) { copy(f.buf[6:12], addr[:]) }

// EtherType returns the EtherType field.
func (f Frame) EtherType() ipstack.EtherType {
	return ipstack.EtherType(binary.BigEndian.Uint16(f.buf[12:14]))
}

// SetEtherType sets the EtherType field.
func (f Frame) SetEtherType(et ipstack.EtherType) {
	binary.BigEndian.PutUint16(f.buf[12:14], uint16(et))
}

// Payload returns the bytes following the 14-byte header.
func (f Frame) Payload() []byte { return f.buf[HeaderSize:] }

// ValidateSize checks the frame has at least the 14-byte header.
func (f Frame) ValidateSize(v *ipstack.Validator) {
	if len(f.buf) < HeaderSize {
		v.AddError(errShort)
	}
}

// BroadcastAddr returns the all-ones broadcast hardware address.
func BroadcastAddr() [6]byte {
	return [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}
