// Package arp implements RFC 826 ARP resolution for a single Ethernet/IPv4
// interface: wire framing, a TTL-keyed resolution table, and a TTL-keyed
// pending-send table that lets a frame wait for a reply before going out.
package arp

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/ipstack"
)

// HeaderSize is the fixed 28-byte ARP header for Ethernet hardware addresses
// (6 bytes) over IPv4 protocol addresses (4 bytes); this stack never
// negotiates any other hardware/protocol type pair.
const HeaderSize = ipstack.SizeHeaderARPv4

const (
	hwTypeEthernet = 1
)

var errShort = errors.New("arp: frame shorter than 28-byte header")

// NewFrame returns a Frame over buf. An error is returned if buf is shorter
// than the 28-byte header.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw bytes of an ARP packet fixed to Ethernet
// hardware addresses and IPv4 protocol addresses:
//
//	hwtype[2] | prototype[2] | hwlen[1] | protolen[1] | op[2] |
//	sender-mac[6] | sender-ip[4] | target-mac[6] | target-ip[4]
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice the frame was constructed with.
func (f Frame) RawData() []byte { return f.buf }

// HardwareType returns the hw-type field (1 = Ethernet).
func (f Frame) HardwareType() uint16 { return binary.BigEndian.Uint16(f.buf[0:2]) }

// ProtocolType returns the proto-type field as an EtherType (0x0800 = IPv4).
func (f Frame) ProtocolType() ipstack.EtherType {
	return ipstack.EtherType(binary.BigEndian.Uint16(f.buf[2:4]))
}

// HardwareLen returns the hw-len field (6 for Ethernet).
func (f Frame) HardwareLen() uint8 { return f.buf[4] }

// ProtocolLen returns the proto-len field (4 for IPv4).
func (f Frame) ProtocolLen() uint8 { return f.buf[5] }

// SetFixedFields sets hw-type=Ethernet, proto-type=IPv4, hw-len=6, proto-len=4.
func (f Frame) SetFixedFields() {
	binary.BigEndian.PutUint16(f.buf[0:2], hwTypeEthernet)
	binary.BigEndian.PutUint16(f.buf[2:4], uint16(ipstack.EtherTypeIPv4))
	f.buf[4] = 6
	f.buf[5] = 4
}

// Operation returns the opcode field.
func (f Frame) Operation() ipstack.ARPOp { return ipstack.ARPOp(binary.BigEndian.Uint16(f.buf[6:8])) }

// SetOperation sets the opcode field.
func (f Frame) SetOperation(op ipstack.ARPOp) { binary.BigEndian.PutUint16(f.buf[6:8], uint16(op)) }

// SenderMAC returns the sender hardware address field.
func (f Frame) SenderMAC() *[6]byte { return (*[6]byte)(f.buf[8:14]) }

// SenderIP returns the sender protocol address field.
func (f Frame) SenderIP() *[4]byte { return (*[4]byte)(f.buf[14:18]) }

// TargetMAC returns the target hardware address field.
func (f Frame) TargetMAC() *[6]byte { return (*[6]byte)(f.buf[18:24]) }

// TargetIP returns the target protocol address field.
func (f Frame) TargetIP() *[4]byte { return (*[4]byte)(f.buf[24:28]) }

// ValidateSize checks the frame has at least the fixed 28-byte header.
func (f Frame) ValidateSize(v *ipstack.Validator) {
	if len(f.buf) < HeaderSize {
		v.AddError(errShort)
	}
}

// Validate checks size, hardware type, protocol type and length fields
// against the only combination this stack speaks (Ethernet/IPv4), and the
// opcode against {request, reply}. This is where the source's suspected
// "ARP_HW_ETHER vs ARP_ERROR" opcode-validation typo is resolved: any
// opcode outside {request, reply} is rejected as InvalidFrame, not silently
// accepted, see DESIGN.md.
func (f Frame) Validate(v *ipstack.Validator) {
	f.ValidateSize(v)
	if v.HasError() {
		return
	}
	if f.HardwareType() != hwTypeEthernet || f.HardwareLen() != 6 {
		v.AddError(errors.New("arp: unsupported hardware type/length"))
	}
	if f.ProtocolType() != ipstack.EtherTypeIPv4 || f.ProtocolLen() != 4 {
		v.AddError(errors.New("arp: unsupported protocol type/length"))
	}
	op := f.Operation()
	if op != ipstack.ARPRequest && op != ipstack.ARPReply {
		v.AddError(errors.New("arp: opcode not request or reply"))
	}
}
