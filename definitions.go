// Package ipstack implements a minimal user-space network protocol stack:
// Ethernet, ARP, IPv4, ICMPv4 (echo + destination-unreachable) and UDP,
// terminating traffic addressed to a single configured interface.
//
// The stack is single-threaded and cooperative: nothing here blocks or
// spawns goroutines. A driver (see package driver) is polled externally
// and frames flow synchronously through stack.Stack.Poll.
package ipstack

// EtherType identifies the payload protocol carried by an Ethernet frame.
type EtherType uint16

// IsSize returns true if the EtherType value is actually the IEEE802.3
// payload-size field (<=1500) and must not be interpreted as an EtherType.
func (et EtherType) IsSize() bool { return et <= 1500 }

const (
	EtherTypeIPv4 EtherType = 0x0800 // IPv4
	EtherTypeARP  EtherType = 0x0806 // ARP
	EtherTypeIPv6 EtherType = 0x86DD // IPv6
	EtherTypeVLAN EtherType = 0x8100 // VLAN
)

// IPToS is the Type of Service / DSCP+ECN byte of an IPv4 header.
type IPToS uint8

// DS returns the Differentiated Services Code Point bits.
func (tos IPToS) DS() uint8 { return uint8(tos) >> 2 }

// ECN returns the Explicit Congestion Notification bits.
func (tos IPToS) ECN() uint8 { return uint8(tos) & 0b11 }

// IPv4Flags holds the flags+fragment-offset field of an IPv4 header.
type IPv4Flags uint16

const (
	// IPv4FlagDontFragment is the DF bit.
	IPv4FlagDontFragment IPv4Flags = 0x4000
	// IPv4FlagMoreFragments is the MF bit.
	IPv4FlagMoreFragments IPv4Flags = 0x2000
)

// DontFragment reports whether the DF bit is set.
func (f IPv4Flags) DontFragment() bool { return f&IPv4FlagDontFragment != 0 }

// MoreFragments reports whether the MF bit is set.
func (f IPv4Flags) MoreFragments() bool { return f&IPv4FlagMoreFragments != 0 }

// FragmentOffset returns the 13-bit fragment offset field, in units of 8 bytes.
func (f IPv4Flags) FragmentOffset() uint16 { return uint16(f) & 0x1fff }

// IsEvil reports the RFC 3514 evil bit. Present for completeness; this stack
// never sets it and never checks it.
func (f IPv4Flags) IsEvil() bool { return f&0x8000 != 0 }

const (
	SizeHeaderEthernet = 14
	SizeHeaderARPv4    = 28
	SizeHeaderIPv4     = 20
	SizeHeaderICMPv4   = 8
	SizeHeaderUDP      = 8

	// MinEthernetPayload is the minimum Ethernet payload size (excluding the
	// 14-byte header) before tail padding is required.
	MinEthernetPayload = 46
)

// IPProto identifies the upper-layer protocol carried by an IPv4 datagram.
type IPProto uint8

const (
	IPProtoICMP IPProto = 1  // ICMP
	IPProtoTCP  IPProto = 6  // TCP
	IPProtoUDP  IPProto = 17 // UDP
)

// ARPOp is the ARP header's operation field.
type ARPOp uint16

const (
	ARPRequest ARPOp = 1 // request
	ARPReply   ARPOp = 2 // reply
)
