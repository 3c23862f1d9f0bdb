// Package icmpv4 implements ICMPv4 Echo Request/Reply and Destination
// Unreachable, RFC 792. Other ICMP types are out of scope: the enums below
// document the full type/code space, but only Echo and Destination
// Unreachable get constructors.
package icmpv4

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/ipstack"
	"github.com/soypat/ipstack/pktbuf"
)

// HeaderSize is the fixed 8-byte ICMP header: type, code, checksum, plus 4
// bytes whose meaning depends on the message type (id+seq for echo, unused
// for destination unreachable).
const HeaderSize = 8

type Type uint8

const (
	TypeEchoReply Type = 0 // echo reply
	TypeEcho      Type = 8 // echo

	TypeDestinationUnreachable Type = 3 // destination unreachable
	TypeSourceQuench           Type = 4 // source quench
	TypeRedirect               Type = 5 // redirect

	TypeTimeExceeded     Type = 11 // time exceeded
	TypeParameterProblem Type = 12 // parameter problem

	TypeTimestamp      Type = 13 // timestamp
	TypeTimestampReply Type = 14 // timestamp reply

	TypeInfoRequest      Type = 15 // information request
	TypeInfoRequestReply Type = 16 // information request reply
)

type CodeTimeExceeded uint8

const (
	CodeExceededInTransit  CodeTimeExceeded = iota // TTL exceeded in transit
	CodeFragmentReassembly                         // fragment reassembly time exceeded
)

// CodeDestinationUnreachable is the code field of a TypeDestinationUnreachable
// message. This stack only ever emits CodeProtoUnreachable and
// CodePortUnreachable; the rest are listed for completeness.
type CodeDestinationUnreachable uint8

const (
	CodeNetUnreachable     CodeDestinationUnreachable = iota // net unreachable
	CodeHostUnreachable                                      // host unreachable
	CodeProtoUnreachable                                     // protocol unreachable
	CodePortUnreachable                                       // port unreachable
	CodeFragNeededAndDFSet                                    // fragmentation needed and DF set
	CodeSourceRouteFailed                                     // source route failed
)

type CodeRedirect uint8

const (
	CodeRedirectForNetwork       CodeRedirect = iota // redirect for network
	CodeRedirectForHost                               // redirect for host
	CodeRedirectForToSAndNetwork                      // redirect for ToS+network
	CodeRedirectToSAndHost                            // redirect for ToS+host
)

var errShortFrame = errors.New("icmpv4: frame shorter than 8-byte header")

// NewFrame returns a Frame over buf. An error is returned if buf is shorter
// than the 8-byte header.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, errShortFrame
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw bytes of an ICMP message.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice the frame was constructed with.
func (frm Frame) RawData() []byte { return frm.buf }

func (frm Frame) Type() Type { return Type(frm.buf[0]) }

func (frm Frame) SetType(t Type) { frm.buf[0] = uint8(t) }

func (frm Frame) Code() uint8 { return frm.buf[1] }

func (frm Frame) SetCode(code uint8) { frm.buf[1] = code }

// CRC returns the checksum field of the frame.
func (frm Frame) CRC() uint16 { return binary.BigEndian.Uint16(frm.buf[2:4]) }

// SetCRC sets the checksum field of the frame.
func (frm Frame) SetCRC(crc uint16) { binary.BigEndian.PutUint16(frm.buf[2:4], crc) }

// Payload returns everything past the 4 type/code/checksum bytes, i.e. the
// id+seq+data of an echo message or the unused word + quoted header of a
// destination-unreachable message.
func (frm Frame) Payload() []byte { return frm.buf[4:] }

// CalculateCRC computes the one's-complement checksum over the whole message
// (header and payload), treating the checksum field as zero per RFC 792. It
// reads frm.buf's actual length, not a fixed header+payload sizeof, so it
// stays correct for messages whose quoted offending header is shorter than
// the usual 20 bytes. frm.buf[4:] is summed with PayloadSum16 rather than
// WriteEven since an echo's data (or a quoted datagram) can be any length,
// odd included.
func (frm Frame) CalculateCRC() uint16 {
	var crc ipstack.CRC791
	crc.WriteEven(frm.buf[0:2])
	return crc.PayloadSum16(frm.buf[4:])
}

// ValidateSize checks the frame has at least the fixed 8-byte header.
func (frm Frame) ValidateSize(v *ipstack.Validator) {
	if len(frm.buf) < HeaderSize {
		v.AddError(errShortFrame)
	}
}

// FrameDestinationUnreachable is a Frame known to carry type=3.
type FrameDestinationUnreachable struct {
	Frame
}

func (frm FrameDestinationUnreachable) Code() CodeDestinationUnreachable {
	return CodeDestinationUnreachable(frm.Frame.Code())
}

func (frm FrameDestinationUnreachable) SetCode(code CodeDestinationUnreachable) {
	frm.Frame.SetCode(uint8(code))
}

// Quote returns the offending IP header plus the first 8 bytes beyond it,
// carried as this message's payload past the unused 4-byte word.
func (frm FrameDestinationUnreachable) Quote() []byte { return frm.buf[8:] }

// FrameEcho is a Frame known to carry type=0 or type=8.
type FrameEcho struct {
	Frame
}

func (frm FrameEcho) Identifier() uint16 { return binary.BigEndian.Uint16(frm.buf[4:6]) }

func (frm FrameEcho) SetIdentifier(id uint16) { binary.BigEndian.PutUint16(frm.buf[4:6], id) }

func (frm FrameEcho) SequenceNumber() uint16 { return binary.BigEndian.Uint16(frm.buf[6:8]) }

func (frm FrameEcho) SetSequenceNumber(seq uint16) { binary.BigEndian.PutUint16(frm.buf[6:8], seq) }

func (frm FrameEcho) Data() []byte { return frm.buf[8:] }

// BuildEchoReply writes an Echo Reply into txbuf's live window, copying the
// identifier, sequence number and data from req and mirroring type=0, code=0.
// The caller hands the returned frame's bytes to ip_out addressed back to
// req's source.
func BuildEchoReply(txbuf *pktbuf.Buf, req FrameEcho) FrameEcho {
	data := req.Data()
	hdr := txbuf.PushHeader(HeaderSize + len(data))
	frm := FrameEcho{Frame{buf: hdr}}
	frm.SetType(TypeEchoReply)
	frm.SetCode(0)
	frm.SetIdentifier(req.Identifier())
	frm.SetSequenceNumber(req.SequenceNumber())
	copy(frm.Data(), data)
	frm.SetCRC(frm.CalculateCRC())
	return frm
}

// BuildUnreachable writes a Destination Unreachable message into txbuf's live
// window: the 8-byte ICMP header (unused word zeroed) followed by
// offendingIPDatagram's header plus the first 8 bytes beyond it, per RFC 792.
// quoteLen is derived from the offending datagram's own IHL field and capped
// to its actual length, so the checksum is always computed over the bytes
// actually emitted rather than a fixed IHL=5 assumption that could diverge
// from what gets written when the offending header carries options.
func BuildUnreachable(txbuf *pktbuf.Buf, code CodeDestinationUnreachable, offendingIPDatagram []byte) FrameDestinationUnreachable {
	quoteLen := len(offendingIPDatagram)
	if len(offendingIPDatagram) > 0 {
		ihl := int(offendingIPDatagram[0]&0xf) * 4
		if want := ihl + 8; want < quoteLen {
			quoteLen = want
		}
	}
	quote := offendingIPDatagram[:quoteLen]
	hdr := txbuf.PushHeader(HeaderSize + quoteLen)
	for i := range hdr[:HeaderSize] {
		hdr[i] = 0
	}
	copy(hdr[HeaderSize:], quote)
	frm := FrameDestinationUnreachable{Frame{buf: hdr}}
	frm.SetType(TypeDestinationUnreachable)
	frm.SetCode(code)
	frm.SetCRC(frm.CalculateCRC())
	return frm
}
