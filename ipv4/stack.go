package ipv4

import (
	"log/slog"
	"time"

	"github.com/soypat/ipstack"
	"github.com/soypat/ipstack/internal"
	"github.com/soypat/ipstack/ipv4/icmpv4"
	"github.com/soypat/ipstack/pktbuf"
)

// IPDefaultTTL is IP_DEFAULT_TTL: the TTL this stack stamps on every
// datagram it emits.
const IPDefaultTTL = 64

// maxFragPayload is ETHERNET_MAX_TRANSPORT_UNIT - HeaderSize: the largest
// upper-layer payload that fits unfragmented, and the size of every
// fragment but the last.
const maxFragPayload = 1500 - HeaderSize

// linkSlack is the leading room fragmentOut and SendICMPUnreachable reserve
// ahead of the IP header: the Ethernet header ARP eventually pushes, plus an
// ARP header's worth of extra room. When the next hop isn't resolved yet,
// arp_out parks a copy of this buffer (slack included) and reuses the buffer
// itself for its request, which arp.Handler.Req re-initializes with its own
// slack; only the Ethernet header is ever pushed into this room.
const linkSlack = ipstack.SizeHeaderARPv4 + ipstack.SizeHeaderEthernet

// RecvFunc receives a validated upper-layer payload, the full IP datagram it
// arrived in (header included — UDP needs this to quote an offending
// datagram back in a port-unreachable message) and its source address.
type RecvFunc func(now time.Time, txbuf *pktbuf.Buf, payload []byte, datagram []byte, srcIP [4]byte) error

// ArpOutFunc hands a fully-built IPv4 datagram (sitting in txbuf's live
// window) to ARP for next-hop resolution and Ethernet framing.
type ArpOutFunc func(now time.Time, txbuf *pktbuf.Buf, nextHopIP [4]byte) error

// Metrics receives datagram throughput, drop, and ICMP-unreachable counts.
// Satisfied structurally by *metrics.Collector.
type Metrics interface {
	IncDatagramsSent()
	IncDatagramsReceived()
	IncDropped(direction, reason string)
	IncICMPUnreachable(reason string)
}

// Config configures a Stack.
type Config struct {
	IP      [4]byte
	ArpOut  ArpOutFunc
	Metrics Metrics
	Log     *slog.Logger
}

// Stack implements ip_in/ip_out: ingress validation and protocol demux, and
// fragmenting egress with a single monotonically increasing datagram ID
// counter, per RFC 791.
type Stack struct {
	ip       [4]byte
	id       uint16
	handlers []protoHandler
	arpOut   ArpOutFunc
	metrics  Metrics
	logger
}

type protoHandler struct {
	proto ipstack.IPProto
	recv  RecvFunc
}

// New constructs a Stack from cfg.
func New(cfg Config) *Stack {
	if cfg.ArpOut == nil {
		panic("ipv4: ArpOut callback is required")
	}
	return &Stack{
		ip:      cfg.IP,
		arpOut:  cfg.ArpOut,
		metrics: cfg.Metrics,
		logger:  logger{log: cfg.Log},
	}
}

// AddProtocol registers recv as the handler for proto. ICMP and UDP are the
// only protocols this stack's ingress path ever dispatches to; anything else
// arriving on the wire gets ErrUnsupported treatment before any handler
// lookup happens.
func (s *Stack) AddProtocol(proto ipstack.IPProto, recv RecvFunc) {
	s.handlers = append(s.handlers, protoHandler{proto: proto, recv: recv})
}

// SetID seeds the datagram ID counter. Exposed for deterministic tests; the
// zero value (freshly-constructed Stack) starts at 0.
func (s *Stack) SetID(id uint16) { s.id = id }

// Recv implements ip_in. txbuf is the scratch buffer used if an ICMP
// Destination Unreachable needs to be emitted in response; payload is the
// live IPv4 datagram as received (header included). Every drop path returns
// nil: ingress errors are local-only per the stack's propagation policy.
//
// Fragments are not reassembled: each fragment is dispatched on its own, so
// upper-layer handlers see truncated data or a failing checksum for any
// datagram that arrived fragmented.
func (s *Stack) Recv(now time.Time, txbuf *pktbuf.Buf, payload []byte) error {
	if len(payload) < HeaderSize {
		s.debug("ipv4:in:drop-short")
		s.incDropped("rx", "malformed")
		return nil
	}
	ifrm, err := NewFrame(payload)
	if err != nil {
		s.incDropped("rx", "malformed")
		return nil
	}
	if ifrm.version() != 4 {
		s.debug("ipv4:in:drop-version")
		s.incDropped("rx", "malformed")
		return nil
	}
	tl := ifrm.TotalLength()
	if int(tl) > len(payload) {
		s.debug("ipv4:in:drop-total-length")
		s.incDropped("rx", "malformed")
		return nil
	}

	stored := ifrm.CRC()
	ifrm.SetCRC(0)
	computed := ifrm.CalculateHeaderCRC()
	ifrm.SetCRC(stored)
	if computed != stored {
		s.debug("ipv4:in:drop-bad-crc")
		s.incDropped("rx", "checksum")
		return nil
	}

	dst := *ifrm.DestinationAddr()
	if dst != s.ip {
		return nil
	}

	if int(tl) < len(payload) {
		payload = payload[:tl]
	}

	if s.metrics != nil {
		s.metrics.IncDatagramsReceived()
	}

	srcIP := *ifrm.SourceAddr()
	proto := ifrm.Protocol()
	if proto != ipstack.IPProtoUDP && proto != ipstack.IPProtoICMP {
		s.info("ipv4:in:unsupported-protocol", slog.Int("proto", int(proto)))
		// Q4: emit the ICMP message and stop; do not fall through to dispatch
		// as if the protocol were recognized.
		if s.metrics != nil {
			s.metrics.IncICMPUnreachable("protocol_unreachable")
		}
		return s.SendICMPUnreachable(now, txbuf, srcIP, icmpv4.CodeProtoUnreachable, payload)
	}

	upper := payload[ifrm.HeaderLength():]
	for _, h := range s.handlers {
		if h.proto == proto {
			return h.recv(now, txbuf, upper, payload, srcIP)
		}
	}
	s.debug("ipv4:in:no-handler", slog.Int("proto", int(proto)))
	s.incDropped("rx", "unknown_protocol")
	return nil
}

func (s *Stack) incDropped(direction, reason string) {
	if s.metrics != nil {
		s.metrics.IncDropped(direction, reason)
	}
}

// Send implements ip_out: fragment payload (already sitting in txbuf's live
// window) into at most maxFragPayload-byte pieces and hand each to ARP, all
// sharing one datagram ID. A zero-length payload still emits exactly one
// datagram (MF=0) and still advances the ID exactly once, resolving the
// zero-payload edge case left open by ip_out's increment-after-last-fragment
// rule.
func (s *Stack) Send(now time.Time, txbuf *pktbuf.Buf, dstIP [4]byte, proto ipstack.IPProto) error {
	payload := append([]byte(nil), txbuf.Bytes()...)
	id := s.id
	s.id++

	offset := 0
	for len(payload)-offset > maxFragPayload {
		chunk := payload[offset : offset+maxFragPayload]
		if err := s.fragmentOut(now, txbuf, dstIP, proto, id, chunk, offset/8, true); err != nil {
			return err
		}
		offset += maxFragPayload
	}
	return s.fragmentOut(now, txbuf, dstIP, proto, id, payload[offset:], offset/8, false)
}

// SendICMPUnreachable builds a Destination Unreachable message quoting
// offendingIPDatagram into txbuf and sends it to srcIP via Send. Used both
// for ip_in's own protocol-unreachable case and by the UDP layer's
// port-unreachable case (offendingIPDatagram there is the original IP header
// pushed back on top of the first 8 bytes of UDP).
func (s *Stack) SendICMPUnreachable(now time.Time, txbuf *pktbuf.Buf, srcIP [4]byte, code icmpv4.CodeDestinationUnreachable, offendingIPDatagram []byte) error {
	txbuf.Init(linkSlack+HeaderSize, 0)
	icmpv4.BuildUnreachable(txbuf, code, offendingIPDatagram)
	return s.Send(now, txbuf, srcIP, ipstack.IPProtoICMP)
}

// fragmentOut builds one datagram's worth of IP header around chunk and
// hands the result to ARP. It re-initializes txbuf's window from scratch
// each call, since multiple fragments of one Send share the same scratch
// buffer sequentially, never concurrently.
func (s *Stack) fragmentOut(now time.Time, txbuf *pktbuf.Buf, dstIP [4]byte, proto ipstack.IPProto, id uint16, chunk []byte, fragOffset8 int, moreFragments bool) error {
	txbuf.Init(linkSlack+HeaderSize, len(chunk))
	copy(txbuf.Bytes(), chunk)
	hdr := txbuf.PushHeader(HeaderSize)

	ifrm, _ := NewFrame(hdr)
	ifrm.ClearHeader()
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetToS(0)
	ifrm.SetTotalLength(uint16(HeaderSize + len(chunk)))
	ifrm.SetID(id)
	flags := ipstack.IPv4Flags(fragOffset8) & 0x1fff
	if moreFragments {
		flags |= ipstack.IPv4FlagMoreFragments
	}
	ifrm.SetFlags(flags)
	ifrm.SetTTL(IPDefaultTTL)
	ifrm.SetProtocol(proto)
	*ifrm.SourceAddr() = s.ip
	*ifrm.DestinationAddr() = dstIP
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	err := s.arpOut(now, txbuf, dstIP)
	if err == nil && s.metrics != nil {
		s.metrics.IncDatagramsSent()
	}
	return err
}

type logger struct {
	log *slog.Logger
}

func (l logger) error(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelError, msg, attrs...)
}
func (l logger) info(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelInfo, msg, attrs...)
}
func (l logger) debug(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelDebug, msg, attrs...)
}
func (l logger) trace(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, internal.LevelTrace, msg, attrs...)
}
