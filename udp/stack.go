package udp

import (
	"log/slog"
	"time"

	"github.com/soypat/ipstack"
	"github.com/soypat/ipstack/internal"
	"github.com/soypat/ipstack/pktbuf"
)

// codePortUnreachable mirrors icmpv4.CodePortUnreachable's wire value; kept
// as a local constant rather than an import so this package does not depend
// on ipv4/icmpv4, matching the decoupled-callback pattern described for
// cross-layer wiring.
const codePortUnreachable = 3

// IPSendFunc hands a fully-built UDP datagram, sitting in txbuf's live
// window, down to the IPv4 layer (ip_out) for fragmentation and ARP
// resolution.
type IPSendFunc func(now time.Time, txbuf *pktbuf.Buf, dstIP [4]byte, proto ipstack.IPProto) error

// ICMPUnreachableFunc emits an ICMP Destination Unreachable with the given
// code, quoting offendingIPDatagram, back to srcIP.
type ICMPUnreachableFunc func(now time.Time, txbuf *pktbuf.Buf, srcIP [4]byte, code uint8, offendingIPDatagram []byte) error

// Metrics receives UDP drop counts and the live bound-socket count.
// Satisfied structurally by *metrics.Collector.
type Metrics interface {
	IncDropped(direction, reason string)
	IncICMPUnreachable(reason string)
	SetUDPSocketsOpen(n int)
}

// Config configures a Stack.
type Config struct {
	IP              [4]byte
	IPSend          IPSendFunc
	ICMPUnreachable ICMPUnreachableFunc
	Metrics         Metrics
	Log             *slog.Logger
}

// Stack implements udp_in/udp_out and the public open/close/send API.
type Stack struct {
	ip              [4]byte
	ports           *PortTable
	ipSend          IPSendFunc
	icmpUnreachable ICMPUnreachableFunc
	metrics         Metrics
	logger
}

// New constructs a Stack from cfg.
func New(cfg Config) *Stack {
	if cfg.IPSend == nil || cfg.ICMPUnreachable == nil {
		panic("udp: IPSend and ICMPUnreachable callbacks are required")
	}
	return &Stack{
		ip:              cfg.IP,
		ports:           NewPortTable(),
		ipSend:          cfg.IPSend,
		icmpUnreachable: cfg.ICMPUnreachable,
		metrics:         cfg.Metrics,
		logger:          logger{log: cfg.Log},
	}
}

// Open implements udp_open: bind handler to port.
func (s *Stack) Open(port uint16, handler HandlerFunc) {
	s.ports.Open(port, handler)
	if s.metrics != nil {
		s.metrics.SetUDPSocketsOpen(s.ports.Len())
	}
}

// Close implements udp_close: unbind port.
func (s *Stack) Close(port uint16) {
	s.ports.Close(port)
	if s.metrics != nil {
		s.metrics.SetUDPSocketsOpen(s.ports.Len())
	}
}

// Recv implements udp_in. payload is the UDP datagram (header included);
// datagram is the full IP datagram it arrived in, used only to quote an
// offending header back on a port miss.
func (s *Stack) Recv(now time.Time, txbuf *pktbuf.Buf, payload []byte, datagram []byte, srcIP [4]byte) error {
	if len(payload) < HeaderSize {
		s.debug("udp:in:drop-short")
		s.incDropped("malformed")
		return nil
	}
	ufrm, err := NewFrame(payload)
	if err != nil {
		s.incDropped("malformed")
		return nil
	}
	if ufrm.Length() < HeaderSize {
		s.debug("udp:in:drop-bad-length")
		s.incDropped("malformed")
		return nil
	}

	stored := ufrm.CRC()
	computed := ufrm.CalculateChecksum(pseudoHeader{src: srcIP, dst: s.ip})
	if computed != stored {
		s.debug("udp:in:drop-bad-crc")
		s.incDropped("checksum")
		return nil
	}

	dstPort := ufrm.DestinationPort()
	handler, ok := s.ports.Lookup(dstPort)
	if !ok {
		s.info("udp:in:port-unreachable", slog.Uint64("port", uint64(dstPort)))
		if s.metrics != nil {
			s.metrics.IncICMPUnreachable("port_unreachable")
		}
		return s.icmpUnreachable(now, txbuf, srcIP, codePortUnreachable, datagram)
	}
	return handler(now, ufrm.Payload(), srcIP, dstPort)
}

func (s *Stack) incDropped(reason string) {
	if s.metrics != nil {
		s.metrics.IncDropped("rx", reason)
	}
}

// Send implements udp_out: push the 8-byte header onto txbuf's live window
// (which already holds the payload), fill ports/length, compute and store
// the checksum, then hand off to ip_out.
func (s *Stack) Send(now time.Time, txbuf *pktbuf.Buf, srcPort uint16, dstIP [4]byte, dstPort uint16) error {
	txbuf.PushHeader(HeaderSize)
	ufrm, _ := NewFrame(txbuf.Bytes())
	ufrm.SetSourcePort(srcPort)
	ufrm.SetDestinationPort(dstPort)
	ufrm.SetLength(uint16(txbuf.Len()))
	ufrm.SetCRC(0)
	ufrm.SetCRC(ufrm.CalculateChecksum(pseudoHeader{src: s.ip, dst: dstIP}))
	return s.ipSend(now, txbuf, dstIP, ipstack.IPProtoUDP)
}

// SendTo implements udp_send: copy data into txbuf's live window, positioned
// with enough leading slack for UDP+IP+Ethernet headers, then call Send.
func (s *Stack) SendTo(now time.Time, txbuf *pktbuf.Buf, data []byte, srcPort uint16, dstIP [4]byte, dstPort uint16) error {
	const slack = ipstack.SizeHeaderEthernet + ipstack.SizeHeaderIPv4 + HeaderSize
	txbuf.Init(slack, len(data))
	copy(txbuf.Bytes(), data)
	return s.Send(now, txbuf, srcPort, dstIP, dstPort)
}

// pseudoHeader is a minimal pseudoHeaderWriter built from raw addresses,
// avoiding any dependency on the ipv4 package's concrete Frame type.
type pseudoHeader struct{ src, dst [4]byte }

func (p pseudoHeader) WriteUDPPseudoHeader(crc *ipstack.CRC791) {
	crc.WriteEven(p.src[:])
	crc.WriteEven(p.dst[:])
	crc.AddUint16(uint16(ipstack.IPProtoUDP))
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
