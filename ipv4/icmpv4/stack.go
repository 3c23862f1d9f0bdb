package icmpv4

import (
	"log/slog"
	"time"

	"github.com/soypat/ipstack"
	"github.com/soypat/ipstack/internal"
	"github.com/soypat/ipstack/pktbuf"
)

// IPSendFunc hands a fully-built ICMP message, sitting in txbuf's live
// window, down to the IPv4 layer (ip_out) addressed to dstIP.
type IPSendFunc func(now time.Time, txbuf *pktbuf.Buf, dstIP [4]byte, proto ipstack.IPProto) error

// Config configures a Stack.
type Config struct {
	IPSend IPSendFunc
	Log    *slog.Logger
}

// Stack implements icmp_in: Echo Request gets an Echo Reply, everything else
// (including Destination Unreachable arriving from a peer) is dropped. Emitting
// Destination Unreachable on someone else's behalf is ip_in's job, via
// BuildUnreachable directly — Stack only answers echoes.
type Stack struct {
	ipSend IPSendFunc
	logger
}

// New constructs a Stack from cfg.
func New(cfg Config) *Stack {
	if cfg.IPSend == nil {
		panic("icmpv4: IPSend callback is required")
	}
	return &Stack{ipSend: cfg.IPSend, logger: logger{log: cfg.Log}}
}

// Recv implements icmp_in. Its signature matches ipv4.RecvFunc so it can be
// registered directly via ipv4.Stack.AddProtocol(ipstack.IPProtoICMP, ...).
func (s *Stack) Recv(now time.Time, txbuf *pktbuf.Buf, payload []byte, datagram []byte, srcIP [4]byte) error {
	if len(payload) < HeaderSize {
		s.debug("icmpv4:in:drop-short")
		return nil
	}
	frm, err := NewFrame(payload)
	if err != nil {
		return nil
	}
	if frm.Type() != TypeEcho {
		s.debug("icmpv4:in:drop-unhandled-type", slog.Int("type", int(frm.Type())))
		return nil
	}

	stored := frm.CRC()
	frm.SetCRC(0)
	computed := frm.CalculateCRC()
	frm.SetCRC(stored)
	if computed != stored {
		s.debug("icmpv4:in:drop-bad-crc")
		return nil
	}

	// BuildEchoReply pushes the whole reply (header + mirrored data) as one
	// header; reserve exactly that much leading room. ip_out copies this
	// message out and re-initializes txbuf from scratch before pushing its
	// own IP/Ethernet headers, so no lower-layer slack belongs here.
	echoLen := HeaderSize + len(FrameEcho{frm}.Data())
	txbuf.Init(echoLen, 0)
	BuildEchoReply(txbuf, FrameEcho{frm})
	return s.ipSend(now, txbuf, srcIP, ipstack.IPProtoICMP)
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
