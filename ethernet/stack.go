package ethernet

import (
	"log/slog"
	"time"

	"github.com/soypat/ipstack"
	"github.com/soypat/ipstack/internal"
	"github.com/soypat/ipstack/pktbuf"
)

// RecvFunc receives a validated upper-layer payload and the frame's source
// hardware address. txbuf is the scratch buffer available for any
// synchronous reply (an ARP reply, an ICMP echo reply, ...) the handler
// needs to emit before returning.
type RecvFunc func(now time.Time, txbuf *pktbuf.Buf, payload []byte, srcMAC [6]byte) error

// Driver is the only contract this stack has with the outside world: send a
// complete frame, or try to receive one non-blockingly. Implementations
// (a TAP device, a pcap handle, an in-memory loopback) live outside this
// package.
type Driver interface {
	// Send transmits a complete, already-padded Ethernet frame.
	Send(frame []byte) error
	// Recv attempts to fill buf with one received frame without blocking,
	// returning its length, or n<=0 if none was available.
	Recv(buf []byte) (n int, err error)
}

type ethHandler struct {
	et   ipstack.EtherType
	recv RecvFunc
}

// Metrics receives frame-level throughput and drop counts. Satisfied
// structurally by *metrics.Collector; defined locally so this package
// doesn't import the metrics package.
type Metrics interface {
	IncFramesSent()
	IncFramesReceived()
	IncDropped(direction, reason string)
}

// Config configures a Stack.
type Config struct {
	MAC     [6]byte
	Driver  Driver
	Metrics Metrics
	Log     *slog.Logger
}

// Stack implements Ethernet II framing in/out, tail-padding to the minimum
// frame size, and ethertype-keyed protocol dispatch (net_in/net_dispatch).
type Stack struct {
	mac      [6]byte
	driver   Driver
	handlers []ethHandler
	metrics  Metrics
	logger
}

// New constructs a Stack from cfg.
func New(cfg Config) *Stack {
	if cfg.Driver == nil {
		panic("ethernet: Driver is required")
	}
	return &Stack{mac: cfg.MAC, driver: cfg.Driver, metrics: cfg.Metrics, logger: logger{log: cfg.Log}}
}

// MAC returns the interface's hardware address.
func (s *Stack) MAC() [6]byte { return s.mac }

// AddProtocol registers recv as the handler for Ethernet frames carrying et.
func (s *Stack) AddProtocol(et ipstack.EtherType, recv RecvFunc) {
	s.handlers = append(s.handlers, ethHandler{et: et, recv: recv})
}

// Recv implements ethernet_in: parse frame's header and dispatch its payload
// to whichever protocol handler matches the EtherType field. frame is
// expected to already sit in the caller's receive buffer's live window.
func (s *Stack) Recv(now time.Time, txbuf *pktbuf.Buf, frame []byte) error {
	efrm, err := NewFrame(frame)
	if err != nil {
		s.debug("ethernet:in:drop-short")
		s.incDropped("rx", "malformed")
		return nil
	}
	et := efrm.EtherType()
	if et.IsSize() {
		s.debug("ethernet:in:drop-802.3-size-field")
		s.incDropped("rx", "malformed")
		return nil
	}
	if s.metrics != nil {
		s.metrics.IncFramesReceived()
	}
	srcMAC := *efrm.Source()
	upper := efrm.Payload()
	for _, h := range s.handlers {
		if h.et == et {
			return h.recv(now, txbuf, upper, srcMAC)
		}
	}
	s.debug("ethernet:in:no-handler", slog.Uint64("ethertype", uint64(et)))
	s.incDropped("rx", "unknown_protocol")
	return nil
}

func (s *Stack) incDropped(direction, reason string) {
	if s.metrics != nil {
		s.metrics.IncDropped(direction, reason)
	}
}

// Send implements ethernet_out: push the 14-byte header onto txbuf's live
// window (which already holds the frame's payload), pad the tail to the
// minimum frame size if needed, and hand the frame to the driver.
func (s *Stack) Send(txbuf *pktbuf.Buf, dst [6]byte, et ipstack.EtherType) error {
	txbuf.PushHeader(HeaderSize)
	if need := HeaderSize + MinPayload - txbuf.Len(); need > 0 {
		txbuf.PadTail(need)
	}
	efrm, _ := NewFrame(txbuf.Bytes())
	efrm.SetDestination(dst)
	efrm.SetSource(s.mac)
	efrm.SetEtherType(et)
	if err := s.driver.Send(txbuf.Bytes()); err != nil {
		s.error("ethernet:out:link-tx-fail", slog.String("err", err.Error()))
		return ipstack.ErrLinkTxFail
	}
	if s.metrics != nil {
		s.metrics.IncFramesSent()
	}
	return nil
}

// Poll implements ethernet_poll: drain the driver until it reports no frame
// available, dispatching each received frame through Recv before the next
// driver.Recv call, per the ordering rule in §5 (one frame's processing,
// including any synchronous reply, completes before the next recv). rxbuf
// and txbuf are the process-wide singletons threaded in by the caller.
func (s *Stack) Poll(now time.Time, rxbuf, txbuf *pktbuf.Buf) error {
	for {
		rxbuf.Init(0, rxbuf.Cap())
		n, err := s.driver.Recv(rxbuf.Bytes())
		if err != nil {
			return err
		}
		if n <= 0 {
			return nil
		}
		rxbuf.SetLen(n)
		if err := s.Recv(now, txbuf, rxbuf.Bytes()); err != nil {
			s.debug("ethernet:poll:handler-err", slog.String("err", err.Error()))
		}
	}
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
