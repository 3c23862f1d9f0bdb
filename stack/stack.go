// Package stack wires the five layers (Ethernet, ARP, IPv4, ICMPv4, UDP)
// into the one fixed-topology network interface this module implements:
// one driver, one MAC, one IP, no routing. It owns the two process-wide
// scratch buffers (rxbuf, txbuf) and exposes the public surface a caller
// drives the stack through: New once, Poll on a loop, UDPOpen/UDPClose/
// UDPSend for application traffic.
package stack

import (
	"log/slog"
	"time"

	"github.com/soypat/ipstack"
	"github.com/soypat/ipstack/arp"
	"github.com/soypat/ipstack/ethernet"
	"github.com/soypat/ipstack/ipv4"
	"github.com/soypat/ipstack/ipv4/icmpv4"
	"github.com/soypat/ipstack/metrics"
	"github.com/soypat/ipstack/pktbuf"
	"github.com/soypat/ipstack/udp"
)

// Default buffer and table sizing, used when Config leaves the
// corresponding field at its zero value.
const (
	DefaultBufSize       = 2048
	DefaultARPEntries    = 16
	DefaultARPResolveTTL = 10 * time.Minute
	DefaultARPPendingTTL = time.Second
)

// Config configures a Stack. MAC, IP and Driver are required; every other
// field has a sane default for a single small interface.
type Config struct {
	MAC    [6]byte
	IP     [4]byte
	Driver ethernet.Driver

	// BufSize sizes both rxbuf and txbuf; it must be at least large enough
	// for one unfragmented 1500-byte IPv4 datagram plus the 42 bytes of
	// leading room (ARP + Ethernet header sizes) IPv4 egress reserves.
	BufSize int
	// ARPResolveTTL is how long a resolved IP->MAC mapping is trusted.
	ARPResolveTTL time.Duration
	// ARPPendingTTL is how long a send waits on an in-flight ARP request,
	// and the minimum gap between repeated requests for the same IP.
	ARPPendingTTL time.Duration
	// ARPMaxEntries bounds the ARP resolution and pending tables.
	ARPMaxEntries int

	// Metrics, if non-nil, is wired into every layer for throughput, drop,
	// and ARP/ICMP activity counters. Optional: a nil Metrics leaves every
	// layer's instrumentation as a no-op.
	Metrics *metrics.Collector

	Log *slog.Logger
}

// Stack is the constructed, ready-to-run network interface.
type Stack struct {
	rxbuf *pktbuf.Buf
	txbuf *pktbuf.Buf

	eth  *ethernet.Stack
	arp  *arp.Handler
	ip   *ipv4.Stack
	icmp *icmpv4.Stack
	udp  *udp.Stack
}

// New implements stack_init: construct every layer in dependency order
// (Ethernet first since every other layer's egress bottoms out in it, ARP
// next since IPv4 egress depends on it, then IPv4, then the two protocols
// IPv4 dispatches to) and wire their callbacks together.
func New(cfg Config) *Stack {
	if cfg.Driver == nil {
		panic("stack: Driver is required")
	}
	if cfg.BufSize <= 0 {
		cfg.BufSize = DefaultBufSize
	}
	if cfg.ARPMaxEntries <= 0 {
		cfg.ARPMaxEntries = DefaultARPEntries
	}
	if cfg.ARPResolveTTL <= 0 {
		cfg.ARPResolveTTL = DefaultARPResolveTTL
	}
	if cfg.ARPPendingTTL <= 0 {
		cfg.ARPPendingTTL = DefaultARPPendingTTL
	}

	s := &Stack{
		rxbuf: pktbuf.New(cfg.BufSize),
		txbuf: pktbuf.New(cfg.BufSize),
	}

	// A nil *metrics.Collector must never be assigned to a layer's Metrics
	// interface field directly: that would produce a non-nil interface
	// wrapping a nil pointer, and every layer's "if s.metrics != nil" guard
	// would then call methods on a nil receiver. Only wire it in when present.
	var ethMetrics ethernet.Metrics
	var arpMetrics arp.Metrics
	var ipMetrics ipv4.Metrics
	var udpMetrics udp.Metrics
	if cfg.Metrics != nil {
		ethMetrics, arpMetrics, ipMetrics, udpMetrics = cfg.Metrics, cfg.Metrics, cfg.Metrics, cfg.Metrics
	}

	s.eth = ethernet.New(ethernet.Config{
		MAC:     cfg.MAC,
		Driver:  cfg.Driver,
		Metrics: ethMetrics,
		Log:     cfg.Log,
	})

	s.arp = arp.New(arp.Config{
		MAC:           cfg.MAC,
		IP:            cfg.IP,
		ResolutionTTL: cfg.ARPResolveTTL,
		PendingTTL:    cfg.ARPPendingTTL,
		MaxEntries:    cfg.ARPMaxEntries,
		EthernetOut:   s.eth.Send,
		Metrics:       arpMetrics,
		Log:           cfg.Log,
	})

	s.ip = ipv4.New(ipv4.Config{
		IP:      cfg.IP,
		ArpOut:  s.arp.Out,
		Metrics: ipMetrics,
		Log:     cfg.Log,
	})

	s.icmp = icmpv4.New(icmpv4.Config{
		IPSend: s.ip.Send,
		Log:    cfg.Log,
	})

	s.udp = udp.New(udp.Config{
		IP:     cfg.IP,
		IPSend: s.ip.Send,
		ICMPUnreachable: func(now time.Time, txbuf *pktbuf.Buf, srcIP [4]byte, code uint8, offending []byte) error {
			return s.ip.SendICMPUnreachable(now, txbuf, srcIP, icmpv4.CodeDestinationUnreachable(code), offending)
		},
		Metrics: udpMetrics,
		Log:     cfg.Log,
	})

	s.ip.AddProtocol(ipstack.IPProtoICMP, s.icmp.Recv)
	s.ip.AddProtocol(ipstack.IPProtoUDP, s.udp.Recv)

	s.eth.AddProtocol(ipstack.EtherTypeARP, s.arp.In)
	s.eth.AddProtocol(ipstack.EtherTypeIPv4, func(now time.Time, txbuf *pktbuf.Buf, payload []byte, srcMAC [6]byte) error {
		return s.ip.Recv(now, txbuf, payload)
	})

	return s
}

// Announce sends a self-targeted ARP request announcing this interface's
// presence, meant to be called once after New.
func (s *Stack) Announce(now time.Time) error {
	return s.arp.Announce(now, s.txbuf)
}

// Poll implements stack_poll: drain every frame the driver currently has
// queued, dispatching each through the full Ethernet -> ARP/IPv4 ->
// ICMP/UDP chain before the next driver.Recv call.
func (s *Stack) Poll(now time.Time) error {
	return s.eth.Poll(now, s.rxbuf, s.txbuf)
}

// UDPOpen implements udp_open: bind handler to port on this interface.
func (s *Stack) UDPOpen(port uint16, handler udp.HandlerFunc) {
	s.udp.Open(port, handler)
}

// UDPClose implements udp_close: unbind port.
func (s *Stack) UDPClose(port uint16) {
	s.udp.Close(port)
}

// UDPSend implements udp_send: transmit data from srcPort to dstIP:dstPort.
// The datagram is built in the stack's shared txbuf and may be parked by
// ARP if the next hop isn't resolved yet, per arp_out's pending-table rule.
func (s *Stack) UDPSend(now time.Time, data []byte, srcPort uint16, dstIP [4]byte, dstPort uint16) error {
	return s.udp.SendTo(now, s.txbuf, data, srcPort, dstIP, dstPort)
}

// MAC returns the interface's hardware address.
func (s *Stack) MAC() [6]byte { return s.eth.MAC() }
