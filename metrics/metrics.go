// Package metrics exposes Prometheus counters and gauges for the packet
// stack: frame and datagram throughput, ARP resolution activity, and the
// drop/unreachable paths each layer can take.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "netlabd"
	subsystem = "stack"
)

// Label names shared across metric vectors.
const (
	labelDirection = "direction" // "rx" or "tx"
	labelReason    = "reason"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Stack Metrics
// -------------------------------------------------------------------------

// Collector holds every Prometheus metric the stack updates as it runs.
//
//   - Frame/datagram counters track link and network layer throughput.
//   - ARP counters track resolution traffic and pending-table pressure.
//   - Drop counters are labeled by reason for alerting on link health.
//   - Socket gauges track the live UDP listener set.
type Collector struct {
	// FramesTotal counts Ethernet frames by direction (rx/tx).
	FramesTotal *prometheus.CounterVec

	// DatagramsTotal counts IPv4 datagrams by direction, including
	// fragments emitted individually during egress fragmentation.
	DatagramsTotal *prometheus.CounterVec

	// FramesDropped counts frames/datagrams discarded during ingress,
	// labeled by the validation failure that caused the drop.
	FramesDropped *prometheus.CounterVec

	// ARPRequests counts ARP requests sent and received, by direction.
	ARPRequests *prometheus.CounterVec

	// ARPReplies counts ARP replies sent and received, by direction.
	ARPReplies *prometheus.CounterVec

	// ARPPendingEntries gauges the current size of the ARP pending table.
	ARPPendingEntries prometheus.Gauge

	// ICMPUnreachableSent counts ICMP destination-unreachable messages
	// emitted, labeled by the reason (protocol vs. port unreachable).
	ICMPUnreachableSent *prometheus.CounterVec

	// UDPSocketsOpen gauges the number of currently bound UDP listeners.
	UDPSocketsOpen prometheus.Gauge
}

// NewCollector creates a Collector with every metric registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.FramesTotal,
		c.DatagramsTotal,
		c.FramesDropped,
		c.ARPRequests,
		c.ARPReplies,
		c.ARPPendingEntries,
		c.ICMPUnreachableSent,
		c.UDPSocketsOpen,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	dirLabels := []string{labelDirection}
	dropLabels := []string{labelDirection, labelReason}

	return &Collector{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_total",
			Help:      "Total Ethernet frames processed, by direction.",
		}, dirLabels),

		DatagramsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "datagrams_total",
			Help:      "Total IPv4 datagrams processed, by direction.",
		}, dirLabels),

		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Total frames/datagrams dropped, labeled by direction and reason.",
		}, dropLabels),

		ARPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "arp_requests_total",
			Help:      "Total ARP requests, by direction.",
		}, dirLabels),

		ARPReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "arp_replies_total",
			Help:      "Total ARP replies, by direction.",
		}, dirLabels),

		ARPPendingEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "arp_pending_entries",
			Help:      "Current number of datagrams parked awaiting ARP resolution.",
		}),

		ICMPUnreachableSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "icmp_unreachable_sent_total",
			Help:      "Total ICMP destination-unreachable messages sent, by reason.",
		}, []string{labelReason}),

		UDPSocketsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "udp_sockets_open",
			Help:      "Current number of bound UDP listener ports.",
		}),
	}
}

// Directions used as the "direction" label value.
const (
	DirectionRX = "rx"
	DirectionTX = "tx"
)

// Drop reasons used as the "reason" label value on FramesDropped.
const (
	ReasonChecksum     = "checksum"
	ReasonMalformed    = "malformed"
	ReasonUnknownProto = "unknown_protocol"
	ReasonPendingDupe  = "pending_duplicate"
	ReasonNoRoute      = "no_route"
)

// Unreachable reasons used as the "reason" label value on ICMPUnreachableSent.
const (
	ReasonProtocolUnreachable = "protocol_unreachable"
	ReasonPortUnreachable     = "port_unreachable"
)

// -------------------------------------------------------------------------
// Frame / Datagram Throughput
// -------------------------------------------------------------------------

// IncFramesReceived increments the received-frame counter.
func (c *Collector) IncFramesReceived() { c.FramesTotal.WithLabelValues(DirectionRX).Inc() }

// IncFramesSent increments the sent-frame counter.
func (c *Collector) IncFramesSent() { c.FramesTotal.WithLabelValues(DirectionTX).Inc() }

// IncDatagramsReceived increments the received-datagram counter.
func (c *Collector) IncDatagramsReceived() { c.DatagramsTotal.WithLabelValues(DirectionRX).Inc() }

// IncDatagramsSent increments the sent-datagram counter, once per fragment
// emitted during egress.
func (c *Collector) IncDatagramsSent() { c.DatagramsTotal.WithLabelValues(DirectionTX).Inc() }

// IncDropped increments the dropped-frame counter for a given direction and
// reason.
func (c *Collector) IncDropped(direction, reason string) {
	c.FramesDropped.WithLabelValues(direction, reason).Inc()
}

// -------------------------------------------------------------------------
// ARP
// -------------------------------------------------------------------------

// IncARPRequestSent increments the sent ARP request counter.
func (c *Collector) IncARPRequestSent() { c.ARPRequests.WithLabelValues(DirectionTX).Inc() }

// IncARPRequestReceived increments the received ARP request counter.
func (c *Collector) IncARPRequestReceived() { c.ARPRequests.WithLabelValues(DirectionRX).Inc() }

// IncARPReplySent increments the sent ARP reply counter.
func (c *Collector) IncARPReplySent() { c.ARPReplies.WithLabelValues(DirectionTX).Inc() }

// IncARPReplyReceived increments the received ARP reply counter.
func (c *Collector) IncARPReplyReceived() { c.ARPReplies.WithLabelValues(DirectionRX).Inc() }

// SetARPPendingEntries sets the current ARP pending-table occupancy.
func (c *Collector) SetARPPendingEntries(n int) { c.ARPPendingEntries.Set(float64(n)) }

// -------------------------------------------------------------------------
// ICMP / UDP
// -------------------------------------------------------------------------

// IncICMPUnreachable increments the ICMP unreachable counter for reason.
func (c *Collector) IncICMPUnreachable(reason string) {
	c.ICMPUnreachableSent.WithLabelValues(reason).Inc()
}

// SetUDPSocketsOpen sets the current count of bound UDP listener ports.
func (c *Collector) SetUDPSocketsOpen(n int) { c.UDPSocketsOpen.Set(float64(n)) }
