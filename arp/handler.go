package arp

import (
	"log/slog"
	"time"

	"github.com/soypat/ipstack"
	"github.com/soypat/ipstack/ethernet"
	"github.com/soypat/ipstack/internal"
	"github.com/soypat/ipstack/internal/ttlstore"
	"github.com/soypat/ipstack/pktbuf"
)

// EthernetOutFunc hands a fully-built IPv4 or ARP payload (already sitting in
// the live window of buf) down to the Ethernet layer for framing and
// transmission. Handler never touches the driver directly.
type EthernetOutFunc func(buf *pktbuf.Buf, dst [6]byte, ethertype ipstack.EtherType) error

// Metrics receives ARP request/reply counts and pending-table occupancy.
// Satisfied structurally by *metrics.Collector.
type Metrics interface {
	IncARPRequestSent()
	IncARPRequestReceived()
	IncARPReplySent()
	IncARPReplyReceived()
	SetARPPendingEntries(n int)
}

// Config configures a Handler.
type Config struct {
	MAC [6]byte
	IP  [4]byte
	// ResolutionTTL is ARP_TIMEOUT: how long a resolved (IP -> MAC) entry is trusted.
	ResolutionTTL time.Duration
	// PendingTTL is ARP_MIN_INTERVAL: how long a pending frame waits for a
	// reply, which doubles as the minimum gap between requests for the same
	// destination.
	PendingTTL time.Duration
	// MaxEntries bounds both the resolution and pending tables.
	MaxEntries  int
	EthernetOut EthernetOutFunc
	Metrics     Metrics
	Log         *slog.Logger
}

// Handler implements the ARP resolution state machine: a resolution table
// (IP -> MAC, TTL = ARP_TIMEOUT) and a pending table (IP -> parked egress
// buffer, TTL = ARP_MIN_INTERVAL) that together let arp_out suspend an IPv4
// send until the peer's MAC is known.
type Handler struct {
	mac        [6]byte
	ip         [4]byte
	resolution *ttlstore.Store[[4]byte, [6]byte]
	pending    *ttlstore.Store[[4]byte, *pktbuf.Buf]
	ethOut     EthernetOutFunc
	metrics    Metrics
	logger
}

// New constructs a Handler from cfg.
func New(cfg Config) *Handler {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 16
	}
	if cfg.EthernetOut == nil {
		panic("arp: EthernetOut callback is required")
	}
	return &Handler{
		mac:        cfg.MAC,
		ip:         cfg.IP,
		resolution: ttlstore.New[[4]byte, [6]byte](cfg.MaxEntries, cfg.ResolutionTTL, nil),
		pending:    ttlstore.New[[4]byte, *pktbuf.Buf](cfg.MaxEntries, cfg.PendingTTL, (*pktbuf.Buf).Copy),
		ethOut:     cfg.EthernetOut,
		metrics:    cfg.Metrics,
		logger:     logger{log: cfg.Log},
	}
}

// PendingLen returns the current number of datagrams parked in the pending
// table awaiting ARP resolution.
func (h *Handler) PendingLen() int { return h.pending.Len() }

// Lookup returns the resolved MAC for ip, if any unexpired entry exists.
func (h *Handler) Lookup(now time.Time, ip [4]byte) (mac [6]byte, ok bool) {
	return h.resolution.Get(now, ip)
}

// Announce emits a self-targeted ARP request to announce this interface's
// presence on the link, run once at stack init. It is intentionally narrow:
// re-announcing NET_IF_IP is the only gratuitous-ARP behavior this stack
// performs; a general probe/gratuitous-ARP API is out of scope (Non-goals).
func (h *Handler) Announce(now time.Time, txbuf *pktbuf.Buf) error {
	return h.Req(now, txbuf, h.ip)
}

// Req implements arp_req: emit a broadcast request for targetIP with
// sender = self and a zeroed target MAC.
func (h *Handler) Req(now time.Time, txbuf *pktbuf.Buf, targetIP [4]byte) error {
	txbuf.Init(ethernet.HeaderSize+HeaderSize, 0)
	hdr := txbuf.PushHeader(HeaderSize)
	afrm, _ := NewFrame(hdr)
	afrm.SetFixedFields()
	afrm.SetOperation(ipstack.ARPRequest)
	*afrm.SenderMAC() = h.mac
	*afrm.SenderIP() = h.ip
	*afrm.TargetMAC() = [6]byte{}
	*afrm.TargetIP() = targetIP
	h.trace("arp:req", slog.Uint64("target_ip", addr4key(targetIP)))
	if h.metrics != nil {
		h.metrics.IncARPRequestSent()
	}
	return h.ethOut(txbuf, ethernet.BroadcastAddr(), ipstack.EtherTypeARP)
}

// Resp implements arp_resp: emit a unicast reply to targetMAC, echoing
// targetIP/targetMAC back as the ARP target fields per RFC 826.
func (h *Handler) Resp(now time.Time, txbuf *pktbuf.Buf, targetIP [4]byte, targetMAC [6]byte) error {
	txbuf.Init(ethernet.HeaderSize+HeaderSize, 0)
	hdr := txbuf.PushHeader(HeaderSize)
	afrm, _ := NewFrame(hdr)
	afrm.SetFixedFields()
	afrm.SetOperation(ipstack.ARPReply)
	*afrm.SenderMAC() = h.mac
	*afrm.SenderIP() = h.ip
	*afrm.TargetMAC() = targetMAC
	*afrm.TargetIP() = targetIP
	h.trace("arp:resp", slog.Uint64("target_ip", addr4key(targetIP)))
	if h.metrics != nil {
		h.metrics.IncARPReplySent()
	}
	return h.ethOut(txbuf, targetMAC, ipstack.EtherTypeARP)
}

// In implements arp_in: validate, upsert the resolution table, flush any
// pending frame waiting on the sender, and answer requests for our own IP.
func (h *Handler) In(now time.Time, txbuf *pktbuf.Buf, payload []byte, srcMAC [6]byte) error {
	afrm, err := NewFrame(payload)
	if err != nil {
		return ipstack.ErrInvalidFrame
	}
	var v ipstack.Validator
	afrm.Validate(&v)
	if v.HasError() {
		h.debug("arp:in:drop", slog.String("err", v.Err().Error()))
		return ipstack.ErrInvalidFrame
	}

	if h.metrics != nil {
		if afrm.Operation() == ipstack.ARPRequest {
			h.metrics.IncARPRequestReceived()
		} else {
			h.metrics.IncARPReplyReceived()
		}
	}

	senderIP := *afrm.SenderIP()
	senderMAC := *afrm.SenderMAC()
	h.resolution.Set(now, senderIP, senderMAC)

	if pend, ok := h.pending.Get(now, senderIP); ok {
		h.pending.Delete(senderIP)
		h.info("arp:in:resolved", slog.Uint64("ip", addr4key(senderIP)))
		if h.metrics != nil {
			h.metrics.SetARPPendingEntries(h.pending.Len())
		}
		return h.ethOut(pend, senderMAC, ipstack.EtherTypeIPv4)
	}
	if afrm.Operation() == ipstack.ARPRequest && *afrm.TargetIP() == h.ip {
		return h.Resp(now, txbuf, senderIP, srcMAC)
	}
	return nil
}

// Out implements arp_out: the IPv4 layer's sole entry point into ARP.
// Resolved destinations go straight to Ethernet; unresolved destinations
// park buf (deep-copied) in the pending table and trigger a request, unless
// a request is already in flight, in which case buf is dropped.
func (h *Handler) Out(now time.Time, buf *pktbuf.Buf, nextHopIP [4]byte) error {
	if mac, ok := h.resolution.Get(now, nextHopIP); ok {
		return h.ethOut(buf, mac, ipstack.EtherTypeIPv4)
	}
	if h.pending.Has(now, nextHopIP) {
		h.debug("arp:out:dedup-drop", slog.Uint64("ip", addr4key(nextHopIP)))
		return ipstack.ErrNoRoute
	}
	h.pending.Set(now, nextHopIP, buf) // deep copy, buf itself is about to be reused for the request.
	if h.metrics != nil {
		h.metrics.SetARPPendingEntries(h.pending.Len())
	}
	return h.Req(now, buf, nextHopIP)
}

func addr4key(ip [4]byte) uint64 {
	return uint64(ip[0])<<24 | uint64(ip[1])<<16 | uint64(ip[2])<<8 | uint64(ip[3])
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
