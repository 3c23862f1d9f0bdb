package udp

import "time"

// HandlerFunc is invoked for every UDP datagram delivered to the port it was
// registered under. payload excludes the UDP header; srcIP and dstPort
// identify where the datagram came from and which local port it targeted.
// Mirrors the upstream handler signature exactly: there is no source-port
// parameter, so a handler that needs to reply must already know its peer's
// port out of band (e.g. a fixed well-known port), or accept payload-encoded
// addressing. This is not an omission introduced here — it is carried over
// faithfully from the reference implementation.
type HandlerFunc func(now time.Time, payload []byte, srcIP [4]byte, dstPort uint16) error

// PortTable maps destination port to HandlerFunc. Unlike the ARP tables,
// entries never expire: a bound port stays bound until udp_close removes it.
// ttlstore's lazy-TTL expiry doesn't fit that "ttl = 0 means no eviction"
// requirement (a zero TTL would expire every entry on the very next lookup,
// not never), so the port table is a plain map instead — see DESIGN.md.
type PortTable struct {
	handlers map[uint16]HandlerFunc
}

// NewPortTable returns an empty PortTable.
func NewPortTable() *PortTable {
	return &PortTable{handlers: make(map[uint16]HandlerFunc)}
}

// Open binds port to handler, replacing any existing binding.
func (t *PortTable) Open(port uint16, handler HandlerFunc) {
	t.handlers[port] = handler
}

// Close unbinds port, if bound.
func (t *PortTable) Close(port uint16) {
	delete(t.handlers, port)
}

// Lookup returns the handler bound to port, if any.
func (t *PortTable) Lookup(port uint16) (HandlerFunc, bool) {
	h, ok := t.handlers[port]
	return h, ok
}

// Len returns the number of currently bound ports.
func (t *PortTable) Len() int { return len(t.handlers) }
