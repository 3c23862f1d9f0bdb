// Package driver implements the ethernet.Driver contract: something that can
// send and non-blockingly receive complete Ethernet frames. Loopback is an
// in-memory driver for tests and examples; Tap (linux only) backs a real
// TAP interface.
package driver

import "sync"

// Loopback is an in-memory Driver backed by a mutex-guarded frame queue. Two Loopback values built
// with NewLoopbackPair feed each other's Recv from the other's Send, letting
// a test drive two full Stacks against each other without a kernel network
// device.
type Loopback struct {
	mu    sync.Mutex
	inbox [][]byte
	peer  *Loopback
}

// NewLoopback returns a standalone Loopback with no peer. Frames handed to
// Send are discarded; there is no way to attach a peer afterwards.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// NewLoopbackPair returns two Loopback drivers wired to each other: a Send
// on one becomes a Recv on the other.
func NewLoopbackPair() (a, b *Loopback) {
	a, b = &Loopback{}, &Loopback{}
	a.peer, b.peer = b, a
	return a, b
}

// Send implements ethernet.Driver: hand frame to the peer's inbox. frame is
// copied since the caller's txbuf is reused immediately after Send returns.
func (l *Loopback) Send(frame []byte) error {
	if l.peer == nil {
		return nil
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.peer.mu.Lock()
	l.peer.inbox = append(l.peer.inbox, cp)
	l.peer.mu.Unlock()
	return nil
}

// Recv implements ethernet.Driver: pop the oldest queued frame into buf, or
// return 0 if none is queued.
func (l *Loopback) Recv(buf []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inbox) == 0 {
		return 0, nil
	}
	frame := l.inbox[0]
	l.inbox = l.inbox[1:]
	return copy(buf, frame), nil
}
