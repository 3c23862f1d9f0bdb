package icmpv4

import (
	"testing"

	"github.com/soypat/ipstack/pktbuf"
)

func TestBuildEchoReplyMirrorsRequest(t *testing.T) {
	reqBuf := make([]byte, HeaderSize+32)
	req, err := NewFrame(reqBuf)
	if err != nil {
		t.Fatal(err)
	}
	echoReq := FrameEcho{req}
	echoReq.SetType(TypeEcho)
	echoReq.SetCode(0)
	echoReq.SetIdentifier(0x1234)
	echoReq.SetSequenceNumber(1)
	copy(echoReq.Data(), []byte("0123456789abcdef0123456789abcdef"[:32]))
	echoReq.SetCRC(echoReq.CalculateCRC())

	txbuf := pktbuf.New(128)
	txbuf.Init(64, 0)
	reply := BuildEchoReply(txbuf, echoReq)

	if reply.Type() != TypeEchoReply || reply.Code() != 0 {
		t.Fatalf("unexpected type/code: %v/%d", reply.Type(), reply.Code())
	}
	if reply.Identifier() != 0x1234 || reply.SequenceNumber() != 1 {
		t.Fatalf("id/seq mismatch: %x/%d", reply.Identifier(), reply.SequenceNumber())
	}
	if string(reply.Data()) != string(echoReq.Data()) {
		t.Fatalf("payload mismatch: %q vs %q", reply.Data(), echoReq.Data())
	}
	gotCRC := reply.CRC()
	reply.SetCRC(0)
	wantCRC := reply.CalculateCRC()
	if gotCRC != wantCRC {
		t.Fatalf("checksum mismatch: got %#04x want %#04x", gotCRC, wantCRC)
	}
}

func TestBuildUnreachableQuotesIHLDerivedLength(t *testing.T) {
	offending := make([]byte, 20+16) // IHL=5 header + 16 bytes of upper-layer payload
	offending[0] = 0x45               // version 4, IHL 5

	txbuf := pktbuf.New(128)
	txbuf.Init(64, 0)
	msg := BuildUnreachable(txbuf, CodeProtoUnreachable, offending)

	if msg.Type() != TypeDestinationUnreachable {
		t.Fatalf("type = %v", msg.Type())
	}
	if msg.Code() != CodeProtoUnreachable {
		t.Fatalf("code = %v", msg.Code())
	}
	wantQuoteLen := 20 + 8 // IHL*4 + 8, not the full 16-byte upper payload
	if len(msg.Quote()) != wantQuoteLen {
		t.Fatalf("quote length = %d, want %d", len(msg.Quote()), wantQuoteLen)
	}
	gotCRC := msg.CRC()
	msg.SetCRC(0)
	if want := msg.CalculateCRC(); gotCRC != want {
		t.Fatalf("checksum mismatch: got %#04x want %#04x", gotCRC, want)
	}
}

func TestBuildUnreachableTruncatedOffending(t *testing.T) {
	// Offending datagram shorter than IHL*4+8: quote must not run past it.
	offending := make([]byte, 22)
	offending[0] = 0x45

	txbuf := pktbuf.New(128)
	txbuf.Init(64, 0)
	msg := BuildUnreachable(txbuf, CodePortUnreachable, offending)
	if len(msg.Quote()) != len(offending) {
		t.Fatalf("quote length = %d, want %d (capped to offending length)", len(msg.Quote()), len(offending))
	}
}
