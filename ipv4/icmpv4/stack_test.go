package icmpv4

import (
	"testing"
	"time"

	"github.com/soypat/ipstack"
	"github.com/soypat/ipstack/pktbuf"
)

// TestEchoScenario matches spec scenario 1: a valid Echo Request gets an
// Echo Reply with identical payload, id and sequence number.
func TestEchoScenario(t *testing.T) {
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
	copy(echoReq.Data(), []byte("01234567890123456789012345678901"[:32]))
	echoReq.SetCRC(echoReq.CalculateCRC())

	var sentTo [4]byte
	var sentProto ipstack.IPProto
	var sentBytes []byte
	s := New(Config{
		IPSend: func(now time.Time, txbuf *pktbuf.Buf, dstIP [4]byte, proto ipstack.IPProto) error {
			sentTo = dstIP
			sentProto = proto
			sentBytes = append([]byte(nil), txbuf.Bytes()...)
			return nil
		},
	})

	txbuf := pktbuf.New(128)
	peer := [4]byte{10, 0, 0, 2}
	if err := s.Recv(time.Unix(0, 0), txbuf, reqBuf, reqBuf, peer); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if sentTo != peer || sentProto != ipstack.IPProtoICMP {
		t.Fatalf("unexpected egress target %v/%v", sentTo, sentProto)
	}

	reply, err := NewFrame(sentBytes)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Type() != TypeEchoReply || reply.Code() != 0 {
		t.Fatalf("unexpected type/code: %v/%d", reply.Type(), reply.Code())
	}
	echoReply := FrameEcho{reply}
	if echoReply.Identifier() != 0x1234 || echoReply.SequenceNumber() != 1 {
		t.Fatalf("id/seq mismatch")
	}
	if string(echoReply.Data()) != string(echoReq.Data()) {
		t.Fatalf("payload mismatch: %q vs %q", echoReply.Data(), echoReq.Data())
	}
	stored := reply.CRC()
	reply.SetCRC(0)
	if want := reply.CalculateCRC(); want != stored {
		t.Fatalf("checksum mismatch: got %#04x want %#04x", stored, want)
	}
}

// TestEchoScenarioOddLength guards against the two bugs a previous review
// caught together: CalculateCRC indexing past an odd-length buffer, and
// txbuf's leading room being sized for link-layer headers instead of the
// echo message BuildEchoReply actually pushes.
func TestEchoScenarioOddLength(t *testing.T) {
	const dataLen = 31 // odd
	reqBuf := make([]byte, HeaderSize+dataLen)
	req, err := NewFrame(reqBuf)
	if err != nil {
		t.Fatal(err)
	}
	echoReq := FrameEcho{req}
	echoReq.SetType(TypeEcho)
	echoReq.SetCode(0)
	echoReq.SetIdentifier(0x4242)
	echoReq.SetSequenceNumber(7)
	copy(echoReq.Data(), []byte("0123456789012345678901234567890"[:dataLen]))
	echoReq.SetCRC(echoReq.CalculateCRC())

	var sentBytes []byte
	s := New(Config{
		IPSend: func(now time.Time, txbuf *pktbuf.Buf, dstIP [4]byte, proto ipstack.IPProto) error {
			sentBytes = append([]byte(nil), txbuf.Bytes()...)
			return nil
		},
	})

	txbuf := pktbuf.New(128)
	peer := [4]byte{10, 0, 0, 3}
	if err := s.Recv(time.Unix(0, 0), txbuf, reqBuf, reqBuf, peer); err != nil {
		t.Fatalf("Recv: %v", err)
	}

	reply, err := NewFrame(sentBytes)
	if err != nil {
		t.Fatal(err)
	}
	echoReply := FrameEcho{reply}
	if string(echoReply.Data()) != string(echoReq.Data()) {
		t.Fatalf("payload mismatch: %q vs %q", echoReply.Data(), echoReq.Data())
	}
	stored := reply.CRC()
	reply.SetCRC(0)
	if want := reply.CalculateCRC(); want != stored {
		t.Fatalf("checksum mismatch: got %#04x want %#04x", stored, want)
	}
}

func TestRecvIgnoresNonEchoTypes(t *testing.T) {
	buf := make([]byte, HeaderSize)
	frm, _ := NewFrame(buf)
	frm.SetType(TypeEchoReply) // not Echo Request; we don't answer replies

	called := false
	s := New(Config{
		IPSend: func(now time.Time, txbuf *pktbuf.Buf, dstIP [4]byte, proto ipstack.IPProto) error {
			called = true
			return nil
		},
	})
	txbuf := pktbuf.New(128)
	if err := s.Recv(time.Unix(0, 0), txbuf, buf, buf, [4]byte{10, 0, 0, 2}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("expected no egress for a non-echo-request message")
	}
}
