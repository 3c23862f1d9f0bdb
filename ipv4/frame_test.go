package ipv4

import (
	"testing"

	"github.com/soypat/ipstack"
)

func newTestFrame(t *testing.T, payloadLen int) Frame {
	t.Helper()
	buf := make([]byte, HeaderSize+payloadLen)
	f, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	f.ClearHeader()
	f.SetVersionAndIHL(4, 5)
	f.SetToS(0)
	f.SetTotalLength(uint16(HeaderSize + payloadLen))
	f.SetID(0xbeef)
	f.SetFlags(0)
	f.SetTTL(64)
	f.SetProtocol(ipstack.IPProtoUDP)
	*f.SourceAddr() = [4]byte{10, 0, 0, 1}
	*f.DestinationAddr() = [4]byte{10, 0, 0, 2}
	return f
}

func TestFrameRoundTrip(t *testing.T) {
	f := newTestFrame(t, 8)
	if f.HeaderLength() != HeaderSize {
		t.Fatalf("header length = %d, want %d", f.HeaderLength(), HeaderSize)
	}
	if f.TotalLength() != HeaderSize+8 {
		t.Fatalf("total length mismatch")
	}
	if f.ID() != 0xbeef {
		t.Fatalf("id mismatch")
	}
	if f.TTL() != 64 || f.Protocol() != ipstack.IPProtoUDP {
		t.Fatalf("ttl/proto mismatch")
	}
	if *f.SourceAddr() != [4]byte{10, 0, 0, 1} || *f.DestinationAddr() != [4]byte{10, 0, 0, 2} {
		t.Fatalf("address mismatch")
	}
}

// verify_checksum(h) == true iff checksum16(h_with_zero_cksum) == stored_cksum.
func TestChecksumInvariant(t *testing.T) {
	f := newTestFrame(t, 8)
	f.SetCRC(f.CalculateHeaderCRC())

	stored := f.CRC()
	f.SetCRC(0)
	recomputed := f.CalculateHeaderCRC()
	if recomputed != stored {
		t.Fatalf("checksum invariant violated: stored=%#04x recomputed=%#04x", stored, recomputed)
	}
	f.SetCRC(stored) // restore, as ingress verification must

	// Corrupting any header byte must break the invariant.
	f.buf[8]++ // TTL
	broken := f.CalculateHeaderCRC()
	if broken == stored {
		t.Fatal("expected checksum to change after header corruption")
	}
}

func TestValidateSizeRejectsBadLengths(t *testing.T) {
	f := newTestFrame(t, 8)
	f.SetTotalLength(HeaderSize - 1)
	var v ipstack.Validator
	v.AllowMultipleErrors = true
	f.ValidateSize(&v)
	if !v.HasError() {
		t.Fatal("expected error for total length < header size")
	}

	f2 := newTestFrame(t, 8)
	f2.SetTotalLength(0xffff) // exceeds actual buffer
	var v2 ipstack.Validator
	f2.ValidateSize(&v2)
	if !v2.HasError() {
		t.Fatal("expected error for total length exceeding buffer")
	}
}

func TestValidateExceptCRCRejectsBadVersion(t *testing.T) {
	f := newTestFrame(t, 8)
	f.SetVersionAndIHL(6, 5)
	var v ipstack.Validator
	f.ValidateExceptCRC(&v)
	if !v.HasError() {
		t.Fatal("expected error for version != 4")
	}
}

func TestPayloadSlicesCorrectRange(t *testing.T) {
	f := newTestFrame(t, 8)
	copy(f.Payload(), []byte("abcdefgh"))
	if string(f.Payload()) != "abcdefgh" {
		t.Fatalf("payload = %q", f.Payload())
	}
}
