package udp

import (
	"testing"

	"github.com/soypat/ipstack"
)

func TestFrameRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderSize+5)
	f, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	f.SetSourcePort(1000)
	f.SetDestinationPort(2000)
	f.SetLength(uint16(len(buf)))
	copy(f.Payload(), "hello")

	if f.SourcePort() != 1000 || f.DestinationPort() != 2000 {
		t.Fatal("port mismatch")
	}
	if string(f.Payload()) != "hello" {
		t.Fatalf("payload = %q", f.Payload())
	}
}

func TestChecksumEvenAndOddPayload(t *testing.T) {
	for _, payload := range [][]byte{[]byte("even!!"), []byte("odd")} {
		buf := make([]byte, HeaderSize+len(payload))
		f, _ := NewFrame(buf)
		f.SetSourcePort(1000)
		f.SetDestinationPort(2000)
		f.SetLength(uint16(len(buf)))
		copy(f.Payload(), payload)

		ph := pseudoHeader{src: [4]byte{10, 0, 0, 1}, dst: [4]byte{10, 0, 0, 2}}
		f.SetCRC(0)
		f.SetCRC(f.CalculateChecksum(ph))

		stored := f.CRC()
		f.SetCRC(0)
		recomputed := f.CalculateChecksum(ph)
		if recomputed != stored {
			t.Fatalf("payload %q: checksum invariant violated: stored=%#04x recomputed=%#04x", payload, stored, recomputed)
		}
		f.SetCRC(stored)
	}
}

func TestValidateSizeRejectsBadLength(t *testing.T) {
	buf := make([]byte, HeaderSize+4)
	f, _ := NewFrame(buf)
	f.SetLength(3) // shorter than HeaderSize
	var v ipstack.Validator
	f.ValidateSize(&v)
	if !v.HasError() {
		t.Fatal("expected error for length < header size")
	}
}
