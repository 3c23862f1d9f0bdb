package ethernet

import (
	"testing"

	"github.com/soypat/ipstack"
)

func TestFrameFields(t *testing.T) {
	buf := make([]byte, 14+4)
	f, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	dst := [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	src := [6]byte{0x02, 0x02, 0x02, 0x02, 0x02, 0x02}
	f.SetDestination(dst)
	f.SetSource(src)
	f.SetEtherType(ipstack.EtherTypeIPv4)

	if *f.Destination() != dst {
		t.Errorf("destination mismatch")
	}
	if *f.Source() != src {
		t.Errorf("source mismatch")
	}
	if f.EtherType() != ipstack.EtherTypeIPv4 {
		t.Errorf("ethertype mismatch: got %v", f.EtherType())
	}
	if len(f.Payload()) != 4 {
		t.Errorf("payload length = %d, want 4", len(f.Payload()))
	}
}

func TestBroadcast(t *testing.T) {
	buf := make([]byte, 14)
	f, _ := NewFrame(buf)
	bc := BroadcastAddr()
	f.SetDestination(bc)
	if !f.IsBroadcast() {
		t.Fatal("expected broadcast destination to be recognized")
	}
	f.SetDestination([6]byte{1, 2, 3, 4, 5, 6})
	if f.IsBroadcast() {
		t.Fatal("unicast destination misidentified as broadcast")
	}
}

func TestShortFrame(t *testing.T) {
	_, err := NewFrame(make([]byte, 13))
	if err == nil {
		t.Fatal("expected error for sub-header-size buffer")
	}
}
