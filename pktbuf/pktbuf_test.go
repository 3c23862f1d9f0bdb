package pktbuf

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestRoundTripHeaders(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	payload := make([]byte, 64)
	rng.Read(payload)

	b := New(256)
	b.Init(64, len(payload))
	copy(b.Bytes(), payload)

	eth := b.PushHeader(14)
	rng.Read(eth)
	ip := b.PushHeader(20)
	rng.Read(ip)

	b.PadTail(6)
	b.UnpadTail(6)

	b.PopHeader(20)
	b.PopHeader(14)

	if !bytes.Equal(b.Bytes(), payload) {
		t.Fatalf("round trip mutated payload: got %x want %x", b.Bytes(), payload)
	}
}

func TestPushHeaderBounds(t *testing.T) {
	b := New(32)
	b.Init(4, 8)
	defer func() {
		if recover() == nil {
			t.Fatal("expected BufBounds panic")
		}
	}()
	b.PushHeader(5) // only 4 bytes of slack available
}

func TestPopHeaderBounds(t *testing.T) {
	b := New(32)
	b.Init(0, 8)
	defer func() {
		if recover() == nil {
			t.Fatal("expected BufBounds panic")
		}
	}()
	b.PopHeader(9)
}

func TestCopyIsIndependent(t *testing.T) {
	b := New(32)
	b.Init(0, 4)
	copy(b.Bytes(), []byte{1, 2, 3, 4})
	cp := b.Copy()
	b.Bytes()[0] = 0xff
	if cp.Bytes()[0] != 1 {
		t.Fatalf("Copy aliased original buffer: got %x", cp.Bytes())
	}
}
