package fragment

import (
	"bytes"
	"errors"
	"testing"

	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/core/wire"
)

func TestChunkCount(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{0, 1},
		{10, 1},
		{16, 1},
		{17, 2},
		{36, 2},
		{37, 3},
		{56, 3},
		{100, 6},
	}
	for _, c := range cases {
		if got := ChunkCount(c.n); got != c.want {
			t.Errorf("ChunkCount(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func makePayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i)
	}
	return p
}

// reassemble strips the write header from chunk 0 and concatenates the rest.
func reassemble(chunks [][]byte) []byte {
	var out []byte
	out = append(out, chunks[0][wire.WriteHeaderSize:]...)
	for _, c := range chunks[1:] {
		out = append(out, c...)
	}
	return out
}

func TestSplit_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 10, 16, 17, 36, 37, 56, 100, 255, 1000} {
		payload := makePayload(n)

		chunks, err := Split(3, payload)
		if err != nil {
			t.Fatalf("n=%d: Split failed: %v", n, err)
		}
		if len(chunks) != ChunkCount(n) {
			t.Errorf("n=%d: %d chunks, want %d", n, len(chunks), ChunkCount(n))
		}
		for i, c := range chunks {
			if len(c) > wire.MaxChunkSize {
				t.Errorf("n=%d: chunk %d is %d bytes, exceeds %d", n, i, len(c), wire.MaxChunkSize)
			}
		}

		h, err := wire.ParseWriteHeader(chunks[0])
		if err != nil {
			t.Fatalf("n=%d: bad first chunk: %v", n, err)
		}
		if h.ChannelID != 3 {
			t.Errorf("n=%d: channel = %d, want 3", n, h.ChannelID)
		}
		if h.FragmentType != wire.FragmentTypeFullLE {
			t.Errorf("n=%d: fragment type = %02x, want %02x", n, h.FragmentType, wire.FragmentTypeFullLE)
		}
		if int(h.TotalSize) != n {
			t.Errorf("n=%d: total size = %d", n, h.TotalSize)
		}

		if got := reassemble(chunks); !bytes.Equal(got, payload) {
			t.Errorf("n=%d: round trip mismatch", n)
		}
	}
}

func TestSplit_SingleChunkExact(t *testing.T) {
	chunks, err := Split(0, makePayload(16))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("%d chunks, want 1", len(chunks))
	}
	if len(chunks[0]) != wire.MaxChunkSize {
		t.Errorf("chunk is %d bytes, want %d", len(chunks[0]), wire.MaxChunkSize)
	}
}

func TestSplit_EmptyPayload(t *testing.T) {
	chunks, err := Split(1, nil)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("%d chunks, want 1", len(chunks))
	}
	if len(chunks[0]) != wire.WriteHeaderSize {
		t.Errorf("chunk is %d bytes, want header only", len(chunks[0]))
	}
}

func TestSplit_PayloadTooLarge(t *testing.T) {
	_, err := Split(0, make([]byte, wire.MaxPayloadSize+1))
	if !errors.Is(err, wire.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}

	// Exactly at the limit is fine
	if _, err := Split(0, make([]byte, wire.MaxPayloadSize)); err != nil {
		t.Errorf("max-size payload rejected: %v", err)
	}
}

type rangeValidator uint8

func (r rangeValidator) ValidChannel(channel uint8) bool {
	return channel < uint8(r)
}

func TestSplitValidated(t *testing.T) {
	_, err := SplitValidated(rangeValidator(4), 4, []byte{0x01})
	if !errors.Is(err, wire.ErrInvalidChannel) {
		t.Errorf("expected ErrInvalidChannel, got %v", err)
	}

	chunks, err := SplitValidated(rangeValidator(4), 3, []byte{0x01})
	if err != nil {
		t.Fatalf("valid channel rejected: %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("%d chunks, want 1", len(chunks))
	}

	// Nil validator skips the range check
	if _, err := SplitValidated(nil, 200, []byte{0x01}); err != nil {
		t.Errorf("nil validator: %v", err)
	}
}
