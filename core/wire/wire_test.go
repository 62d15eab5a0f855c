package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteHeader_RoundTrip(t *testing.T) {
	h := WriteHeader{
		ChannelID:    2,
		FragmentType: FragmentTypeFullLE,
		TotalSize:    0x1234,
	}

	data := h.Encode()
	if len(data) != WriteHeaderSize {
		t.Fatalf("encoded length = %d, want %d", len(data), WriteHeaderSize)
	}

	// Total size is little endian
	if data[2] != 0x34 || data[3] != 0x12 {
		t.Errorf("total size bytes = %02x %02x, want 34 12", data[2], data[3])
	}

	parsed, err := ParseWriteHeader(data)
	if err != nil {
		t.Fatalf("ParseWriteHeader failed: %v", err)
	}
	if parsed != h {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, h)
	}
}

func TestParseWriteHeader_TooShort(t *testing.T) {
	_, err := ParseWriteHeader([]byte{0x01, 0x03, 0x10})
	if !errors.Is(err, ErrChunkTooShort) {
		t.Errorf("expected ErrChunkTooShort, got %v", err)
	}
}

func TestParseUnifiedHeader(t *testing.T) {
	data := []byte{
		DataTypeHistory, // data type
		StatusOK,        // status
		0x05, 0x00,      // entry count = 5 (LE)
		0x02, // fragment index
		0x04, // total fragments
		0x0C, // fragment size
		0xFF, // reserved
	}

	h, err := ParseUnifiedHeader(data)
	if err != nil {
		t.Fatalf("ParseUnifiedHeader failed: %v", err)
	}

	if h.DataType != DataTypeHistory {
		t.Errorf("DataType = %d, want %d", h.DataType, DataTypeHistory)
	}
	if h.Status != StatusOK {
		t.Errorf("Status = %d, want %d", h.Status, StatusOK)
	}
	if h.EntryCount != 5 {
		t.Errorf("EntryCount = %d, want 5", h.EntryCount)
	}
	if h.FragmentIndex != 2 {
		t.Errorf("FragmentIndex = %d, want 2", h.FragmentIndex)
	}
	if h.TotalFragments != 4 {
		t.Errorf("TotalFragments = %d, want 4", h.TotalFragments)
	}
	if h.FragmentSize != 12 {
		t.Errorf("FragmentSize = %d, want 12", h.FragmentSize)
	}
	if h.Reserved != 0xFF {
		t.Errorf("Reserved = %02x, want ff", h.Reserved)
	}
}

func TestParseUnifiedHeader_Idempotent(t *testing.T) {
	data := []byte{0x02, 0x00, 0x01, 0x00, 0x00, 0x03, 0x08, 0x00, 0xAA, 0xBB}

	first, err := ParseUnifiedHeader(data)
	if err != nil {
		t.Fatalf("first parse failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := ParseUnifiedHeader(data)
		if err != nil {
			t.Fatalf("parse %d failed: %v", i, err)
		}
		if again != first {
			t.Fatalf("parse %d = %+v, want %+v", i, again, first)
		}
	}
}

func TestParseUnifiedHeader_TooShort(t *testing.T) {
	for n := 0; n < UnifiedHeaderSize; n++ {
		_, err := ParseUnifiedHeader(make([]byte, n))
		if !errors.Is(err, ErrHeaderTooShort) {
			t.Errorf("len %d: expected ErrHeaderTooShort, got %v", n, err)
		}
	}
}

func TestUnifiedHeader_RoundTrip(t *testing.T) {
	h := UnifiedHeader{
		DataType:       DataTypeStatistics,
		Status:         StatusBusy,
		EntryCount:     1000,
		FragmentIndex:  1,
		TotalFragments: 7,
		FragmentSize:   12,
	}

	parsed, err := ParseUnifiedHeader(h.Encode())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != h {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, h)
	}
}

func TestNormalizedTotal(t *testing.T) {
	if got := (UnifiedHeader{TotalFragments: 0}).NormalizedTotal(); got != 1 {
		t.Errorf("NormalizedTotal(0) = %d, want 1", got)
	}
	if got := (UnifiedHeader{TotalFragments: 9}).NormalizedTotal(); got != 9 {
		t.Errorf("NormalizedTotal(9) = %d, want 9", got)
	}
}

func TestNormalizedSize(t *testing.T) {
	// Explicit size wins
	h := UnifiedHeader{FragmentSize: 4}
	if got := h.NormalizedSize(20); got != 4 {
		t.Errorf("NormalizedSize = %d, want 4", got)
	}

	// Zero means "whatever remains after the header"
	h = UnifiedHeader{FragmentSize: 0}
	if got := h.NormalizedSize(20); got != 12 {
		t.Errorf("NormalizedSize = %d, want 12", got)
	}
}

func TestEncode_HeaderPrefix(t *testing.T) {
	h := UnifiedHeader{DataType: DataTypeConfig, TotalFragments: 1, FragmentSize: 2}
	chunk := append(h.Encode(), 0xDE, 0xAD)
	if !bytes.Equal(chunk[:UnifiedHeaderSize], h.Encode()) {
		t.Error("header prefix mismatch")
	}
}

func TestNames(t *testing.T) {
	if DataTypeName(DataTypeHistory) != "HISTORY" {
		t.Errorf("DataTypeName(history) = %s", DataTypeName(DataTypeHistory))
	}
	if DataTypeName(0x77) != "UNKNOWN(119)" {
		t.Errorf("DataTypeName(0x77) = %s", DataTypeName(0x77))
	}
	if StatusName(StatusOK) != "OK" {
		t.Errorf("StatusName(ok) = %s", StatusName(StatusOK))
	}
	if StatusName(0x44) != "UNKNOWN(68)" {
		t.Errorf("StatusName(0x44) = %s", StatusName(0x44))
	}
}
