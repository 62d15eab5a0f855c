// Package wire defines the byte-level layout of the autowatering
// controller's GATT fragmentation protocol.
//
// The controller exposes its data over an MTU-limited characteristic: every
// transmission unit carries at most 20 bytes. Outbound writes prepend a
// 4-byte header to the first chunk only; inbound notifications carry an
// 8-byte header on every chunk. Multi-byte fields are little endian.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxChunkSize is the maximum number of bytes deliverable in a single
	// transmission unit on the characteristic.
	MaxChunkSize = 20

	// WriteHeaderSize is the size of the header prepended to the first
	// chunk of an outbound write.
	WriteHeaderSize = 4

	// UnifiedHeaderSize is the size of the header present on every inbound
	// notification chunk.
	UnifiedHeaderSize = 8

	// FirstChunkPayload is the payload capacity of an outbound first chunk.
	FirstChunkPayload = MaxChunkSize - WriteHeaderSize

	// FragmentTypeFullLE is the only defined outbound fragmentation mode:
	// a full little-endian transfer with the total size in the write header.
	FragmentTypeFullLE = 0x03

	// MaxPayloadSize is the largest payload representable by the write
	// header's 16-bit total size field.
	MaxPayloadSize = 0xFFFF
)

// Data type tags carried in the unified header. The decoder layer owns the
// record schemas; these values only identify the logical stream.
const (
	DataTypeConfig     = 0x01 // configuration echo
	DataTypeHistory    = 0x02 // watering history log
	DataTypeStatistics = 0x03 // soil/usage statistics
)

// Status codes reported by the device per stream.
const (
	StatusOK             = 0x00
	StatusBusy           = 0x01
	StatusInvalidRequest = 0x02
	StatusInternalError  = 0x03
)

var (
	ErrHeaderTooShort          = errors.New("chunk shorter than unified header")
	ErrChunkTooShort           = errors.New("chunk shorter than write header")
	ErrPayloadTooLarge         = errors.New("payload length exceeds 16-bit size field")
	ErrInvalidChannel          = errors.New("channel outside device range")
	ErrFragmentIndexOutOfRange = errors.New("fragment index not below declared total")
	ErrOutOfOrderFragment      = errors.New("fragment index does not match next expected")
	ErrStaleStream             = errors.New("reassembly stream idle too long")
)

// WriteHeader is the 4-byte header on the first chunk of an outbound write.
type WriteHeader struct {
	ChannelID    uint8
	FragmentType uint8
	TotalSize    uint16 // byte length of the full payload, little endian
}

// Encode returns the wire representation of the header.
func (h WriteHeader) Encode() []byte {
	data := make([]byte, WriteHeaderSize)
	data[0] = h.ChannelID
	data[1] = h.FragmentType
	binary.LittleEndian.PutUint16(data[2:4], h.TotalSize)
	return data
}

// ParseWriteHeader decodes the first 4 bytes of an outbound chunk.
// Exposed for bridge tooling and tests; the device never sends this header.
func ParseWriteHeader(data []byte) (WriteHeader, error) {
	if len(data) < WriteHeaderSize {
		return WriteHeader{}, fmt.Errorf("%w: %d bytes", ErrChunkTooShort, len(data))
	}
	return WriteHeader{
		ChannelID:    data[0],
		FragmentType: data[1],
		TotalSize:    binary.LittleEndian.Uint16(data[2:4]),
	}, nil
}

// UnifiedHeader is the 8-byte header on every inbound notification chunk.
type UnifiedHeader struct {
	DataType       uint8
	Status         uint8
	EntryCount     uint16 // meaningful only once the stream is complete
	FragmentIndex  uint8
	TotalFragments uint8
	FragmentSize   uint8
	Reserved       uint8 // forward-compatible, ignored
}

// ParseUnifiedHeader decodes the first 8 bytes of a notification chunk.
// Pure function: no normalization is applied, fields are returned exactly
// as the device sent them.
func ParseUnifiedHeader(data []byte) (UnifiedHeader, error) {
	if len(data) < UnifiedHeaderSize {
		return UnifiedHeader{}, fmt.Errorf("%w: %d bytes", ErrHeaderTooShort, len(data))
	}
	return UnifiedHeader{
		DataType:       data[0],
		Status:         data[1],
		EntryCount:     binary.LittleEndian.Uint16(data[2:4]),
		FragmentIndex:  data[4],
		TotalFragments: data[5],
		FragmentSize:   data[6],
		Reserved:       data[7],
	}, nil
}

// Encode returns the wire representation of the header.
func (h UnifiedHeader) Encode() []byte {
	data := make([]byte, UnifiedHeaderSize)
	data[0] = h.DataType
	data[1] = h.Status
	binary.LittleEndian.PutUint16(data[2:4], h.EntryCount)
	data[4] = h.FragmentIndex
	data[5] = h.TotalFragments
	data[6] = h.FragmentSize
	data[7] = h.Reserved
	return data
}

// NormalizedTotal returns the declared fragment total with the defensive
// normalization applied: a stream that never declares fragmentation is a
// single complete stream.
func (h UnifiedHeader) NormalizedTotal() uint8 {
	if h.TotalFragments == 0 {
		return 1
	}
	return h.TotalFragments
}

// NormalizedSize returns the declared fragment payload size, falling back
// to the remaining chunk length when the device omits the field.
func (h UnifiedHeader) NormalizedSize(chunkLen int) int {
	if h.FragmentSize == 0 {
		return chunkLen - UnifiedHeaderSize
	}
	return int(h.FragmentSize)
}

// DataTypeName returns a human-readable name for the data type tag.
func DataTypeName(t uint8) string {
	switch t {
	case DataTypeConfig:
		return "CONFIG"
	case DataTypeHistory:
		return "HISTORY"
	case DataTypeStatistics:
		return "STATISTICS"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}

// StatusName returns a human-readable name for a device status code.
func StatusName(s uint8) string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBusy:
		return "BUSY"
	case StatusInvalidRequest:
		return "INVALID_REQUEST"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}
