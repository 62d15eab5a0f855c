package seriallink

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/core/wire"
)

const (
	// FrameMagic is the magic number that starts every bridge frame.
	FrameMagic uint16 = 0xA7B3
	// FrameHeaderSize is the size of the frame header (magic 2 + length 2).
	FrameHeaderSize = 4
	// FrameChecksumSize is the size of the checksum at the end of a frame.
	FrameChecksumSize = 2
	// MaxFramePayload is the maximum frame payload: characteristic tag
	// plus one protocol chunk.
	MaxFramePayload = 1 + wire.MaxChunkSize
	// MinFrameSize is the minimum valid frame size (header + tag + checksum).
	MinFrameSize = FrameHeaderSize + 1 + FrameChecksumSize
)

var (
	ErrFrameTooShort    = errors.New("frame too short")
	ErrInvalidMagic     = errors.New("invalid frame magic")
	ErrFrameTooLarge    = errors.New("frame payload exceeds maximum size")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrIncompleteFrame  = errors.New("incomplete frame")
)

// Frame is one decoded bridge frame: a characteristic tag plus the raw
// chunk mirrored from that characteristic.
type Frame struct {
	Tag   uint8
	Chunk []byte
}

// fletcher16 computes the Fletcher-16 checksum of the given data. The
// bridge firmware uses the same algorithm on its side of the link.
func fletcher16(data []byte) uint16 {
	var sum1, sum2 uint8
	for _, b := range data {
		sum1 = (sum1 + b) % 255
		sum2 = (sum2 + sum1) % 255
	}
	return uint16(sum2)<<8 | uint16(sum1)
}

// DecodeFrame decodes one bridge frame from data.
// Returns the decoded frame, any remaining bytes after it, and an error if
// decoding failed.
// Frame format: [0xA7B3 (2 BE)][length (2 BE)][tag][chunk][checksum (2 BE)].
func DecodeFrame(data []byte) (*Frame, []byte, error) {
	if len(data) < MinFrameSize {
		return nil, data, ErrFrameTooShort
	}

	magic := binary.BigEndian.Uint16(data[0:2])
	if magic != FrameMagic {
		return nil, data, ErrInvalidMagic
	}

	payloadLen := int(binary.BigEndian.Uint16(data[2:4]))
	if payloadLen < 1 || payloadLen > MaxFramePayload {
		return nil, data, ErrFrameTooLarge
	}

	totalSize := FrameHeaderSize + payloadLen + FrameChecksumSize
	if len(data) < totalSize {
		return nil, data, ErrIncompleteFrame
	}

	payload := data[FrameHeaderSize : FrameHeaderSize+payloadLen]

	checksumOffset := FrameHeaderSize + payloadLen
	received := binary.BigEndian.Uint16(data[checksumOffset : checksumOffset+2])
	if fletcher16(payload) != received {
		return nil, data, fmt.Errorf("%w: expected %04x, got %04x",
			ErrChecksumMismatch, fletcher16(payload), received)
	}

	frame := &Frame{
		Tag:   payload[0],
		Chunk: make([]byte, payloadLen-1),
	}
	copy(frame.Chunk, payload[1:])

	return frame, data[totalSize:], nil
}

// EncodeFrame encodes a characteristic tag and chunk into a bridge frame.
func EncodeFrame(tag uint8, chunk []byte) ([]byte, error) {
	if 1+len(chunk) > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(chunk))
	}

	payloadLen := 1 + len(chunk)
	frame := make([]byte, FrameHeaderSize+payloadLen+FrameChecksumSize)

	binary.BigEndian.PutUint16(frame[0:2], FrameMagic)
	binary.BigEndian.PutUint16(frame[2:4], uint16(payloadLen))
	frame[FrameHeaderSize] = tag
	copy(frame[FrameHeaderSize+1:], chunk)

	checksum := fletcher16(frame[FrameHeaderSize : FrameHeaderSize+payloadLen])
	binary.BigEndian.PutUint16(frame[FrameHeaderSize+payloadLen:], checksum)

	return frame, nil
}

// findMagic searches for the frame magic bytes in data.
// Returns the index of the first byte of the magic, or -1 if not found.
func findMagic(data []byte) int {
	hi, lo := byte(FrameMagic>>8), byte(FrameMagic&0xFF)
	for i := 0; i+1 < len(data); i++ {
		if data[i] == hi && data[i+1] == lo {
			return i
		}
	}
	return -1
}
